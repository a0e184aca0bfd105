// Package server is the whisprd coordination service: the REST API the
// matchmaking client polls, the room-scoped WebSocket relay the peers
// signal over, and the store behind both.
package server

import (
	"os"
	"strconv"
)

// Config holds whisprd settings, populated from the environment.
type Config struct {
	Port        string
	Environment string

	// RedisAddr selects the shared store; empty means the in-process one.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// LoadConfig reads the environment with sensible defaults for local runs.
func LoadConfig() Config {
	cfg := Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
	if db, err := strconv.Atoi(getEnv("REDIS_DB", "0")); err == nil {
		cfg.RedisDB = db
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
