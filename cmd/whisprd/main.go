package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/JreyForFun/Whispr/internal/logging"
	"github.com/JreyForFun/Whispr/internal/server"
	"github.com/JreyForFun/Whispr/internal/server/store"
)

func main() {
	logging.Init()

	cfg := server.LoadConfig()

	var st store.Store
	if cfg.RedisAddr != "" {
		rs, err := store.NewRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			slog.Error("redis unavailable", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		st = rs
		slog.Info("using redis store", "addr", cfg.RedisAddr)
	} else {
		st = store.NewMemory()
		slog.Info("using in-memory store")
	}

	hub := server.NewHub()
	go hub.Run()

	router := server.NewRouter(cfg, st, hub)

	slog.Info("whisprd listening", "port", cfg.Port, "env", cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
