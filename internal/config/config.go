package config

import (
	"fmt"
	"os"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain = "whispr.qzz.io"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultTURN   = "" // Optional, empty by default
)

// Matchmaking and signaling timing defaults.
const (
	DefaultMatchPollInterval  = 2 * time.Second
	DefaultOfferRetryInterval = 1 * time.Second
	DefaultDisconnectGrace    = 500 * time.Millisecond
)

// Config holds client configuration
type Config struct {
	// Domain is the backend server domain
	Domain string

	// APIBaseURL and WebSocketURL are constructed from domain
	APIBaseURL   string
	WebSocketURL string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// MatchPollInterval is how often the matchmaking loop polls the backend.
	MatchPollInterval time.Duration

	// OfferRetryInterval is how often the initiator resends an unanswered offer.
	OfferRetryInterval time.Duration

	// DisconnectGrace is how long a disconnected/failed connection state may
	// persist before it is surfaced as a connection-lost notice.
	DisconnectGrace time.Duration

	// Insecure switches the constructed URLs to http/ws for local development.
	Insecure bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	Insecure   bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("WHISPR_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}

	insecure := opts.Insecure
	if os.Getenv("WHISPR_INSECURE") == "1" {
		insecure = true
	}

	httpScheme, wsScheme := "https", "wss"
	if insecure {
		httpScheme, wsScheme = "http", "ws"
	}

	return &Config{
		Domain:             domain,
		APIBaseURL:         fmt.Sprintf("%s://%s/api", httpScheme, domain),
		WebSocketURL:       fmt.Sprintf("%s://%s/ws", wsScheme, domain),
		STUNServer:         stunServer,
		TURNServer:         turnServer,
		TURNUser:           turnUser,
		TURNPass:           turnPass,
		MatchPollInterval:  DefaultMatchPollInterval,
		OfferRetryInterval: DefaultOfferRetryInterval,
		DisconnectGrace:    DefaultDisconnectGrace,
		Insecure:           insecure,
	}, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
