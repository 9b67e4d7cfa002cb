package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is the development fallback used when neither the config file
// nor the environment names a backend.
const DefaultAPIBaseURL = "http://localhost:8000/api"

// Environment overrides.
const (
	EnvAPIURL = "SOUK_API_URL"
	EnvWSURL  = "SOUK_WS_URL"
)

// Config represents the global ~/.souk/config.toml.
type Config struct {
	DefaultSession string   `toml:"default_session"`
	APIBaseURL     string   `toml:"api_base_url"`
	WSBaseURL      string   `toml:"ws_base_url"`
	HTTP           HTTP     `toml:"http"`
	Realtime       Realtime `toml:"realtime"`
}

// HTTP tunes the REST client.
type HTTP struct {
	RequestTimeoutMs int `toml:"request_timeout_ms"`
	MaxAttempts      int `toml:"max_attempts"`
}

// Realtime tunes the WebSocket connection manager and the typing indicators.
type Realtime struct {
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts"`
	ReconnectBaseMs      int  `toml:"reconnect_base_ms"`
	TypingTTLMs          int  `toml:"typing_ttl_ms"`
	PerChatSockets       bool `toml:"per_chat_sockets"`
}

// Default returns a config with every tunable set.
func Default() *Config {
	return &Config{
		APIBaseURL: DefaultAPIBaseURL,
		HTTP: HTTP{
			RequestTimeoutMs: 15000,
			MaxAttempts:      3,
		},
		Realtime: Realtime{
			MaxReconnectAttempts: 5,
			ReconnectBaseMs:      1000,
			TypingTTLMs:          6000,
		},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// LoadEffective reads the config file (a missing file is not an error), loads an
// optional .env from envFile, applies environment overrides and fills defaults.
func LoadEffective(path, envFile string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		cfg = &Config{}
	}
	if envFile != "" {
		// godotenv.Load never overrides variables already present in the environment.
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	if v := os.Getenv(EnvAPIURL); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv(EnvWSURL); v != "" {
		cfg.WSBaseURL = v
	}
	cfg.fillDefaults()
	return cfg, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.APIBaseURL == "" {
		c.APIBaseURL = d.APIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.HTTP.RequestTimeoutMs <= 0 {
		c.HTTP.RequestTimeoutMs = d.HTTP.RequestTimeoutMs
	}
	if c.HTTP.MaxAttempts <= 0 {
		c.HTTP.MaxAttempts = d.HTTP.MaxAttempts
	}
	if c.Realtime.MaxReconnectAttempts <= 0 {
		c.Realtime.MaxReconnectAttempts = d.Realtime.MaxReconnectAttempts
	}
	if c.Realtime.ReconnectBaseMs <= 0 {
		c.Realtime.ReconnectBaseMs = d.Realtime.ReconnectBaseMs
	}
	if c.Realtime.TypingTTLMs <= 0 {
		c.Realtime.TypingTTLMs = d.Realtime.TypingTTLMs
	}
}

// WebSocketURL returns the realtime base URL. When ws_base_url is unset it is
// derived from the API URL: http becomes ws, https becomes wss, and the path is /ws.
func (c *Config) WebSocketURL() string {
	if c.WSBaseURL != "" {
		return strings.TrimRight(c.WSBaseURL, "/")
	}
	return DeriveWebSocketURL(c.APIBaseURL)
}

// DeriveWebSocketURL maps an API base URL onto the host's /ws endpoint.
func DeriveWebSocketURL(apiBase string) string {
	u, err := url.Parse(apiBase)
	if err != nil || u.Host == "" {
		return "ws://localhost:8000/ws"
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{Scheme: scheme, Host: u.Host, Path: "/ws"}).String()
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.RequestTimeoutMs) * time.Millisecond
}

// ReconnectBase returns the first reconnect delay.
func (c *Config) ReconnectBase() time.Duration {
	return time.Duration(c.Realtime.ReconnectBaseMs) * time.Millisecond
}

// TypingTTL returns how long a remote typing indicator survives without a refresh.
func (c *Config) TypingTTL() time.Duration {
	return time.Duration(c.Realtime.TypingTTLMs) * time.Millisecond
}
