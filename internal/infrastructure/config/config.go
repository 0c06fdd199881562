// Package config loads the client configuration in layers: built-in
// defaults, then the config file, then a .env file if present, then GAVEL_*
// environment variables. Later layers win.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the stream reconnection machinery.
const (
	DefaultReconnectDelay = 5000 * time.Millisecond
	DefaultMaxReconnects  = 5
)

// Config is the full configuration surface of the client.
type Config struct {
	// GatewayURL is the single API gateway fronting the marketplace
	// services.
	GatewayURL string `json:"gateway_url"`

	// EventsURL is the push stream endpoint. Empty means GatewayURL +
	// "/events".
	EventsURL string `json:"events_url,omitempty"`

	// ReconnectDelayMs is the fixed delay between stream reconnect
	// attempts.
	ReconnectDelayMs int `json:"reconnect_delay_ms"`

	// MaxReconnectAttempts is the stream retry ceiling; 0 means unlimited.
	MaxReconnectAttempts int `json:"max_reconnect_attempts"`

	// AutoConnect opens the stream as soon as the watch UI starts.
	AutoConnect bool `json:"auto_connect"`

	// AutoReconnect enables the retry state machine.
	AutoReconnect bool `json:"auto_reconnect"`

	// Debug enables verbose diagnostic logging.
	Debug bool `json:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		GatewayURL:           "http://localhost:8080",
		ReconnectDelayMs:     int(DefaultReconnectDelay / time.Millisecond),
		MaxReconnectAttempts: DefaultMaxReconnects,
		AutoConnect:          true,
		AutoReconnect:        true,
	}
}

// ReconnectDelay returns the reconnect delay as a duration.
func (c Config) ReconnectDelay() time.Duration {
	if c.ReconnectDelayMs <= 0 {
		return DefaultReconnectDelay
	}
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

// StreamURL returns the effective push stream endpoint.
func (c Config) StreamURL() string {
	if c.EventsURL != "" {
		return c.EventsURL
	}
	return c.GatewayURL + "/events"
}

// Dir returns the client's dot-directory, honoring GAVEL_CONFIG_DIR.
func Dir() string {
	if dir := os.Getenv("GAVEL_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gavel"
	}
	return filepath.Join(home, ".gavel")
}

// Load builds the configuration from all layers.
func Load() (Config, error) {
	cfg := DefaultConfig()

	if err := applyFile(&cfg, filepath.Join(Dir(), "config.json")); err != nil {
		return cfg, err
	}

	// A .env in the working directory is a developer convenience; a missing
	// file is the normal case.
	_ = godotenv.Load()

	applyEnv(&cfg)
	return cfg, nil
}

// Save writes the file layer.
func Save(cfg Config) error {
	dir := Dir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.json"), data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays GAVEL_* environment variables.
func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				*dst = i
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString("GAVEL_GATEWAY_URL", &cfg.GatewayURL)
	setString("GAVEL_EVENTS_URL", &cfg.EventsURL)
	setInt("GAVEL_RECONNECT_DELAY_MS", &cfg.ReconnectDelayMs)
	setInt("GAVEL_MAX_RECONNECTS", &cfg.MaxReconnectAttempts)
	setBool("GAVEL_AUTO_CONNECT", &cfg.AutoConnect)
	setBool("GAVEL_AUTO_RECONNECT", &cfg.AutoReconnect)
	setBool("GAVEL_DEBUG", &cfg.Debug)
}
