package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the client configuration, normally ~/.campuschat/config.toml.
type Config struct {
	// ServerURL is the platform base URL, e.g. "https://campus.example.edu".
	// The websocket endpoint is derived from it: https yields wss.
	ServerURL string `toml:"server_url"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `toml:"token_env"`

	// CacheDir holds per-conversation sqlite caches. Empty disables caching.
	CacheDir string `toml:"cache_dir"`

	// LogDir holds the client log files.
	LogDir string `toml:"log_dir"`

	User      User      `toml:"user"`
	Reconnect Reconnect `toml:"reconnect"`
	Typing    Typing    `toml:"typing"`
}

// User identifies the local participant. The backend knows the real
// identity from the token; these fields only label local echoes.
type User struct {
	ID          int64  `toml:"id"`
	DisplayName string `toml:"display_name"`
}

// Reconnect tunes the backoff between connection attempts.
type Reconnect struct {
	BaseMS      int `toml:"base_ms"`
	MaxMS       int `toml:"max_ms"`
	MaxAttempts int `toml:"max_attempts"`
}

// Typing tunes the presence debouncer.
type Typing struct {
	DebounceMS  int `toml:"debounce_ms"`
	StopDelayMS int `toml:"stop_delay_ms"`
	ExpiryMS    int `toml:"expiry_ms"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		ServerURL: "http://localhost:8000",
		TokenEnv:  "CAMPUSCHAT_TOKEN",
		Reconnect: Reconnect{BaseMS: 1000, MaxMS: 10000, MaxAttempts: 5},
		Typing:    Typing{DebounceMS: 300, StopDelayMS: 3000, ExpiryMS: 3000},
	}
}

// Load reads config from path, filling unset tuning values with defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	def := Default()
	if cfg.Reconnect.BaseMS <= 0 {
		cfg.Reconnect.BaseMS = def.Reconnect.BaseMS
	}
	if cfg.Reconnect.MaxMS <= 0 {
		cfg.Reconnect.MaxMS = def.Reconnect.MaxMS
	}
	if cfg.Reconnect.MaxAttempts <= 0 {
		cfg.Reconnect.MaxAttempts = def.Reconnect.MaxAttempts
	}
	if cfg.Typing.DebounceMS <= 0 {
		cfg.Typing.DebounceMS = def.Typing.DebounceMS
	}
	if cfg.Typing.StopDelayMS <= 0 {
		cfg.Typing.StopDelayMS = def.Typing.StopDelayMS
	}
	if cfg.Typing.ExpiryMS <= 0 {
		cfg.Typing.ExpiryMS = def.Typing.ExpiryMS
	}
	return cfg, nil
}

// Save writes config to path, creating parent dirs as needed.
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
