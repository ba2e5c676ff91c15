package config

import (
	"os"
	"path/filepath"
)

// baseDir is ~/.campuschat, the default home for config, logs and caches.
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".campuschat")
}

// DefaultPath is where Load looks when no --config flag is given.
func DefaultPath() string {
	return filepath.Join(baseDir(), "config.toml")
}

// LogPath returns the log file location for this client.
func (c *Config) LogPath() string {
	dir := c.LogDir
	if dir == "" {
		dir = filepath.Join(baseDir(), "logs")
	}
	return filepath.Join(dir, "campuschat.log")
}

// CachePath returns the sqlite cache location for one conversation, or
// empty when caching is disabled.
func (c *Config) CachePath(conversationID string) string {
	if c.CacheDir == "" {
		return ""
	}
	return filepath.Join(c.CacheDir, "conversation-"+conversationID+".db")
}
