package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all medportal configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Session SessionConfig `yaml:"session"`
	Chat    ChatConfig    `yaml:"chat"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig configures the portal backend client.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// SessionConfig configures the persisted session store and the auth watcher.
type SessionConfig struct {
	DatabasePath  string `yaml:"database_path"`
	WatchInterval string `yaml:"watch_interval"`
	// WatchFiles adds filesystem notifications on top of interval polling so
	// that a login/logout in another process is noticed immediately.
	WatchFiles bool `yaml:"watch_files"`
}

// ChatConfig configures the conversation view.
type ChatConfig struct {
	ContextWindow    int    `yaml:"context_window"`
	HistoryNamespace string `yaml:"history_namespace"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories,omitempty"`
}

// DataDir is the per-user directory holding config, session database and logs.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".medportal"
	}
	return filepath.Join(home, ".medportal")
}

// DefaultConfigPath returns ~/.medportal/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8080/api",
			Timeout: "30s",
		},
		Session: SessionConfig{
			DatabasePath:  filepath.Join(DataDir(), "session.db"),
			WatchInterval: "1s",
			WatchFiles:    true,
		},
		Chat: ChatConfig{
			ContextWindow:    10,
			HistoryNamespace: "chat_history",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if url := os.Getenv("MEDPORTAL_API_URL"); url != "" {
		c.API.BaseURL = url
	}
	if path := os.Getenv("MEDPORTAL_SESSION_DB"); path != "" {
		c.Session.DatabasePath = path
	}
	if v := os.Getenv("MEDPORTAL_DEBUG"); v != "" {
		c.Logging.DebugMode = v == "1" || strings.EqualFold(v, "true")
	}
	if lvl := os.Getenv("MEDPORTAL_LOG_LEVEL"); lvl != "" {
		c.Logging.Level = lvl
	}
}

// GetAPITimeout returns the API timeout as a duration.
func (c *Config) GetAPITimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWatchInterval returns the auth watcher interval as a duration.
func (c *Config) GetWatchInterval() time.Duration {
	d, err := time.ParseDuration(c.Session.WatchInterval)
	if err != nil {
		return time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url not configured (set MEDPORTAL_API_URL)")
	}
	if c.Session.DatabasePath == "" {
		return fmt.Errorf("session.database_path not configured")
	}
	if d, err := time.ParseDuration(c.Session.WatchInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid session.watch_interval: %q", c.Session.WatchInterval)
	}
	if c.Chat.ContextWindow < 1 {
		return fmt.Errorf("chat.context_window must be at least 1, got %d", c.Chat.ContextWindow)
	}
	if c.Chat.HistoryNamespace == "" {
		return fmt.Errorf("chat.history_namespace not configured")
	}
	return nil
}
