package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("MEDPORTAL_API_URL", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, 10, cfg.Chat.ContextWindow)
	assert.Equal(t, time.Second, cfg.GetWatchInterval())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
api:
  base_url: https://portal.example.org/api
  timeout: 5s
session:
  watch_interval: 250ms
chat:
  context_window: 4
logging:
  debug_mode: true
  categories:
    chat: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://portal.example.org/api", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.GetAPITimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetWatchInterval())
	assert.Equal(t, 4, cfg.Chat.ContextWindow)
	assert.Equal(t, "chat_history", cfg.Chat.HistoryNamespace, "unset keys keep defaults")
	assert.True(t, cfg.Logging.DebugMode)
	assert.False(t, cfg.Logging.Categories["chat"])
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [unterminated"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MEDPORTAL_API_URL", "http://10.0.0.5/api")
	t.Setenv("MEDPORTAL_SESSION_DB", "/tmp/other.db")
	t.Setenv("MEDPORTAL_DEBUG", "true")
	t.Setenv("MEDPORTAL_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://10.0.0.5/api", cfg.API.BaseURL)
	assert.Equal(t, "/tmp/other.db", cfg.Session.DatabasePath)
	assert.True(t, cfg.Logging.DebugMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.API.BaseURL = " " }},
		{"zero interval", func(c *Config) { c.Session.WatchInterval = "0s" }},
		{"bad interval", func(c *Config) { c.Session.WatchInterval = "soon" }},
		{"context window", func(c *Config) { c.Chat.ContextWindow = 0 }},
		{"namespace", func(c *Config) { c.Chat.HistoryNamespace = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://saved/api"
	require.NoError(t, cfg.Save(path))

	t.Setenv("MEDPORTAL_API_URL", "")
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://saved/api", loaded.API.BaseURL)
}
