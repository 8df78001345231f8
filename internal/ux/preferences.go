package ux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// PreferencesFile is the file name inside the data directory.
const PreferencesFile = "preferences.json"

// ThemeMode selects the color scheme.
type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeLight ThemeMode = "light"
	ThemeDark  ThemeMode = "dark"
)

// ParseThemeMode accepts auto, light or dark.
func ParseThemeMode(s string) (ThemeMode, error) {
	switch m := ThemeMode(s); m {
	case ThemeAuto, ThemeLight, ThemeDark:
		return m, nil
	}
	return "", fmt.Errorf("unknown theme %q (want auto, light or dark)", s)
}

// Preferences is the on-disk schema.
type Preferences struct {
	Theme ThemeMode `json:"theme"`

	// LastUsername prefills the sign-in form. Empty when RememberUsername is off.
	LastUsername     string `json:"last_username,omitempty"`
	RememberUsername bool   `json:"remember_username"`

	ShowHints bool `json:"show_hints"`

	Metrics Metrics `json:"metrics"`
}

// Metrics are local counters; they never leave the machine.
type Metrics struct {
	SessionsCount int    `json:"sessions_count"`
	Logins        int    `json:"logins"`
	MessagesSent  int    `json:"messages_sent"`
	LastSession   string `json:"last_session,omitempty"`
}

// Metric names accepted by IncrementMetric.
const (
	MetricSessions = "sessions_count"
	MetricLogins   = "logins"
	MetricMessages = "messages_sent"
)

// DefaultPreferences returns the settings of a fresh install.
func DefaultPreferences() *Preferences {
	return &Preferences{
		Theme:            ThemeAuto,
		RememberUsername: true,
		ShowHints:        true,
	}
}

// PreferencesManager handles loading/saving preferences.
type PreferencesManager struct {
	mu          sync.RWMutex
	path        string
	preferences *Preferences
}

// NewPreferencesManager creates a manager for preferences.json in dataDir.
func NewPreferencesManager(dataDir string) *PreferencesManager {
	return &PreferencesManager{path: filepath.Join(dataDir, PreferencesFile)}
}

// Path returns the preferences file location.
func (pm *PreferencesManager) Path() string { return pm.path }

// Load reads preferences from disk, using defaults if the file does not exist.
func (pm *PreferencesManager) Load() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	data, err := os.ReadFile(pm.path)
	if err != nil {
		if os.IsNotExist(err) {
			pm.preferences = DefaultPreferences()
			return nil
		}
		return fmt.Errorf("failed to read preferences: %w", err)
	}

	prefs := DefaultPreferences()
	if err := json.Unmarshal(data, prefs); err != nil {
		return fmt.Errorf("failed to parse preferences: %w", err)
	}
	if _, err := ParseThemeMode(string(prefs.Theme)); err != nil {
		prefs.Theme = ThemeAuto
	}
	pm.preferences = prefs
	return nil
}

// Save writes preferences to disk.
func (pm *PreferencesManager) Save() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.saveLocked()
}

func (pm *PreferencesManager) saveLocked() error {
	if pm.preferences == nil {
		pm.preferences = DefaultPreferences()
	}
	if err := os.MkdirAll(filepath.Dir(pm.path), 0o700); err != nil {
		return fmt.Errorf("failed to create preferences directory: %w", err)
	}
	data, err := json.MarshalIndent(pm.preferences, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}
	if err := os.WriteFile(pm.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}

// Get returns a copy of the current preferences.
func (pm *PreferencesManager) Get() Preferences {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	if pm.preferences == nil {
		return *DefaultPreferences()
	}
	return *pm.preferences
}

func (pm *PreferencesManager) update(fn func(p *Preferences) error) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.preferences == nil {
		pm.preferences = DefaultPreferences()
	}
	return fn(pm.preferences)
}

// SetTheme updates the theme.
func (pm *PreferencesManager) SetTheme(mode ThemeMode) error {
	if _, err := ParseThemeMode(string(mode)); err != nil {
		return err
	}
	return pm.update(func(p *Preferences) error {
		p.Theme = mode
		return nil
	})
}

// SetRememberUsername toggles username recall; turning it off forgets the
// stored name.
func (pm *PreferencesManager) SetRememberUsername(on bool) error {
	return pm.update(func(p *Preferences) error {
		p.RememberUsername = on
		if !on {
			p.LastUsername = ""
		}
		return nil
	})
}

// SetShowHints toggles the key hints footer.
func (pm *PreferencesManager) SetShowHints(on bool) error {
	return pm.update(func(p *Preferences) error {
		p.ShowHints = on
		return nil
	})
}

// RecordLogin counts a successful sign-in and remembers username when
// enabled, then persists.
func (pm *PreferencesManager) RecordLogin(username string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.preferences == nil {
		pm.preferences = DefaultPreferences()
	}
	pm.preferences.Metrics.Logins++
	if pm.preferences.RememberUsername {
		pm.preferences.LastUsername = username
	}
	return pm.saveLocked()
}

// IncrementMetric increments a numeric metric.
func (pm *PreferencesManager) IncrementMetric(metric string) error {
	return pm.update(func(p *Preferences) error {
		switch metric {
		case MetricSessions:
			p.Metrics.SessionsCount++
			p.Metrics.LastSession = time.Now().Format(time.RFC3339)
		case MetricLogins:
			p.Metrics.Logins++
		case MetricMessages:
			p.Metrics.MessagesSent++
		default:
			return fmt.Errorf("unknown metric: %s", metric)
		}
		return nil
	})
}
