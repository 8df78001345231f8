package ux

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// EnsureResult reports what EnsurePreferences had to do.
type EnsureResult struct {
	Created bool
	// Reset is set when an unreadable file was replaced by defaults.
	Reset bool
}

// EnsurePreferences makes sure preferences.json in dataDir exists and parses.
// A missing file is created with defaults; an unreadable one is replaced.
func EnsurePreferences(dataDir string) (EnsureResult, error) {
	var result EnsureResult
	path := filepath.Join(dataDir, PreferencesFile)

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		result.Created = true
	case err != nil:
		return result, fmt.Errorf("failed to read preferences: %w", err)
	default:
		var probe Preferences
		if json.Unmarshal(data, &probe) == nil {
			return result, nil
		}
		result.Reset = true
	}

	pm := NewPreferencesManager(dataDir)
	pm.preferences = DefaultPreferences()
	if err := pm.Save(); err != nil {
		return result, fmt.Errorf("failed to save default preferences: %w", err)
	}
	return result, nil
}

// RecordSessionStart counts an interactive session and persists it.
func RecordSessionStart(pm *PreferencesManager) error {
	if err := pm.IncrementMetric(MetricSessions); err != nil {
		return err
	}
	return pm.Save()
}
