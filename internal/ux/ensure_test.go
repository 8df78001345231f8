package ux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T, dir string) Preferences {
	t.Helper()
	pm := NewPreferencesManager(dir)
	require.NoError(t, pm.Load())
	return pm.Get()
}

func TestEnsurePreferences_FirstRun(t *testing.T) {
	dir := t.TempDir()
	result, err := EnsurePreferences(dir)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.False(t, result.Reset)

	_, err = os.Stat(filepath.Join(dir, PreferencesFile))
	require.NoError(t, err)
	assert.Equal(t, *DefaultPreferences(), load(t, dir))
}

func TestEnsurePreferences_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	pm := NewPreferencesManager(dir)
	require.NoError(t, pm.SetTheme(ThemeLight))
	require.NoError(t, pm.Save())

	result, err := EnsurePreferences(dir)
	require.NoError(t, err)
	assert.Equal(t, EnsureResult{}, result)
	assert.Equal(t, ThemeLight, load(t, dir).Theme)
}

func TestEnsurePreferences_Unreadable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PreferencesFile), []byte("{oops"), 0o600))

	result, err := EnsurePreferences(dir)
	require.NoError(t, err)
	assert.True(t, result.Reset)
	assert.Equal(t, ThemeAuto, load(t, dir).Theme)
}

func TestRecordSessionStart(t *testing.T) {
	dir := t.TempDir()
	pm := NewPreferencesManager(dir)
	require.NoError(t, RecordSessionStart(pm))
	assert.Equal(t, 1, load(t, dir).Metrics.SessionsCount)
}
