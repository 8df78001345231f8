package ux

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPreferences(t *testing.T) {
	prefs := DefaultPreferences()
	assert.Equal(t, ThemeAuto, prefs.Theme)
	assert.True(t, prefs.RememberUsername)
	assert.True(t, prefs.ShowHints)
}

func TestPreferencesManagerLoadSave(t *testing.T) {
	dir := t.TempDir()
	pm := NewPreferencesManager(dir)
	require.NoError(t, pm.Load())

	require.NoError(t, pm.SetTheme(ThemeDark))
	require.NoError(t, pm.SetShowHints(false))
	require.NoError(t, pm.Save())

	pm2 := NewPreferencesManager(dir)
	require.NoError(t, pm2.Load())
	got := pm2.Get()
	assert.Equal(t, ThemeDark, got.Theme)
	assert.False(t, got.ShowHints)

	info, err := os.Stat(pm.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoad_UnknownThemeFallsBackToAuto(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, PreferencesFile),
		[]byte(`{"theme":"neon","show_hints":false}`), 0o600))

	pm := NewPreferencesManager(dir)
	require.NoError(t, pm.Load())
	assert.Equal(t, ThemeAuto, pm.Get().Theme)
	assert.False(t, pm.Get().ShowHints)
}

func TestSetTheme_Rejects(t *testing.T) {
	pm := NewPreferencesManager(t.TempDir())
	assert.Error(t, pm.SetTheme("sepia"))
	assert.Equal(t, ThemeAuto, pm.Get().Theme)
}

func TestRecordLogin(t *testing.T) {
	dir := t.TempDir()
	pm := NewPreferencesManager(dir)
	require.NoError(t, pm.RecordLogin("jdoe"))
	assert.Equal(t, "jdoe", pm.Get().LastUsername)
	assert.Equal(t, 1, pm.Get().Metrics.Logins)

	require.NoError(t, pm.SetRememberUsername(false))
	assert.Empty(t, pm.Get().LastUsername)
	require.NoError(t, pm.RecordLogin("other"))
	assert.Empty(t, pm.Get().LastUsername)

	reloaded := NewPreferencesManager(dir)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Get().Metrics.Logins)
}

func TestIncrementMetric(t *testing.T) {
	pm := NewPreferencesManager(t.TempDir())
	require.NoError(t, pm.IncrementMetric(MetricSessions))
	require.NoError(t, pm.IncrementMetric(MetricMessages))
	got := pm.Get().Metrics
	assert.Equal(t, 1, got.SessionsCount)
	assert.Equal(t, 1, got.MessagesSent)
	assert.NotEmpty(t, got.LastSession)
	assert.Error(t, pm.IncrementMetric("unknown"))
}

func TestGetReturnsCopy(t *testing.T) {
	pm := NewPreferencesManager(t.TempDir())
	require.NoError(t, pm.Load())
	p := pm.Get()
	p.Theme = ThemeDark
	assert.Equal(t, ThemeAuto, pm.Get().Theme)
}
