package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "info", cfg.Level)
	assert.False(t, cfg.Quiet)
	assert.False(t, cfg.Verbose)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 8787, cfg.Server.Port)
	assert.Equal(t, "file", cfg.Store.Backend)
	assert.Equal(t, time.Second, cfg.Tracker.CoalesceWindow)
	assert.Equal(t, 60*time.Second, cfg.Reporter.IdleTimeout)
	assert.Equal(t, 200*time.Millisecond, cfg.Reporter.Debounce)
	assert.Equal(t, time.Second, cfg.Reporter.TickInterval)
	assert.Equal(t, 900, cfg.Settings.ThresholdSeconds)
	assert.True(t, cfg.Settings.Enabled)
	assert.Equal(t, 2, cfg.Site.MinSignals)
	assert.Equal(t, "127.0.0.1:8787", cfg.Addr())
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("HOME", tmpDir)
		t.Setenv("XDG_CONFIG_HOME", tmpDir)
		testChdir(t, tmpDir)

		cfg, err := Load()
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "auto", cfg.Format)
		assert.Equal(t, 900, cfg.Settings.ThresholdSeconds)
	})

	t.Run("reads readtime.yaml from the working directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("HOME", tmpDir)
		t.Setenv("XDG_CONFIG_HOME", tmpDir)
		testChdir(t, tmpDir)

		content := `
format: text
server:
  port: 9900
reporter:
  idle_timeout: 45s
`
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "readtime.yaml"), []byte(content), 0644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, 9900, cfg.Server.Port)
		assert.Equal(t, 45*time.Second, cfg.Reporter.IdleTimeout)
		// untouched keys keep defaults
		assert.Equal(t, 200*time.Millisecond, cfg.Reporter.Debounce)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "bad.yaml")
		err := os.WriteFile(configPath, []byte("invalid: yaml: content: ["), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("parses all config fields", func(t *testing.T) {
		tmpDir := t.TempDir()
		configContent := `
format: ndjson
level: debug
quiet: true
verbose: true
server:
  host: 0.0.0.0
  port: 9000
  allowed_origins:
    - chrome-extension://abc
store:
  backend: sqlite
  path: /tmp/readtime.db
tracker:
  coalesce_window: 2s
reporter:
  idle_timeout: 90s
  debounce: 150ms
  tick_interval: 500ms
settings:
  threshold_seconds: 300
  enabled: false
site:
  hosts:
    - "*.example.com"
  path_prefixes:
    - /posts/
  generator: Ghost
  markers:
    - article-body
  min_signals: 3
`
		configPath := filepath.Join(tmpDir, "readtime.yaml")
		err := os.WriteFile(configPath, []byte(configContent), 0644)
		require.NoError(t, err)

		cfg, err := LoadFromFile(configPath)
		require.NoError(t, err)

		assert.Equal(t, "ndjson", cfg.Format)
		assert.Equal(t, "debug", cfg.Level)
		assert.True(t, cfg.Quiet)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, []string{"chrome-extension://abc"}, cfg.Server.AllowedOrigins)
		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, "/tmp/readtime.db", cfg.Store.Path)
		assert.Equal(t, 2*time.Second, cfg.Tracker.CoalesceWindow)
		assert.Equal(t, 90*time.Second, cfg.Reporter.IdleTimeout)
		assert.Equal(t, 150*time.Millisecond, cfg.Reporter.Debounce)
		assert.Equal(t, 500*time.Millisecond, cfg.Reporter.TickInterval)
		assert.Equal(t, 300, cfg.Settings.ThresholdSeconds)
		assert.False(t, cfg.Settings.Enabled)
		assert.Equal(t, []string{"*.example.com"}, cfg.Site.Hosts)
		assert.Equal(t, []string{"/posts/"}, cfg.Site.PathPrefixes)
		assert.Equal(t, "Ghost", cfg.Site.Generator)
		assert.Equal(t, []string{"article-body"}, cfg.Site.Markers)
		assert.Equal(t, 3, cfg.Site.MinSignals)
	})
}

func TestConfigEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", tmpDir)
	testChdir(t, tmpDir)

	t.Setenv("READTIME_FORMAT", "text")
	t.Setenv("READTIME_PORT", "9123")
	t.Setenv("READTIME_STORE", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 9123, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestConfigFile(t *testing.T) {
	t.Run("finds .readtime.yaml in current directory", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("HOME", t.TempDir())
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		testChdir(t, tmpDir)

		configPath := filepath.Join(tmpDir, ".readtime.yaml")
		require.NoError(t, os.WriteFile(configPath, []byte("format: text"), 0644))

		found := ConfigFile()
		// Resolve symlinks for comparison (macOS /var -> /private/var)
		expectedPath, _ := filepath.EvalSymlinks(configPath)
		foundPath, _ := filepath.EvalSymlinks(found)
		assert.Equal(t, expectedPath, foundPath)
	})

	t.Run("returns empty string when no config found", func(t *testing.T) {
		tmpDir := t.TempDir()
		t.Setenv("HOME", tmpDir)
		t.Setenv("XDG_CONFIG_HOME", tmpDir)
		testChdir(t, tmpDir)

		assert.Empty(t, ConfigFile())
	})
}
