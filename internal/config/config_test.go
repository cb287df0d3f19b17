package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// testApp keeps the environment of the developer's own logfind out of tests.
const testApp = "logfindtest"

// useConfigHome points the XDG config directory at a temp dir.
func useConfigHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	// Registered first so it runs after Setenv restores the variable.
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", dir)
	xdg.Reload()
	return dir
}

func writeUserConfig(t *testing.T, home, content string) {
	t.Helper()
	path := filepath.Join(home, testApp, "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig("/var/log")

	assert.Equal(t, "/var/log", cfg.Root)
	assert.Equal(t, runtime.NumCPU(), cfg.Workers)
	assert.False(t, cfg.FollowSymlinks)
	assert.False(t, cfg.Search.Any)
	assert.False(t, cfg.Search.IgnoreCase)
	assert.Equal(t, FormatText, cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestUserConfigPath_UsesXDG(t *testing.T) {
	home := useConfigHome(t)

	assert.Equal(t, filepath.Join(home, "logfind", "config.yaml"), UserConfigPath("logfind"))
}

func TestLoad_NoUserConfig(t *testing.T) {
	useConfigHome(t)
	defaults := NewConfig("/")

	cfg, err := Load(testApp, defaults)

	require.NoError(t, err)
	assert.Equal(t, *defaults, *cfg)
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	// Given: a user file that sets some keys
	home := useConfigHome(t)
	writeUserConfig(t, home, `
root: /srv/logs
workers: 2
search:
  ignore_case: true
output:
  format: json
`)
	defaults := NewConfig("/var/log")

	// When: loading
	cfg, err := Load(testApp, defaults)

	// Then: set keys win, others keep their defaults
	require.NoError(t, err)
	assert.Equal(t, "/srv/logs", cfg.Root)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Search.IgnoreCase)
	assert.False(t, cfg.Search.Any)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)

	// And: defaults are untouched
	assert.Equal(t, "/var/log", defaults.Root)
}

func TestLoad_EmptyUserConfig(t *testing.T) {
	home := useConfigHome(t)
	writeUserConfig(t, home, "")

	cfg, err := Load(testApp, NewConfig("/var/log"))

	require.NoError(t, err)
	assert.Equal(t, "/var/log", cfg.Root)
}

func TestLoad_UnknownKeyRejected(t *testing.T) {
	home := useConfigHome(t)
	writeUserConfig(t, home, "roots: /tmp\n")

	_, err := Load(testApp, NewConfig("/var/log"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrConfigInvalid))
}

func TestLoad_MalformedYAML(t *testing.T) {
	home := useConfigHome(t)
	writeUserConfig(t, home, "workers: [unclosed\n")

	_, err := Load(testApp, NewConfig("/var/log"))

	assert.True(t, errors.Is(err, apperrors.ErrConfigInvalid))
}

func TestLoad_EnvOverridesUserConfig(t *testing.T) {
	home := useConfigHome(t)
	writeUserConfig(t, home, "root: /srv/logs\nworkers: 2\n")
	t.Setenv("LOGFINDTEST_ROOT", "/opt/logs")
	t.Setenv("LOGFINDTEST_WORKERS", "7")
	t.Setenv("LOGFINDTEST_FOLLOW_SYMLINKS", "true")
	t.Setenv("LOGFINDTEST_LOG_LEVEL", "debug")
	t.Setenv("LOGFINDTEST_FORMAT", "json")

	cfg, err := Load(testApp, NewConfig("/var/log"))

	require.NoError(t, err)
	assert.Equal(t, "/opt/logs", cfg.Root)
	assert.Equal(t, 7, cfg.Workers)
	assert.True(t, cfg.FollowSymlinks)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
}

func TestLoad_InvalidEnv(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"workers not a number", "LOGFINDTEST_WORKERS", "many"},
		{"negative workers", "LOGFINDTEST_WORKERS", "-1"},
		{"bad bool", "LOGFINDTEST_FOLLOW_SYMLINKS", "sometimes"},
		{"bad format", "LOGFINDTEST_FORMAT", "xml"},
		{"bad level", "LOGFINDTEST_LOG_LEVEL", "trace"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useConfigHome(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(testApp, NewConfig("/var/log"))

			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrConfigInvalid))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"zero workers means auto", func(c *Config) { c.Workers = 0 }, false},
		{"upper case format", func(c *Config) { c.Output.Format = "JSON" }, false},
		{"empty root", func(c *Config) { c.Root = "" }, true},
		{"negative workers", func(c *Config) { c.Workers = -3 }, true},
		{"unknown format", func(c *Config) { c.Output.Format = "csv" }, true},
		{"unknown level", func(c *Config) { c.Log.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig("/var/log")
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	home := useConfigHome(t)
	cfg := NewConfig("/data")
	cfg.Search.Any = true
	cfg.Workers = 3

	require.NoError(t, cfg.WriteYAML(filepath.Join(home, testApp, "config.yaml")))

	loaded, err := Load(testApp, NewConfig("/var/log"))
	require.NoError(t, err)
	assert.Equal(t, *cfg, *loaded)
}
