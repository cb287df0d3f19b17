// Package config loads the settings of logfind and prefind.
//
// Two sources exist. The path regex dotfile (see ListPathRegexes) selects
// candidate files. The optional YAML settings file holds defaults for the
// command-line flags and is layered as:
//
//  1. Profile defaults
//  2. User config ($XDG_CONFIG_HOME/<app>/config.yaml)
//  3. Environment variables (<APP>_*)
//
// Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	apperrors "github.com/nzp/logfind/internal/errors"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the settings of one application.
type Config struct {
	// Root is the directory the path regexes are walked from.
	Root string `yaml:"root" json:"root"`
	// Workers bounds concurrent file reads. 0 means one per CPU.
	Workers        int          `yaml:"workers" json:"workers"`
	FollowSymlinks bool         `yaml:"follow_symlinks" json:"follow_symlinks"`
	Search         SearchConfig `yaml:"search" json:"search"`
	Output         OutputConfig `yaml:"output" json:"output"`
	Log            LogConfig    `yaml:"log" json:"log"`
}

// SearchConfig holds the default combination policy for search terms.
type SearchConfig struct {
	// Any ORs the terms instead of ANDing them.
	Any        bool `yaml:"any" json:"any"`
	IgnoreCase bool `yaml:"ignore_case" json:"ignore_case"`
}

// OutputConfig selects how results are printed.
type OutputConfig struct {
	Format string `yaml:"format" json:"format"`
}

// LogConfig configures the stderr log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// NewConfig creates a Config with defaults for a walk rooted at root.
func NewConfig(root string) *Config {
	return &Config{
		Root:    root,
		Workers: runtime.NumCPU(),
		Output:  OutputConfig{Format: FormatText},
		Log:     LogConfig{Level: "warn"},
	}
}

// UserConfigPath returns the path of the settings file for app:
// $XDG_CONFIG_HOME/<app>/config.yaml, or the platform equivalent.
func UserConfigPath(app string) string {
	return filepath.Join(xdg.ConfigHome, app, "config.yaml")
}

// Load builds the configuration of app, starting from defaults and applying
// the user config file and the environment. The result is validated.
// defaults is not modified.
func Load(app string, defaults *Config) (*Config, error) {
	cfg := *defaults

	path := UserConfigPath(app)
	if fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnvOverrides(EnvPrefix(app)); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvPrefix returns the prefix of the environment variables read for app,
// e.g. "LOGFIND_".
func EnvPrefix(app string) string {
	return strings.ToUpper(app) + "_"
}

// loadYAML overlays the keys present in the file onto c. Unknown keys are
// rejected so that typos do not go unnoticed.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to read config file %s", path), err).
			WithDetail("path", path)
	}
	if err := c.decode(bytes.NewReader(data)); err != nil {
		return apperrors.ConfigError(fmt.Sprintf("failed to parse config file %s", path), err).
			WithDetail("path", path)
	}
	return nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// applyEnvOverrides applies <prefix>ROOT, WORKERS, FOLLOW_SYMLINKS,
// LOG_LEVEL and FORMAT.
func (c *Config) applyEnvOverrides(prefix string) error {
	if v := os.Getenv(prefix + "ROOT"); v != "" {
		c.Root = v
	}
	if v := os.Getenv(prefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(prefix+"WORKERS", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv(prefix + "FOLLOW_SYMLINKS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return envError(prefix+"FOLLOW_SYMLINKS", v, err)
		}
		c.FollowSymlinks = b
	}
	if v := os.Getenv(prefix + "LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(prefix + "FORMAT"); v != "" {
		c.Output.Format = v
	}
	return nil
}

func envError(name, value string, cause error) error {
	return apperrors.ConfigError(fmt.Sprintf("invalid value %q for %s", value, name), cause).
		WithDetail("env", name)
}

// Validate checks the configuration and returns an errors.ErrConfigInvalid
// error describing the first problem.
func (c *Config) Validate() error {
	if c.Root == "" {
		return apperrors.ConfigError("root must not be empty", nil)
	}
	if c.Workers < 0 {
		return apperrors.ConfigError(fmt.Sprintf("workers must be non-negative, got %d", c.Workers), nil)
	}

	switch strings.ToLower(c.Output.Format) {
	case FormatText, FormatJSON:
	default:
		return apperrors.ConfigError(fmt.Sprintf("output.format must be 'text' or 'json', got %s", c.Output.Format), nil)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		return apperrors.ConfigError(fmt.Sprintf("log.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Log.Level), nil)
	}

	return nil
}

// WriteYAML writes the configuration to path, creating its directory.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
