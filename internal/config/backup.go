package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/nzp/logfind/internal/errors"
)

const (
	// MaxBackups is the maximum number of settings backups kept per file.
	MaxBackups = 3

	// BackupSuffix precedes the timestamp in backup file names.
	BackupSuffix = ".bak"

	backupTimeFormat = "20060102-150405.000000000"
)

// BackupFile copies path to a timestamped sibling and prunes old backups.
// It returns the backup path, or "" if path does not exist.
func BackupFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read config for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s%s.%s", path, BackupSuffix, time.Now().Format(backupTimeFormat))
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	// Best effort: the backup itself succeeded.
	_ = pruneBackups(path)

	return backupPath, nil
}

// ListBackups returns the backups of path, newest first.
func ListBackups(path string) ([]string, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list config directory: %w", err)
	}

	prefix := filepath.Base(path) + BackupSuffix + "."
	var backups []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		backups = append(backups, filepath.Join(dir, entry.Name()))
	}

	// Timestamps sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

func pruneBackups(path string) error {
	backups, err := ListBackups(path)
	if err != nil {
		return err
	}
	if len(backups) <= MaxBackups {
		return nil
	}
	for _, backup := range backups[MaxBackups:] {
		_ = os.Remove(backup)
	}
	return nil
}

// InitUserConfig writes cfg to the settings file of app. An existing file is
// backed up first and only replaced when force is set. It returns the path
// written and the backup path, if any.
func InitUserConfig(app string, cfg *Config, force bool) (path, backup string, err error) {
	path = UserConfigPath(app)
	if fileExists(path) {
		if !force {
			return "", "", apperrors.New(apperrors.ErrCodeInvalidInput,
				fmt.Sprintf("%s already exists", path), nil).
				WithDetail("path", path).
				WithSuggestion("use --force to overwrite it; the current file is backed up first")
		}
		if backup, err = BackupFile(path); err != nil {
			return "", "", err
		}
	}
	if err := cfg.WriteYAML(path); err != nil {
		return "", "", err
	}
	return path, backup, nil
}
