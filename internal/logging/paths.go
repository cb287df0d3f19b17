package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

// DefaultLogDir returns the log directory of app: $XDG_STATE_HOME/<app>,
// or the platform equivalent. The home directory itself is not used because
// ~/.<app> is the path regex file.
func DefaultLogDir(app string) string {
	return filepath.Join(xdg.StateHome, app)
}

// DefaultLogPath returns the debug log path of app.
func DefaultLogPath(app string) string {
	return filepath.Join(DefaultLogDir(app), app+".log")
}

// FindLogFile returns explicit if it exists, otherwise the default log of
// app. It fails if neither exists.
func FindLogFile(app, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath(app)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. Run %s with --debug first.\nExpected at: %s", app, path)
}
