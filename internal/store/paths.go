package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StateDirEnv overrides the default runtime state root.
	StateDirEnv = "READTIME_STATE_DIR"

	xdgStateHomeEnv = "XDG_STATE_HOME"
	appName         = "readtime"
)

// StateDir returns the runtime state root.
// Resolution order:
//  1. READTIME_STATE_DIR (if set)
//  2. XDG_STATE_HOME/readtime (if XDG_STATE_HOME is set)
//  3. os.UserConfigDir()/readtime
func StateDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv(StateDirEnv)); override != "" {
		return filepath.Abs(override)
	}
	if xdg := strings.TrimSpace(os.Getenv(xdgStateHomeEnv)); xdg != "" {
		root, err := filepath.Abs(xdg)
		if err != nil {
			return "", err
		}
		return filepath.Join(root, appName), nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine user config directory: %w", err)
	}
	return filepath.Join(configDir, appName), nil
}

// DefaultPath returns the default file for backend under StateDir.
func DefaultPath(backend string) (string, error) {
	dir, err := StateDir()
	if err != nil {
		return "", err
	}
	switch backend {
	case BackendSQLite:
		return filepath.Join(dir, "state.db"), nil
	default:
		return filepath.Join(dir, "state.json"), nil
	}
}
