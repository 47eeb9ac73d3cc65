package config

import (
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "chatstudio"

// StoragePaths contains paths for application storage
type StoragePaths struct {
	DatabasePath string
	CachePath    string
	SessionPath  string
	LogDir       string
}

// GetDefaultStoragePaths returns default storage paths using XDG base directories
func GetDefaultStoragePaths() StoragePaths {
	// Runtime state lives under XDG_STATE_HOME
	stateDir := filepath.Join(xdg.StateHome, appName)

	return StoragePaths{
		DatabasePath: filepath.Join(stateDir, "chatstudio.db"),
		CachePath:    filepath.Join(xdg.CacheHome, appName),
		SessionPath:  filepath.Join(stateDir, "session.json"),
		LogDir:       filepath.Join(stateDir, "logs"),
	}
}

// GetUserConfigDir returns the per-user configuration directory
func GetUserConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}
