package config

import (
	"os"
	"path/filepath"
)

const appName = "subwave"

// ConfigDir returns the configuration directory following the XDG Base
// Directory specification: $XDG_CONFIG_HOME/subwave (default:
// ~/.config/subwave).
func ConfigDir() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configHome, appName), nil
}
