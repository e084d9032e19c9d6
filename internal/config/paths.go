// Package config provides configuration management for the locker client and server.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigDir is the standard configuration directory name
const ConfigDir = "document-locker"

// configDir returns the platform-appropriate config directory.
// Windows: %APPDATA%\document-locker. Unix: ~/.config/document-locker.
func configDir() string {
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, ConfigDir)
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", ConfigDir)
}

// DefaultConfigPath returns the default location of config.ini, or "" when
// the home directory cannot be determined.
func DefaultConfigPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.ini")
}

// DefaultTokenPath returns the default location of the auth token file.
func DefaultTokenPath() string {
	dir := configDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "token")
}

// LogDirectory returns the directory used for rotated log files.
func LogDirectory() string {
	dir := configDir()
	if dir == "" {
		return filepath.Join(os.TempDir(), "document-locker-logs")
	}
	return filepath.Join(dir, "logs")
}

// EnsureConfigDir creates the config directory with owner-only permissions.
func EnsureConfigDir() error {
	dir := configDir()
	if dir == "" {
		return os.ErrNotExist
	}
	return os.MkdirAll(dir, 0700)
}
