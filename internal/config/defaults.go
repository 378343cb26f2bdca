package config

import (
	"os"
	"path/filepath"
)

const appName = "kbswitchd"

// DefaultPath returns the configuration file to use when none is given:
// $XDG_CONFIG_HOME/kbswitchd/config.toml (or ~/.config/...), unless it is
// missing and ./config.toml exists.
func DefaultPath() string {
	path := filepath.Join(configDir(), "config.toml")
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if _, err := os.Stat("config.toml"); err == nil {
		return "config.toml"
	}
	return path
}

// configDir follows the XDG Base Directory Specification.
func configDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// defaultPidFile prefers the per-user runtime dir, which is cleaned on logout.
func defaultPidFile() string {
	if xdgRuntime := os.Getenv("XDG_RUNTIME_DIR"); xdgRuntime != "" {
		return filepath.Join(xdgRuntime, appName+".pid")
	}
	return filepath.Join("/run", appName+".pid")
}
