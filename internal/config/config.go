// Package config handles configuration loading and validation for kbswitchd.
package config

import (
	"os"
	"time"
)

// Config holds the complete daemon configuration.
type Config struct {
	// DevicePath is an explicit keyboard device. When it exists on disk it is
	// used without scoring; otherwise devices are discovered.
	DevicePath string `toml:"device_path" json:"device_path" yaml:"device_path"`

	// TriggerKey retypes the last word (or the selection) under the next layout.
	TriggerKey string `toml:"trigger_key" json:"trigger_key" yaml:"trigger_key"`

	// SelectAllKey, pressed with ctrl held, marks the whole buffer selected.
	SelectAllKey string `toml:"select_all_key" json:"select_all_key" yaml:"select_all_key"`

	// LayoutSwitchCombo is pressed in order, then released in order, to
	// switch layout. It must match the desktop's layout-switch shortcut.
	LayoutSwitchCombo []string `toml:"layout_switch_combo" json:"layout_switch_combo" yaml:"layout_switch_combo"`

	// IgnoredKeywords exclude devices whose names contain any entry.
	IgnoredKeywords []string `toml:"ignored_keywords" json:"ignored_keywords" yaml:"ignored_keywords"`

	// BufferSize bounds the typed-text buffer.
	BufferSize int `toml:"buffer_size" json:"buffer_size" yaml:"buffer_size"`

	// RetryDelayMs is the pause before looking for a keyboard again.
	RetryDelayMs int `toml:"retry_delay_ms" json:"retry_delay_ms" yaml:"retry_delay_ms"`

	// ClipboardTimeoutMs clears the buffer when the gap between two events
	// exceeds it. Required; it has no default.
	ClipboardTimeoutMs int `toml:"clipboard_timeout_ms" json:"clipboard_timeout_ms" yaml:"clipboard_timeout_ms"`

	// HotplugWake retries as soon as a new input device appears instead of
	// always waiting the full retry delay.
	HotplugWake bool `toml:"hotplug_wake" json:"hotplug_wake" yaml:"hotplug_wake"`

	// PidFile is the single-instance lock file.
	PidFile string `toml:"pid_file" json:"pid_file" yaml:"pid_file"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file when Output is "file" or "both".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of old log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`

	// Compress determines whether to gzip rotated logs.
	Compress bool `toml:"compress" json:"compress" yaml:"compress"`
}

// DefaultConfig returns a configuration with defaults for every optional
// key. TriggerKey and LayoutSwitchCombo have no default.
func DefaultConfig() *Config {
	return &Config{
		SelectAllKey:    "KEY_A",
		IgnoredKeywords: []string{},
		BufferSize:      100,
		RetryDelayMs:    1000,
		PidFile:         defaultPidFile(),
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// RetryDelay returns RetryDelayMs as a duration.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

// StaleAfter returns ClipboardTimeoutMs as a duration.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.ClipboardTimeoutMs) * time.Millisecond
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with KBSWITCHD_.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("KBSWITCHD_DEVICE_PATH"); v != "" {
		c.DevicePath = v
	}
	if v := os.Getenv("KBSWITCHD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KBSWITCHD_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.LayoutSwitchCombo = append([]string{}, c.LayoutSwitchCombo...)
	clone.IgnoredKeywords = append([]string{}, c.IgnoredKeywords...)
	return &clone
}
