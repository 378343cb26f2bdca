package config

import (
	"fmt"
	"strings"

	"kbswitchd/internal/keymap"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Bindings are the key settings resolved to key codes.
type Bindings struct {
	Trigger   keymap.Key
	SelectAll keymap.Key
	Combo     []keymap.Synthetic
}

// Validate checks the configuration for errors. It returns ValidationErrors
// listing every problem found.
func (c *Config) Validate() error {
	_, errs := c.resolve()

	if c.BufferSize < 1 || c.BufferSize > 10000 {
		errs = append(errs, ValidationError{
			Field:   "buffer_size",
			Message: fmt.Sprintf("must be between 1 and 10000, got %d", c.BufferSize),
		})
	}
	if c.RetryDelayMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "retry_delay_ms",
			Message: "must not be negative",
		})
	}
	if c.ClipboardTimeoutMs < 1 {
		errs = append(errs, ValidationError{
			Field:   "clipboard_timeout_ms",
			Message: fmt.Sprintf("is required and must be positive, got %d", c.ClipboardTimeoutMs),
		})
	}

	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// Bindings resolves the trigger key, select-all key and layout combo.
func (c *Config) Bindings() (Bindings, error) {
	b, errs := c.resolve()
	if len(errs) > 0 {
		return Bindings{}, errs
	}
	return b, nil
}

func (c *Config) resolve() (Bindings, ValidationErrors) {
	var (
		b    Bindings
		errs ValidationErrors
		err  error
	)

	if c.TriggerKey == "" {
		errs = append(errs, ValidationError{Field: "trigger_key", Message: "is required"})
	} else if b.Trigger, err = keymap.Parse(c.TriggerKey); err != nil {
		errs = append(errs, ValidationError{Field: "trigger_key", Message: err.Error()})
	}

	if b.SelectAll, err = keymap.Parse(c.SelectAllKey); err != nil {
		errs = append(errs, ValidationError{Field: "select_all_key", Message: err.Error()})
	}

	if len(c.LayoutSwitchCombo) == 0 {
		errs = append(errs, ValidationError{Field: "layout_switch_combo", Message: "must name at least one key"})
	}
	for i, name := range c.LayoutSwitchCombo {
		s, err := keymap.ParseSynthetic(name)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("layout_switch_combo[%d]", i),
				Message: err.Error(),
			})
			continue
		}
		b.Combo = append(b.Combo, s)
	}

	return b, errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
		// Valid formats
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging",
			Message: "rotation limits must not be negative",
		})
	}

	return errs
}
