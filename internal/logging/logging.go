// Package logging provides structured logging with slog for kbswitchd.
//
// Features:
//   - JSON and text output formats
//   - Log levels (debug, info, warn, error)
//   - Per-component child loggers
//   - Size and daily log rotation with optional gzip
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"kbswitchd/internal/config"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	// FormatText outputs human-readable text logs.
	FormatText Format = iota
	// FormatJSON outputs JSON-structured logs.
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or JSON).
	Format Format

	// Output specifies where logs are written.
	// Can be "stdout", "stderr", "file", or "both".
	Output string

	// FilePath is the path to the log file when Output includes "file".
	FilePath string

	// MaxSize is the maximum size of a log file in megabytes before
	// rotation. Zero disables size-based rotation.
	MaxSize int64

	// MaxAge is the maximum age of rotated files in days. Zero keeps them.
	MaxAge int

	// MaxBackups is the maximum number of rotated files. Zero keeps all.
	MaxBackups int

	// Compress determines if rotated logs should be gzip compressed.
	Compress bool

	// Component is the name of the component using this logger.
	Component string

	// Writer replaces the console stream for "stdout"/"stderr"/"both".
	Writer io.Writer
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		MaxSize:    10,
		MaxAge:     7,
		MaxBackups: 3,
		Component:  "kbswitchd",
	}
}

// FromConfig converts the [logging] section of the daemon configuration.
func FromConfig(lc config.LoggingConfig) (*Config, error) {
	cfg := DefaultConfig()

	if lc.Level != "" {
		level, err := ParseLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		cfg.Level = level
	}
	if lc.Format != "" {
		format, err := ParseFormat(lc.Format)
		if err != nil {
			return nil, err
		}
		cfg.Format = format
	}
	if lc.Output != "" {
		cfg.Output = lc.Output
	}
	cfg.FilePath = lc.FilePath
	cfg.MaxSize = int64(lc.MaxSizeMB)
	cfg.MaxAge = lc.MaxAgeDays
	cfg.MaxBackups = lc.MaxBackups
	cfg.Compress = lc.Compress
	return cfg, nil
}

// Logger wraps slog.Logger with the file rotator it may own.
type Logger struct {
	*slog.Logger
	config  *Config
	base    slog.Handler // handler before the component attribute
	rotator *FileRotator
	mu      sync.Mutex
}

// New creates a new Logger with the given configuration.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	l := &Logger{config: cfg}

	w, err := l.setupWriter()
	if err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}

	opts := &slog.HandlerOptions{Level: cfg.Level}

	var handler slog.Handler
	switch cfg.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	l.base = handler
	if cfg.Component != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("component", cfg.Component),
		})
	}

	l.Logger = slog.New(handler)
	return l, nil
}

// setupWriter builds the output stream from Output.
func (l *Logger) setupWriter() (io.Writer, error) {
	console := l.config.Writer

	switch strings.ToLower(l.config.Output) {
	case "stdout":
		if console == nil {
			console = os.Stdout
		}
		return console, nil
	case "file", "both":
		rotator, err := NewFileRotator(l.config)
		if err != nil {
			return nil, err
		}
		l.rotator = rotator
		if strings.EqualFold(l.config.Output, "file") {
			return rotator, nil
		}
		if console == nil {
			console = os.Stderr
		}
		return io.MultiWriter(console, rotator), nil
	default:
		if console == nil {
			console = os.Stderr
		}
		return console, nil
	}
}

// WithComponent returns a child logger whose component replaces the
// parent's. The child shares the parent's outputs; close only the parent.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{
		Logger: slog.New(l.base.WithAttrs([]slog.Attr{slog.String("component", name)})),
		config: l.config,
		base:   l.base,
	}
}

// Close closes any open log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

// ParseLevel parses a string into a log level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "text", "":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format: %s", s)
	}
}

// LevelString returns the string representation of a log level.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}
