package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"kbswitchd/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("round trip of %v gave %v, %v", level, parsed, err)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("expected json, got %v, %v", f, err)
	}
	if f, err := ParseFormat("text"); err != nil || f != FormatText {
		t.Errorf("expected text, got %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestFromConfig(t *testing.T) {
	cfg, err := FromConfig(config.LoggingConfig{
		Level:      "debug",
		Format:     "json",
		Output:     "both",
		FilePath:   "/var/log/kbswitchd.log",
		MaxSizeMB:  5,
		MaxBackups: 2,
		MaxAgeDays: 1,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if cfg.Level != LevelDebug || cfg.Format != FormatJSON || cfg.Output != "both" {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.MaxSize != 5 || cfg.MaxBackups != 2 || cfg.MaxAge != 1 || !cfg.Compress {
		t.Errorf("rotation settings not copied: %+v", cfg)
	}

	if _, err := FromConfig(config.LoggingConfig{Level: "loud"}); err == nil {
		t.Error("expected error for bad level")
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    "stdout",
		Component: "kbswitchd",
		Writer:    &buf,
	})
	if err != nil {
		t.Fatalf("failed to create JSON logger: %v", err)
	}
	defer logger.Close()

	logger.WithComponent("capture").Info("keyboard grabbed", "path", "/dev/input/event3")
	logger.Debug("dropped")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}

	if n := strings.Count(lines[0], `"component"`); n != 1 {
		t.Errorf("expected one component attribute, got %d: %s", n, lines[0])
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "keyboard grabbed" || rec["path"] != "/dev/input/event3" {
		t.Errorf("unexpected record: %v", rec)
	}
	if rec["component"] != "capture" {
		t.Errorf("expected component capture, got %v", rec["component"])
	}
}

func TestFileOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "kbswitchd.log")

	logger, err := New(&Config{Level: LevelInfo, Output: "file", FilePath: logPath})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	logger.Info("started")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "msg=started") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestFileRotatorRequiresPath(t *testing.T) {
	if _, err := NewFileRotator(&Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestFileRotatorSizeRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1, // 1 MB
		MaxBackups: 2,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}

	chunk := bytes.Repeat([]byte("x"), 256*1024)
	for i := 0; i < 13; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}
	if err := rotator.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	backups, err := rotator.Backups()
	if err != nil {
		t.Fatalf("backups: %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups after pruning, got %d: %v", len(backups), backups)
	}
	for _, b := range backups {
		if !strings.HasSuffix(b, ".gz") {
			t.Errorf("expected compressed backup, got %s", b)
		}
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("stat current log: %v", err)
	}
	if info.Size() > 1024*1024 {
		t.Errorf("current log exceeds limit: %d", info.Size())
	}
}

func TestFileRotatorDailyRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	day := time.Date(2024, 3, 1, 23, 59, 0, 0, time.Local)
	rotator.now = func() time.Time { return day }
	rotator.lastTime = day

	rotator.Write([]byte("before midnight\n"))
	day = day.Add(2 * time.Minute)
	rotator.Write([]byte("after midnight\n"))
	rotator.bg.Wait()

	backups, _ := rotator.Backups()
	if len(backups) != 1 {
		t.Fatalf("expected 1 backup, got %v", backups)
	}
	if !strings.Contains(backups[0], "20240302-") {
		t.Errorf("backup not stamped with rotation time: %s", backups[0])
	}
	data, _ := os.ReadFile(logPath)
	if string(data) != "after midnight\n" {
		t.Errorf("unexpected current log: %q", data)
	}
}

func TestRecoverTo(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(&Config{Output: "stderr", Writer: &buf})

	run := func() (err error) {
		defer RecoverTo(logger.Logger, &err)
		var m map[string]int
		m["boom"] = 1
		return nil
	}

	err := run()
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PanicError, got %v", err)
	}
	if len(pe.Stack) == 0 {
		t.Error("stack not captured")
	}
	if !strings.Contains(buf.String(), "recovered from panic") {
		t.Errorf("panic not logged: %q", buf.String())
	}

	noPanic := func() (err error) {
		defer RecoverTo(nil, &err)
		return errors.New("plain")
	}
	if err := noPanic(); err == nil || err.Error() != "plain" {
		t.Errorf("expected plain error, got %v", err)
	}
}
