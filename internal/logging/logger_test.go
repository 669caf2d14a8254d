package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"deckcast/internal/logging"
	"deckcast/internal/pipeline"
)

func newFileLogger(t *testing.T, format, level string, sinks ...string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "deckcast.log")
	logger, err := logging.New(logging.Options{
		Format: format,
		Level:  level,
		Sinks:  append([]string{logPath}, sinks...),
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "info")
	logger.Info("message without caller")

	if line := readLog(t, logPath); strings.Contains(line, ".go:") {
		t.Fatalf("info records should carry no caller, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "debug")
	logger.Info("message with caller")

	if line := readLog(t, logPath); !strings.Contains(line, ".go:") {
		t.Fatalf("debug-level logger should record callers, got %q", line)
	}
}

func TestConsoleLoggerLiftsComponentPrefix(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "info")
	logging.NewComponentLogger(logger, "poller").Info("tick", logging.Int("count", 2))

	line := readLog(t, logPath)
	if !strings.Contains(line, "poller: tick") {
		t.Fatalf("expected component prefix in %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should not render as key=value: %q", line)
	}
	if !strings.Contains(line, "count=2") {
		t.Fatalf("expected count attribute in %q", line)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logger, logPath := newFileLogger(t, "json", "debug")
	logger.Info("json message", logging.String("k", "v"))

	content := readLog(t, logPath)
	for _, want := range []string{`"msg":"json message"`, `"level":"info"`, `"k":"v"`, `"ts":`} {
		if !strings.Contains(content, want) {
			t.Fatalf("json output missing %s: %q", want, content)
		}
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logger, logPath := newFileLogger(t, "console", "invalid")
	logger.Debug("hidden")
	logger.Info("visible")

	content := readLog(t, logPath)
	if strings.Contains(content, "hidden") {
		t.Fatalf("debug output should be suppressed at info level: %q", content)
	}
	if !strings.Contains(content, "visible") {
		t.Fatalf("info output missing: %q", content)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewDeduplicatesSinks(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "deckcast.log")
	logger, err := logging.New(logging.Options{
		Format: "console",
		Level:  "info",
		Sinks:  []string{logPath, logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("once")

	lines := strings.Count(readLog(t, logPath), "\n")
	if lines != 1 {
		t.Fatalf("duplicate sink should be opened once, got %d lines", lines)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = pipeline.WithTaskID(ctx, "t-123")
	ctx = pipeline.WithFileID(ctx, "f-9")
	ctx = pipeline.WithRequestID(ctx, "req-xyz")

	logger, logPath := newFileLogger(t, "console", "info")
	logging.WithContext(ctx, logger).Info("contextual log")

	line := readLog(t, logPath)
	for _, want := range []string{
		logging.FieldTaskID + "=t-123",
		logging.FieldFileID + "=f-9",
		logging.FieldCorrelationID + "=req-xyz",
	} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %s in %q", want, line)
		}
	}
}

func TestCleanupOldLogsPrunesByAge(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "deckcast-old.log")
	newPath := filepath.Join(dir, "deckcast-new.log")
	otherPath := filepath.Join(dir, "keep.txt")
	for _, path := range []string{oldPath, newPath, otherPath} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(otherPath, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	logging.CleanupOldLogs(logging.NewNop(), dir, "deckcast-*.log", 7)

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be pruned, stat err = %v", oldPath, err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("expected %s to survive: %v", newPath, err)
	}
	if _, err := os.Stat(otherPath); err != nil {
		t.Fatalf("expected non-matching %s to survive: %v", otherPath, err)
	}
}
