package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestConsoleHandlerFormatsComponent(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger = NewComponentLogger(logger, "sweeper")
	logger.Info("sweep complete", Int("published", 3))

	line := buf.String()
	if !strings.Contains(line, "INFO sweeper: sweep complete") {
		t.Fatalf("unexpected line: %q", line)
	}
	if !strings.Contains(line, "published=3") {
		t.Fatalf("expected attrs in line: %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Warn("slug taken", String("slug", "two words"))

	if !strings.Contains(buf.String(), `slug="two words"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestConsoleHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelWarn)
	logger := slog.New(newConsoleHandler(&buf, levelVar))

	logger.Info("suppressed")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below level, got %q", buf.String())
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "yaml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	logger.Error("dropped", Error(nil))
}
