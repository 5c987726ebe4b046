package log

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestCLIHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHandlerWithOptions(slog.LevelWarn, CLIHandlerOptions{Writer: &buf})
	logger := New(h)

	logger.Info("info - should not appear")
	logger.Warn("warn - should appear")

	output := buf.String()
	if strings.Contains(output, "info - should not appear") {
		t.Errorf("info message should have been filtered, got: %s", output)
	}
	if !strings.Contains(output, "warn - should appear") {
		t.Errorf("expected warn message in output: %s", output)
	}
}

func TestCLIHandler_NoTimestampOrLocationByDefault(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHandler(slog.LevelDebug)
	h.w = &buf
	logger := New(h)

	logger.Info("plain message")

	output := buf.String()
	if strings.Contains(output, "source=") {
		t.Errorf("expected no source location by default, got: %s", output)
	}
	if !strings.Contains(output, "plain message") {
		t.Errorf("expected message in output: %s", output)
	}
}

func TestCLIHandler_TimestampsAndLocation(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHandlerWithOptions(slog.LevelDebug, CLIHandlerOptions{
		Writer:     &buf,
		Timestamps: true,
		Location:   true,
	})
	logger := New(h)

	logger.Debug("debug with context")

	output := buf.String()
	if !strings.Contains(output, "debug with context") {
		t.Errorf("expected message in output: %s", output)
	}
	if !strings.Contains(output, "source=") {
		t.Errorf("expected source location in output: %s", output)
	}
	if !strings.Contains(output, "T") {
		t.Errorf("expected RFC3339 timestamp in output: %s", output)
	}
}

func TestCLIHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := NewCLIHandlerWithOptions(slog.LevelDebug, CLIHandlerOptions{Writer: &buf})
	logger := New(h.WithAttrs([]slog.Attr{slog.String("module", "zsh-autopair")}))

	logger.Info("installing")

	output := buf.String()
	if !strings.Contains(output, "module=zsh-autopair") {
		t.Errorf("expected attr in output: %s", output)
	}
}

func TestCLIHandler_NoColorEnvDisablesColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	h := NewCLIHandlerWithOptions(slog.LevelDebug, CLIHandlerOptions{Writer: &buf, Color: true})
	logger := New(h)

	logger.Error("boom")

	output := buf.String()
	if strings.Contains(output, "\x1b[") {
		t.Errorf("expected no ANSI escapes with NO_COLOR set, got: %q", output)
	}
}
