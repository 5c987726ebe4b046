package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"
)

// CLIHandler is a slog.Handler tuned for short-lived command output: plain
// "level: message key=value ..." lines on stderr, with timestamps and
// source location only shown when the environment asks for them (debug
// mode is meant for troubleshooting, not everyday warnings).
type CLIHandler struct {
	w          io.Writer
	level      slog.Level
	timestamps bool
	location   bool
	color      bool
	attrs      []slog.Attr
}

// CLIHandlerOptions configures optional CLIHandler behavior beyond the
// minimum log level.
type CLIHandlerOptions struct {
	// Writer defaults to os.Stderr.
	Writer io.Writer
	// Timestamps prefixes each line with an RFC3339 timestamp.
	Timestamps bool
	// Location appends the source file:line of the log call.
	Location bool
	// Color enables ANSI coloring of the level tag. Disabled whenever
	// NO_COLOR is set, regardless of this flag.
	Color bool
}

// NewCLIHandler returns a CLIHandler at the given level with default
// formatting (no timestamps, no source location, stderr output). Use
// NewCLIHandlerWithOptions to turn on timestamps, source location or color.
func NewCLIHandler(level slog.Level) *CLIHandler {
	return NewCLIHandlerWithOptions(level, CLIHandlerOptions{})
}

// NewCLIHandlerWithOptions returns a CLIHandler with full control over
// timestamp, location, and color behavior.
func NewCLIHandlerWithOptions(level slog.Level, opts CLIHandlerOptions) *CLIHandler {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	return &CLIHandler{
		w:          w,
		level:      level,
		timestamps: opts.Timestamps,
		location:   opts.Location,
		color:      opts.Color && os.Getenv("NO_COLOR") == "",
	}
}

// Enabled reports whether level is at or above the handler's configured level.
func (h *CLIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle writes one formatted log line.
func (h *CLIHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	if h.timestamps {
		b.WriteString(r.Time.Format(time.RFC3339))
		b.WriteByte(' ')
	}

	b.WriteString(h.levelTag(r.Level))
	b.WriteByte(' ')
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})

	if h.location && r.PC != 0 {
		fmt.Fprintf(&b, " source=%s", sourceLocation(r.PC))
	}

	b.WriteByte('\n')
	_, err := io.WriteString(h.w, b.String())
	return err
}

// WithAttrs returns a new handler with additional attributes merged into
// every subsequent record.
func (h *CLIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

// WithGroup is unsupported; CLIHandler flattens all attributes and returns
// itself unchanged (groups add no value to single-line CLI output).
func (h *CLIHandler) WithGroup(string) slog.Handler {
	return h
}

func (h *CLIHandler) levelTag(level slog.Level) string {
	tag := level.String()
	if !h.color {
		return tag
	}
	switch {
	case level >= slog.LevelError:
		return "\x1b[31m" + tag + "\x1b[0m"
	case level >= slog.LevelWarn:
		return "\x1b[33m" + tag + "\x1b[0m"
	default:
		return tag
	}
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	fmt.Fprintf(b, " %s=%v", a.Key, a.Value.Any())
}

func sourceLocation(pc uintptr) string {
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}
