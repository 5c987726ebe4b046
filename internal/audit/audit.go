// Package audit appends one NDJSON record per install/update/uninstall/scan
// outcome to the per-day audit log. Writes are best-effort: a failure here
// is logged to stderr under debug and never fails the operation that
// triggered it.
package audit

import (
	"encoding/json"
	"os"
	"time"

	"github.com/zephyr-sh/zephyr/internal/log"
)

// Action enumerates the operations an audit record can describe.
type Action string

const (
	ActionInstall      Action = "install"
	ActionUpdate       Action = "update"
	ActionUninstall    Action = "uninstall"
	ActionScan         Action = "scan"
	ActionUnsafeBypass Action = "unsafe_bypass"
)

const schemaRecordVersion = "1"

// Record is one audit log line. Every field is independently owned so a
// record can be built up incrementally before being written.
type Record struct {
	Timestamp string `json:"timestamp"`
	SessionID string `json:"session_id"`
	Actor     string `json:"actor"`
	Role      string `json:"role"`
	Action    Action `json:"action"`
	Module    string `json:"module"`
	Source    string `json:"source"`
	Success   bool   `json:"success"`
	Reason    string `json:"reason,omitempty"`
	Critical  int    `json:"critical"`
	Warning   int    `json:"warning"`
}

// NewRecord builds a record with the timestamp filled in at call time.
func NewRecord(action Action, sessionID, actor, role, module, source string) Record {
	return Record{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		SessionID: sessionID,
		Actor:     actor,
		Role:      role,
		Action:    action,
		Module:    module,
		Source:    source,
	}
}

// Logger appends records to the audit log for a given day.
type Logger struct {
	pathFor func(day time.Time) string
}

// NewLogger returns a Logger that resolves each day's log path via pathFor
// (ordinarily (*config.Config).AuditLogPath).
func NewLogger(pathFor func(day time.Time) string) *Logger {
	return &Logger{pathFor: pathFor}
}

// Append writes rec as one NDJSON line to the current day's log. It never
// returns an error to the caller: failures are routed through the package
// logger at DEBUG level and otherwise swallowed, per the "audit never
// fails the primary operation" contract.
func (l *Logger) Append(rec Record) {
	path := l.pathFor(time.Now())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		log.Default().Debug("audit write failed", "step", "open", "path", path, "error", err)
		return
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		log.Default().Debug("audit write failed", "step", "marshal", "error", err)
		return
	}
	line = append(line, '\n')

	if _, err := f.Write(line); err != nil {
		log.Default().Debug("audit write failed", "step", "write", "path", path, "error", err)
	}
}
