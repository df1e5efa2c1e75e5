// Package audit records an append-only trail of filtering session actions.
//
// Entries go to Postgres when a database is configured and to the structured
// log otherwise. Recording never fails a session operation; callers log the
// returned error and continue.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Action identifies what happened to a session.
type Action string

const (
	ActionCreate  Action = "create"
	ActionClose   Action = "close"
	ActionLoad    Action = "load"
	ActionFilter  Action = "filter"
	ActionConfirm Action = "confirm"
	ActionDiscard Action = "discard"
	ActionSave    Action = "save"
	ActionExpire  Action = "expire"
)

// Severity ranks actions by how much data they change.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Entry is a single audit record.
type Entry struct {
	ID           uuid.UUID `json:"id"`
	Action       Action    `json:"action"`
	Severity     Severity  `json:"severity"`
	SessionID    string    `json:"sessionId"`
	File         string    `json:"file,omitempty"`
	Rule         string    `json:"rule,omitempty"`
	Column       int       `json:"column"`
	RowsAffected int       `json:"rowsAffected"`
	IPAddress    string    `json:"ipAddress,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Recorder persists audit entries.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// History reads a session's entries back, newest first.
type History interface {
	Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error)
}

// severityFor returns the severity of an action.
func severityFor(a Action) Severity {
	switch a {
	case ActionConfirm, ActionSave:
		return SeverityHigh
	case ActionLoad, ActionExpire:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// NewEntry fills in the ID, severity and timestamp for an action.
func NewEntry(action Action, sessionID string) Entry {
	return Entry{
		ID:        uuid.New(),
		Action:    action,
		Severity:  severityFor(action),
		SessionID: sessionID,
		Column:    -1,
		CreatedAt: time.Now().UTC(),
	}
}

// LogRecorder writes entries to a slog.Logger.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder returns a recorder that logs at info level. A nil logger
// means slog.Default().
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, e Entry) error {
	r.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("audit_id", e.ID.String()),
		slog.String("action", string(e.Action)),
		slog.String("severity", string(e.Severity)),
		slog.String("session_id", e.SessionID),
		slog.String("file", e.File),
		slog.String("rule", e.Rule),
		slog.Int("column", e.Column),
		slog.Int("rows_affected", e.RowsAffected),
	)
	return nil
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }
