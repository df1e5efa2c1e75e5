package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const createTableSQL = `CREATE TABLE IF NOT EXISTS filter_audit (
	id            UUID PRIMARY KEY,
	action        TEXT NOT NULL,
	severity      TEXT NOT NULL,
	session_id    TEXT NOT NULL,
	file          TEXT,
	rule          TEXT,
	column_index  INTEGER,
	rows_affected INTEGER NOT NULL DEFAULT 0,
	ip_address    TEXT,
	created_at    TIMESTAMPTZ NOT NULL
)`

const insertSQL = `INSERT INTO filter_audit
	(id, action, severity, session_id, file, rule, column_index, rows_affected, ip_address, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const recentSQL = `SELECT id, action, severity, session_id, file, rule, column_index, rows_affected, ip_address, created_at
	FROM filter_audit WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`

// DefaultHistoryLimit caps Recent when the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// PostgresRecorder stores entries in the filter_audit table.
type PostgresRecorder struct {
	db DBTX
}

var _ History = (*PostgresRecorder)(nil)

// NewPostgresRecorder wraps db. Call Migrate once before recording.
func NewPostgresRecorder(db DBTX) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

// Migrate creates the audit table if it does not exist.
func (r *PostgresRecorder) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create filter_audit: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, insertSQL,
		pgtype.UUID{Bytes: e.ID, Valid: true},
		string(e.Action),
		string(e.Severity),
		e.SessionID,
		toPgText(e.File),
		toPgText(e.Rule),
		toPgColumn(e.Column),
		int32(e.RowsAffected),
		toPgText(e.IPAddress),
		pgtype.Timestamptz{Time: e.CreatedAt, Valid: true},
	)
	if err != nil {
		return fmt.Errorf("insert audit %s: %w", e.Action, err)
	}
	return nil
}

// Recent returns the newest entries for a session.
func (r *PostgresRecorder) Recent(ctx context.Context, sessionID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	rows, err := r.db.Query(ctx, recentSQL, sessionID, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			id                     pgtype.UUID
			action, severity, sess string
			file, rule, ip         pgtype.Text
			column                 pgtype.Int4
			affected               int32
			created                pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &action, &severity, &sess, &file, &rule, &column, &affected, &ip, &created); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e := Entry{
			ID:           id.Bytes,
			Action:       Action(action),
			Severity:     Severity(severity),
			SessionID:    sess,
			File:         file.String,
			Rule:         rule.String,
			Column:       -1,
			RowsAffected: int(affected),
			IPAddress:    ip.String,
			CreatedAt:    created.Time,
		}
		if column.Valid {
			e.Column = int(column.Int32)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read audit: %w", err)
	}
	return entries, nil
}

func toPgText(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgColumn stores a negative column as NULL.
func toPgColumn(i int) pgtype.Int4 {
	if i < 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(i), Valid: true}
}
