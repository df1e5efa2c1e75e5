package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []interface{}
}

// fakeDB records Exec calls and fails Query.
type fakeDB struct {
	calls   []execCall
	execErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	return nil, errors.New("connection refused")
}

func (f *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func TestNewEntry(t *testing.T) {
	e := NewEntry(ActionConfirm, "s1")

	assert.NotEqual(t, [16]byte{}, [16]byte(e.ID))
	assert.Equal(t, SeverityHigh, e.Severity)
	assert.Equal(t, -1, e.Column)
	assert.False(t, e.CreatedAt.IsZero())

	assert.Equal(t, SeverityLow, NewEntry(ActionFilter, "s1").Severity)
	assert.Equal(t, SeverityMedium, NewEntry(ActionLoad, "s1").Severity)
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := NewLogRecorder(slog.New(slog.NewTextHandler(&buf, nil)))

	e := NewEntry(ActionSave, "s1")
	e.File = "out.csv"
	e.RowsAffected = 4
	require.NoError(t, r.Record(context.Background(), e))

	out := buf.String()
	assert.Contains(t, out, "action=save")
	assert.Contains(t, out, "session_id=s1")
	assert.Contains(t, out, "rows_affected=4")
}

func TestPostgresRecorder_Migrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresRecorder(db).Migrate(context.Background()))

	require.Len(t, db.calls, 1)
	assert.True(t, strings.HasPrefix(db.calls[0].sql, "CREATE TABLE IF NOT EXISTS filter_audit"))
}

func TestPostgresRecorder_Record(t *testing.T) {
	db := &fakeDB{}
	r := NewPostgresRecorder(db)

	e := NewEntry(ActionFilter, "s1")
	e.Rule = "email"
	e.Column = 2
	e.RowsAffected = 7
	require.NoError(t, r.Record(context.Background(), e))

	require.Len(t, db.calls, 1)
	args := db.calls[0].args
	require.Len(t, args, 10)
	assert.Equal(t, pgtype.UUID{Bytes: e.ID, Valid: true}, args[0])
	assert.Equal(t, "filter", args[1])
	assert.Equal(t, pgtype.Text{Valid: false}, args[4], "empty file is NULL")
	assert.Equal(t, pgtype.Text{String: "email", Valid: true}, args[5])
	assert.Equal(t, pgtype.Int4{Int32: 2, Valid: true}, args[6])
	assert.Equal(t, int32(7), args[7])
}

func TestPostgresRecorder_NegativeColumnIsNull(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewPostgresRecorder(db).Record(context.Background(), NewEntry(ActionLoad, "s1")))
	assert.Equal(t, pgtype.Int4{Valid: false}, db.calls[0].args[6])
}

func TestPostgresRecorder_Errors(t *testing.T) {
	db := &fakeDB{execErr: errors.New("relation does not exist")}
	r := NewPostgresRecorder(db)

	err := r.Record(context.Background(), NewEntry(ActionSave, "s1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit save")

	_, err = r.Recent(context.Background(), "s1", 0)
	assert.ErrorContains(t, err, "connection refused")
}
