package core

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JonMunkholm/filterit/internal/record"
	"github.com/JonMunkholm/filterit/internal/table"
)

// LoadFunc reads a source file into a table.
type LoadFunc func(path string) (*table.Table, error)

// Pending is a staged filter result: the rows that survive plus the rows
// the filter removed. It only becomes the committed table on confirm.
type Pending struct {
	Table   *table.Table
	Removed []table.Row
	Rule    RuleKind
	Column  int
}

// Session owns one committed table and at most one pending filter result.
//
// A Session is meant for a single caller issuing one operation at a time; it
// does no locking of its own.
type Session struct {
	lists  MatchLists
	load   LoadFunc
	logger *slog.Logger

	source    string
	delimited bool
	committed *table.Table
	pending   *Pending
	last      Status
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for operation tracing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithLoader replaces table.Load as the file reader.
func WithLoader(fn LoadFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.load = fn
		}
	}
}

// NewSession creates an empty session. The match lists are copied and never
// change for the life of the session.
func NewSession(lists MatchLists, opts ...Option) *Session {
	s := &Session{
		lists:  lists.clone(),
		load:   table.Load,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MatchLists returns a copy of the session's configured match terms.
func (s *Session) MatchLists() MatchLists {
	return s.lists.clone()
}

// Loaded reports whether a table has been loaded.
func (s *Session) Loaded() bool {
	return s.committed != nil
}

// Source returns the path of the last successfully loaded file.
func (s *Session) Source() string {
	return s.source
}

// RowCount returns the number of rows in the committed table.
func (s *Session) RowCount() int {
	return s.committed.Len()
}

// Headers returns the committed table's column names in ordinal order, or
// an empty slice before a load.
func (s *Session) Headers() []string {
	return s.committed.Columns()
}

// ColumnIndex resolves a column name against the committed table. It
// returns -1 and false before a load or when no column matches.
func (s *Session) ColumnIndex(name string) (int, bool) {
	return s.committed.ColumnIndex(name)
}

// Rows returns the committed table's rows.
func (s *Session) Rows() []table.Row {
	return s.committed.Rows()
}

// Pending returns the staged filter result, if any.
func (s *Session) Pending() (Pending, bool) {
	if s.pending == nil {
		return Pending{}, false
	}
	p := *s.pending
	p.Removed = append([]table.Row(nil), p.Removed...)
	return p, true
}

// LastStatus returns the status of the most recent operation.
func (s *Session) LastStatus() Status {
	return s.last
}

func (s *Session) report(st Status) Status {
	s.last = st
	if st.Failed() {
		s.logger.Debug("session operation failed",
			"kind", st.Kind.String(),
			"message", st.Message,
			"error", st.ErrorMessage,
		)
	}
	return st
}

// LoadFile replaces the committed table with the contents of path and drops
// any pending result. On failure the session is left exactly as it was.
func (s *Session) LoadFile(path string) (bool, Status) {
	t, err := s.load(path)
	if err != nil {
		return false, s.report(ErrorCause(KindLoadFailure, "Could not load file", err))
	}

	s.source = path
	s.delimited = table.DetectFormat(path) == table.FormatCSV
	s.committed = t
	s.pending = nil

	s.logger.Info("file loaded",
		"file", filepath.Base(path),
		"columns", t.Width(),
		"rows", t.Len(),
	)
	return true, s.report(Log(fmt.Sprintf("Loaded %d records from %s", t.Len(), filepath.Base(path))))
}

// Filter stages a new table without the rows whose field at column matches
// the rule, and returns the removed rows. Any earlier unconfirmed result is
// replaced. The committed table is not touched.
func (s *Session) Filter(kind RuleKind, column int) ([]table.Row, Status) {
	none := []table.Row{}

	if s.committed == nil {
		return none, s.report(Fail(KindNoFileLoaded, "No filtering done, file to filter has not been loaded."))
	}
	if !kind.Valid() {
		return none, s.report(Fail(KindInvalidFilterRule, "No filtering done, invalid filter type."))
	}
	if column < 0 {
		return none, s.report(Fail(KindInvalidColumn, "No filtering done, no column selected."))
	}
	if column >= s.committed.Width() {
		return none, s.report(Fail(KindInvalidColumn,
			fmt.Sprintf("No filtering done, column %d is outside the %d loaded columns.", column, s.committed.Width())))
	}

	kept, removed := s.committed.Partition(func(row table.Row) bool {
		return s.lists.matches(kind, row.Field(column))
	})

	s.pending = &Pending{
		Table:   kept,
		Removed: removed,
		Rule:    kind,
		Column:  column,
	}

	s.logger.Debug("filter staged",
		"rule", kind.String(),
		"column", column,
		"removed", len(removed),
		"kept", kept.Len(),
	)
	return removed, s.report(Log(fmt.Sprintf("Records found to be removed: %d", len(removed))))
}

// ConfirmFilter promotes the pending result to the committed table and
// returns how many rows it removed.
func (s *Session) ConfirmFilter() (int, Status) {
	if s.pending == nil {
		return 0, s.report(Fail(KindNoPendingFilter, "No filtering has been done, file data remains unchanged."))
	}

	count := s.committed.Len() - s.pending.Table.Len()
	s.committed = s.pending.Table
	s.pending = nil

	s.logger.Info("filter confirmed", "removed", count, "remaining", s.committed.Len())
	return count, s.report(Log(fmt.Sprintf("Removed %d records", count)))
}

// Discard drops the pending result without applying it and clears the last
// status. It reports whether there was anything to drop.
func (s *Session) Discard() bool {
	had := s.pending != nil
	s.pending = nil
	s.last = Status{}
	return had
}

// WithHeader returns rows preceded by the column names when the committed
// table came from delimited text, whose first line the loader consumed as
// the header. Spreadsheet tables keep row 0 as data, so rows is returned
// unchanged for them.
func (s *Session) WithHeader(rows []table.Row) []table.Row {
	if !s.delimited || s.committed == nil {
		return rows
	}
	out := make([]table.Row, 0, len(rows)+1)
	out = append(out, table.NewRow(s.committed.Columns()...))
	return append(out, rows...)
}

// SaveRecords writes rows to path as delimited text, exactly as given.
func (s *Session) SaveRecords(path string, rows []table.Row) (bool, Status) {
	return s.save(path, rows, len(rows))
}

// Export writes rows to path under the source file's header line, so the
// output loads back with the same columns and records.
func (s *Session) Export(path string, rows []table.Row) (bool, Status) {
	return s.save(path, s.WithHeader(rows), len(rows))
}

// SaveCommitted exports the committed table's rows to path.
func (s *Session) SaveCommitted(path string) (bool, Status) {
	if s.committed == nil {
		return false, s.report(Fail(KindNoFileLoaded, "Nothing saved, no file has been loaded."))
	}
	return s.Export(path, s.committed.Rows())
}

func (s *Session) save(path string, lines []table.Row, records int) (bool, Status) {
	if err := record.Save(path, lines); err != nil {
		return false, s.report(ErrorCause(KindSaveFailure, "Error saving records", err))
	}
	return true, s.report(Log(fmt.Sprintf("Saved %d records to %s", records, filepath.Base(path))))
}

// OutputPath names an export next to source, tagged with label and a
// timestamp so repeated exports never overwrite each other, e.g.
// "list.csv_removed_1700000000000000000.csv".
func OutputPath(source, label string, now time.Time) string {
	return source + "_" + label + "_" + strconv.FormatInt(now.UnixNano(), 10) + ".csv"
}
