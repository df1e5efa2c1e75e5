// Package table provides the in-memory row/column model and the loaders that
// read delimited text and spreadsheet files into it.
//
// Tables are immutable once built. Code that needs a modified table builds a
// new one with a [Builder], so rows handed out by one table are never changed
// underneath the caller.
package table

import (
	"fmt"
	"strings"
)

// Row is one record of a table. Its field count always equals the column
// count of the table it was built into.
type Row struct {
	fields []string
}

// NewRow creates a row holding a copy of fields.
func NewRow(fields ...string) Row {
	return Row{fields: append([]string(nil), fields...)}
}

// Len returns the number of fields in the row.
func (r Row) Len() int {
	return len(r.fields)
}

// Field returns the value at index i, or "" when i is out of range.
func (r Row) Field(i int) string {
	if i < 0 || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// Fields returns a copy of the row's values in column order.
func (r Row) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Table is an ordered set of uniquely named columns and the rows aligned to them.
type Table struct {
	columns []string
	rows    []Row
}

// Columns returns the column names in ordinal order.
func (t *Table) Columns() []string {
	if t == nil {
		return []string{}
	}
	return append([]string{}, t.columns...)
}

// Width returns the number of columns.
func (t *Table) Width() int {
	if t == nil {
		return 0
	}
	return len(t.columns)
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Row returns the row at index i. It panics if i is out of range, like a slice index.
func (t *Table) Row(i int) Row {
	return t.rows[i]
}

// Rows returns the table's rows in order. The slice is a copy; the rows
// themselves are shared, which is safe because rows are never mutated.
func (t *Table) Rows() []Row {
	if t == nil {
		return nil
	}
	return append([]Row(nil), t.rows...)
}

// ColumnIndex returns the ordinal of the named column, matched
// case-insensitively after trimming surrounding space from name. It returns
// -1 when no column matches.
func (t *Table) ColumnIndex(name string) (int, bool) {
	if t == nil {
		return -1, false
	}
	name = strings.TrimSpace(name)
	for i, c := range t.columns {
		if strings.EqualFold(c, name) {
			return i, true
		}
	}
	return -1, false
}

// Partition splits t by remove. The returned table has the same columns and
// the rows for which remove is false; the slice holds the others. Both keep
// the original row order and t itself is unchanged.
func (t *Table) Partition(remove func(Row) bool) (*Table, []Row) {
	kept := &Table{columns: t.Columns()}
	removed := []Row{}
	for _, r := range t.rows {
		if remove(r) {
			removed = append(removed, r)
			continue
		}
		kept.rows = append(kept.rows, r)
	}
	return kept, removed
}

// Builder accumulates rows for a new table with a fixed column set.
type Builder struct {
	columns []string
	rows    []Row
}

// NewBuilder starts a table with the given column names.
// Names must be unique; Build reports a duplicate.
func NewBuilder(columns []string) *Builder {
	return &Builder{columns: append([]string(nil), columns...)}
}

// Append adds a row. Short rows are padded with empty fields and long rows
// are cut to the column count so the table's width invariant always holds.
// It reports whether the row had to be truncated.
func (b *Builder) Append(r Row) (truncated bool) {
	width := len(b.columns)
	switch {
	case len(r.fields) == width:
		b.rows = append(b.rows, r)
	case len(r.fields) < width:
		padded := make([]string, width)
		copy(padded, r.fields)
		b.rows = append(b.rows, Row{fields: padded})
	default:
		b.rows = append(b.rows, Row{fields: r.fields[:width:width]})
		truncated = true
	}
	return truncated
}

// Build returns the finished table.
func (b *Builder) Build() (*Table, error) {
	seen := make(map[string]int, len(b.columns))
	for i, c := range b.columns {
		if prev, ok := seen[c]; ok {
			return nil, fmt.Errorf("duplicate column name %q at positions %d and %d", c, prev+1, i+1)
		}
		seen[c] = i
	}
	return &Table{
		columns: append([]string(nil), b.columns...),
		rows:    append([]Row(nil), b.rows...),
	}, nil
}

// defaultColumnName is the name a reader assigns to a column that has none.
func defaultColumnName(i int) string {
	return fmt.Sprintf("Column%d", i+1)
}
