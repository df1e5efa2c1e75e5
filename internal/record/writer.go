// Package record serializes table rows to comma-separated text.
//
// The quoting rule is deliberately narrow: a field is quoted only when it
// contains a comma or a double quote, and embedded quotes are doubled.
// Fields with line breaks or surrounding spaces are written as-is.
package record

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/filterit/internal/table"
)

// WriteLine renders fields as one line of text without a line terminator.
func WriteLine(fields []string) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		if strings.ContainsAny(f, `,"`) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
			continue
		}
		b.WriteString(f)
	}
	return b.String()
}

// Write writes one line per row to w, each terminated by "\n".
func Write(w io.Writer, rows []table.Row) error {
	bw := bufio.NewWriter(w)
	for i, r := range rows {
		if _, err := bw.WriteString(WriteLine(r.Fields())); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
		if err := bw.WriteByte('\n'); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// Save creates or truncates the file at path and writes rows to it.
// The file is closed on every path; a failed close is reported when the
// write itself succeeded.
func Save(path string, rows []table.Row) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if err := Write(f, rows); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
