package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrEmptyFile is returned when a source holds no records at all.
var ErrEmptyFile = errors.New("empty file")

// Load reads the file at path into a table, choosing the parser from the
// file extension.
func Load(path string) (*Table, error) {
	switch DetectFormat(path) {
	case FormatCSV:
		return loadCSV(path)
	case FormatXLS:
		return loadXLS(path)
	default:
		return loadXLSX(path)
	}
}

func loadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses delimited text. The first record names the columns and
// every later record becomes a data row. A leading UTF-8 BOM is dropped and
// invalid UTF-8 is replaced before parsing.
func ReadCSV(r io.Reader) (*Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		if name == "" {
			name = defaultColumnName(i)
		}
		columns[i] = name
	}

	b := NewBuilder(columns)
	for n := 1; ; n++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", n, err)
		}
		if b.Append(Row{fields: record}) {
			slog.Warn("csv row wider than header, extra fields dropped",
				"record", n,
				"fields", len(record),
				"columns", len(columns),
			)
		}
	}

	return b.Build()
}
