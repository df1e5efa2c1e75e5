package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_CSVHeaderAndRows(t *testing.T) {
	path := writeFile(t, "people.csv", "a,b,c\n1,2,3\n4,5,6\n")

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, tbl.Columns())
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"1", "2", "3"}, tbl.Row(0).Fields())
	assert.Equal(t, []string{"4", "5", "6"}, tbl.Row(1).Fields())
}

func TestReadCSV(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		columns []string
		rows    [][]string
		wantErr error
	}{
		{
			name:    "quoted fields",
			input:   "name,addr\n\"Smith, John\",\"Say \"\"hi\"\"\"\n",
			columns: []string{"name", "addr"},
			rows:    [][]string{{"Smith, John", `Say "hi"`}},
		},
		{
			name:    "BOM stripped from first header",
			input:   "\xEF\xBB\xBFid,email\n1,a@b.edu\n",
			columns: []string{"id", "email"},
			rows:    [][]string{{"1", "a@b.edu"}},
		},
		{
			name:    "short row padded",
			input:   "a,b,c\n1\n",
			columns: []string{"a", "b", "c"},
			rows:    [][]string{{"1", "", ""}},
		},
		{
			name:    "long row truncated",
			input:   "a,b\n1,2,3\n",
			columns: []string{"a", "b"},
			rows:    [][]string{{"1", "2"}},
		},
		{
			name:    "empty header cell gets reader name",
			input:   "a,,c\n1,2,3\n",
			columns: []string{"a", "Column2", "c"},
			rows:    [][]string{{"1", "2", "3"}},
		},
		{
			name:    "header only",
			input:   "a,b\n",
			columns: []string{"a", "b"},
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: ErrEmptyFile,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ReadCSV(strings.NewReader(tt.input))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.columns, tbl.Columns())
			require.Equal(t, len(tt.rows), tbl.Len())
			for i, want := range tt.rows {
				assert.Equal(t, want, tbl.Row(i).Fields())
			}
		})
	}
}

func TestReadCSV_DuplicateColumns(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_XLSXHeaderRowKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Name", "", "Email"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Ann", "x", "ann@uni.edu"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	tbl, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Column2", "Email"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"Name", "", "Email"}, tbl.Row(0).Fields())
	assert.Equal(t, []string{"Ann", "x", "ann@uni.edu"}, tbl.Row(1).Fields())
}

func TestLoad_CorruptWorkbook(t *testing.T) {
	path := writeFile(t, "broken.xlsx", "not a zip archive")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestFromSheet(t *testing.T) {
	t.Run("ragged rows widen to longest", func(t *testing.T) {
		tbl, err := fromSheet([][]string{
			{"h1"},
			nil,
			{"a", "b", "c"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "Column2", "Column3"}, tbl.Columns())
		assert.Equal(t, 3, tbl.Len())
		assert.Equal(t, []string{"", "", ""}, tbl.Row(1).Fields())
	})

	t.Run("no rows", func(t *testing.T) {
		_, err := fromSheet(nil)
		assert.ErrorIs(t, err, ErrEmptySheet)
	})
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"data.csv", FormatCSV},
		{"DATA.CSV", FormatCSV},
		{"legacy.xls", FormatXLS},
		{"book.xlsx", FormatXLSX},
		{"noext", FormatXLSX},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.path))
		})
	}
}
