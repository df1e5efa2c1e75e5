package record

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/filterit/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLine(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		want   string
	}{
		{"plain", []string{"a", "b", "c"}, "a,b,c"},
		{"comma quoted", []string{"Smith, John", "x"}, `"Smith, John",x`},
		{"quote doubled", []string{`Say "hi"`}, `"Say ""hi"""`},
		{"empty fields kept", []string{"", "", ""}, ",,"},
		{"single field", []string{"only"}, "only"},
		{"no fields", nil, ""},
		{"newline not quoted", []string{"a\nb"}, "a\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WriteLine(tt.fields))
		})
	}
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	rows := []table.Row{
		table.NewRow("id", "name"),
		table.NewRow("1", "Smith, John"),
	}

	require.NoError(t, Write(&buf, rows))
	assert.Equal(t, "id,name\n1,\"Smith, John\"\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_Error(t *testing.T) {
	rows := []table.Row{table.NewRow("x")}
	err := Write(failingWriter{}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	src, err := table.ReadCSV(bytes.NewBufferString(
		"name,addr,note\n\"Smith, John\",PO Box 1,\"Say \"\"hi\"\"\"\nAnn,1 Main St,\n"))
	require.NoError(t, err)

	rows := append([]table.Row{table.NewRow(src.Columns()...)}, src.Rows()...)
	require.NoError(t, Save(path, rows))

	back, err := table.Load(path)
	require.NoError(t, err)

	assert.Equal(t, src.Columns(), back.Columns())
	require.Equal(t, src.Len(), back.Len())
	for i := 0; i < src.Len(); i++ {
		assert.Equal(t, src.Row(i).Fields(), back.Row(i).Fields())
	}
}

func TestSave_TruncatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old,content,that,is,long\n"), 0o644))

	require.NoError(t, Save(path, []table.Row{table.NewRow("new")}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(data))
}

func TestSave_BadPath(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "missing", "out.csv"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
