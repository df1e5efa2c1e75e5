package table

import (
	"path/filepath"
	"strings"
)

// Format identifies how a source file is parsed.
type Format int

const (
	FormatCSV Format = iota
	FormatXLS
	FormatXLSX
)

// String returns the conventional extension-style name of the format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatXLS:
		return "xls"
	case FormatXLSX:
		return "xlsx"
	default:
		return "unknown"
	}
}

// DetectFormat picks a format from the path's extension. Anything that is
// neither .csv nor .xls is treated as an OOXML workbook.
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV
	case ".xls":
		return FormatXLS
	default:
		return FormatXLSX
	}
}
