package table

// spreadsheet.go reads the first sheet of a workbook into a table.
//
// Workbooks carry no separate header record. Columns start with reader
// assigned names (Column1..N) and each is then renamed after the non-empty
// value in the same position of the first row. The first row is kept as a
// data row, so a header line shows up again when the table is written out.

import (
	"errors"
	"fmt"
	"os"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// ErrEmptySheet is returned when the first sheet of a workbook has no rows.
var ErrEmptySheet = errors.New("empty sheet")

func loadXLSX(path string) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptySheet
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromSheet(rows)
}

func loadXLS(path string) (*Table, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer fh.Close()

	wb, err := xls.OpenReader(fh, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("parse workbook: %w", err)
	}

	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrEmptySheet
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheetRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}

	// MaxRow is zero both for a one-row sheet and an empty one.
	if len(rows) == 1 && rows[0] == nil {
		rows = nil
	}
	return fromSheet(rows)
}

// sheetRow returns row i of sheet, or nil when the sheet has no record for
// it. xls panics on rows it never saw.
func sheetRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// fromSheet applies the workbook header convention to raw sheet rows.
func fromSheet(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	width := 0
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}

	columns := make([]string, width)
	for i := range columns {
		columns[i] = defaultColumnName(i)
		if i < len(rows[0]) && rows[0][i] != "" {
			columns[i] = rows[0][i]
		}
	}

	b := NewBuilder(columns)
	for _, r := range rows {
		b.Append(Row{fields: r})
	}
	return b.Build()
}
