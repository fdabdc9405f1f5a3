// =============================================================================
// Ledger Reconciliation - Spreadsheet Parser
// =============================================================================
//
// Reads the first sheet of a spreadsheet export into a raw table:
//
//   | Extension   | Library            |
//   |-------------|--------------------|
//   | .xlsx/.xlsm | excelize           |
//   | .xls        | extrame/xls (BIFF) |
//
// The first non-empty row is the header. Cells are read as their stored
// value, not their display format: dates arrive as Excel serial numbers and
// large document numbers keep every digit. The clean stage turns both into
// their canonical text.
//
// =============================================================================

package xlsxparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-recon/internal/csvparser"
	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// ErrNoSheet is returned for a workbook without a readable first sheet.
var ErrNoSheet = errors.New("workbook has no sheets")

// ParseXLSX reads the first sheet of an Office Open XML workbook.
func ParseXLSX(path, name string) (*table.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrNoSheet
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheetName, err)
	}
	return buildTable(name, rows)
}

// ParseXLS reads the first sheet of a legacy BIFF workbook.
func ParseXLS(path, name string) (*table.Table, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, ErrNoSheet
	}

	rows := make([][]string, 0, int(sheet.MaxRow)+1)
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		values := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			values[c] = row.Col(c)
		}
		rows = append(rows, values)
	}
	return buildTable(name, rows)
}

// buildTable turns sheet rows into a table. Leading empty rows are skipped
// and the next row is the header; trailing empty rows are dropped.
func buildTable(name string, rows [][]string) (*table.Table, error) {
	start := 0
	for start < len(rows) && isRowEmpty(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet is empty")
	}

	headers := csvparser.CleanHeaders(rows[start])
	t, err := table.New(name, headers)
	if err != nil {
		return nil, err
	}

	values := make([]string, len(headers))
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}
		for c := range values {
			if c < len(row) {
				values[c] = strings.TrimSpace(row[c])
			} else {
				values[c] = ""
			}
		}
		if err := t.AppendStrings(values...); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return t, nil
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
