package store

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// Default report styling.
const (
	DefaultSheet    = "Layout_Cia"
	DefaultFont     = "Montserrat"
	DefaultFontSize = 12.0
	RateNumFmt      = "0.0000"
)

// writeStyled writes t to a single-sheet workbook: header row frozen,
// report font on every column, rate columns stored as numbers with four
// decimals shown.
func (w *Writer) writeStyled(path string, t *table.Table) error {
	sheet := w.Sheet
	if sheet == "" {
		sheet = DefaultSheet
	}
	font := &excelize.Font{Family: w.FontFamily, Size: w.FontSize}
	if font.Family == "" {
		font.Family = DefaultFont
	}
	if font.Size == 0 {
		font.Size = DefaultFontSize
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}

	baseStyle, err := f.NewStyle(&excelize.Style{Font: font})
	if err != nil {
		return err
	}
	numFmt := RateNumFmt
	rateStyle, err := f.NewStyle(&excelize.Style{Font: font, CustomNumFmt: &numFmt})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Family: font.Family, Size: font.Size, Bold: true}})
	if err != nil {
		return err
	}

	rate := make(map[int]bool, len(w.RateColumns))
	for _, name := range w.RateColumns {
		if i := t.Index(name); i >= 0 {
			rate[i] = true
		}
	}

	if t.NumCols() > 0 {
		last, err := excelize.ColumnNumberToName(t.NumCols())
		if err != nil {
			return err
		}
		if err := f.SetColStyle(sheet, "A:"+last, baseStyle); err != nil {
			return err
		}
		for i := range rate {
			col, err := excelize.ColumnNumberToName(i + 1)
			if err != nil {
				return err
			}
			if err := f.SetColStyle(sheet, col, rateStyle); err != nil {
				return err
			}
		}
	}

	header := make([]interface{}, t.NumCols())
	for i, name := range t.Columns() {
		header[i] = name
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return err
	}

	for r := 0; r < t.NumRows(); r++ {
		values := make([]interface{}, t.NumCols())
		for c := range values {
			cell := t.Cell(r, c)
			switch {
			case cell.IsNull():
				values[c] = nil
			case rate[c]:
				values[c] = rateValue(cell.Str)
			default:
				values[c] = cell.Str
			}
		}
		axis, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	return f.SaveAs(path)
}

// rateValue returns the number for a rate cell, or the text itself when it
// is not numeric.
func rateValue(s string) interface{} {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	v, _ := d.Float64()
	return v
}
