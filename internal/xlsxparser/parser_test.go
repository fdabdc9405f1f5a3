package xlsxparser

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

func writeWorkbook(t *testing.T, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "BANCOS_2026.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]interface{}{
		{},
		{"Account", "Document Number", "", "Document Date"},
		{"1020", 100000123, "x", 45292},
		{},
		{"1021", "FAC-001"},
	})

	tb, err := ParseXLSX(path, "BANCOS_2026")
	if err != nil {
		t.Fatalf("ParseXLSX: %v", err)
	}
	if tb.Name != "BANCOS_2026" {
		t.Errorf("name = %q", tb.Name)
	}
	want := []string{"Account", "Document Number", "Column_3", "Document Date"}
	if !reflect.DeepEqual(tb.Columns(), want) {
		t.Errorf("columns = %v, want %v", tb.Columns(), want)
	}
	if tb.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", tb.NumRows())
	}
	if tb.Cell(0, 1) != table.String("100000123") {
		t.Errorf("document number = %+v", tb.Cell(0, 1))
	}
	if tb.Cell(0, 3) != table.String("45292") {
		t.Errorf("raw date serial = %+v", tb.Cell(0, 3))
	}
	if tb.Cell(1, 3) != table.String("") {
		t.Errorf("short row padding = %+v", tb.Cell(1, 3))
	}
}

func TestParseXLSXEmptySheet(t *testing.T) {
	path := writeWorkbook(t, nil)
	if _, err := ParseXLSX(path, "empty"); err == nil {
		t.Error("expected error for empty sheet")
	}
}

func TestParseXLSXMissingFile(t *testing.T) {
	if _, err := ParseXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), "nope"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBuildTableDuplicateHeaders(t *testing.T) {
	tb, err := buildTable("t", [][]string{{"Text", "Text"}, {"a", "b", "extra"}})
	if err != nil {
		t.Fatalf("buildTable: %v", err)
	}
	if want := []string{"Text", "Text.1"}; !reflect.DeepEqual(tb.Columns(), want) {
		t.Errorf("columns = %v", tb.Columns())
	}
	if tb.NumRows() != 1 || tb.Cell(0, 1) != table.String("b") {
		t.Errorf("row = %v", tb.Row(0))
	}
}
