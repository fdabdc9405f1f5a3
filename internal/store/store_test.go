package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func layout() *table.Table {
	tb := table.MustNew("Layout_Depósitos", []string{"Merge_Key_Aux", "Amount in Doc. Curr.", "TC Reporte", "Nombre Cliente"})
	_ = tb.AppendStrings("100000123", "1500.00", "19.3000", "ACME, S.A.")
	_ = tb.AppendRow(table.String("100000124"), table.Null(), table.String("1.0000"), table.Null())
	return tb
}

func TestParseFormatAndPolicy(t *testing.T) {
	for s, want := range map[string]Format{"columnar": Columnar, "CSV": Delimited, "styled": Styled} {
		got, err := ParseFormat(s)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", s, got, err)
		}
	}
	if _, err := ParseFormat("xml"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
	if _, err := ParsePolicy("fuzzy"); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("expected ErrInvalidPolicy, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"Reporte CLIENTES enero.parquet",
		"proveedores.parquet",
		"proveedores_old.parquet",
		"_stage.yaml",
		"clientes.txt",
	)
	if err := os.Mkdir(filepath.Join(dir, "bancos.parquet"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		pattern string
		policy  Policy
		status  Status
		matches int
	}{
		{"substring single", "clientes", Substring, Found, 1},
		{"substring ambiguous", "PROVEEDORES", Substring, Ambiguous, 2},
		{"exact picks one", "Proveedores", Exact, Found, 1},
		{"directories ignored", "bancos", Substring, NotFound, 0},
		{"underscore files ignored", "stage", Substring, NotFound, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Resolve(dir, tt.pattern, tt.policy, ".parquet")
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if res.Status != tt.status || len(res.Candidates) != tt.matches {
				t.Errorf("got %s with %v", res.Status, res.Candidates)
			}
			if res.Status == Found && res.Path != res.Candidates[0] {
				t.Errorf("path = %q", res.Path)
			}
		})
	}

	res, _ := Resolve(dir, "proveedores", Substring, ".parquet")
	want := []string{filepath.Join(dir, "proveedores.parquet"), filepath.Join(dir, "proveedores_old.parquet")}
	if !reflect.DeepEqual(res.Candidates, want) {
		t.Errorf("candidates not sorted: %v", res.Candidates)
	}
}

func TestLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "a_bancos.parquet", "b_bancos.parquet")
	l := NewLoader(dir, Substring, Columnar)

	if _, err := l.Load("clientes"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err := l.Load("bancos")
	var amb *AmbiguousError
	if !errors.As(err, &amb) || len(amb.Candidates) != 2 {
		t.Errorf("expected AmbiguousError, got %v", err)
	}
}

func TestColumnarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(nil)
	src := layout()

	path, err := w.Write(src, dir, "cobranza", Columnar)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if filepath.Ext(path) != ".parquet" {
		t.Errorf("path = %s", path)
	}

	got, err := NewLoader(dir, Exact, Columnar).Load("cobranza")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.Columns(), src.Columns()) {
		t.Errorf("columns = %v", got.Columns())
	}
	if got.NumRows() != src.NumRows() {
		t.Fatalf("rows = %d", got.NumRows())
	}
	for r := 0; r < src.NumRows(); r++ {
		if !reflect.DeepEqual(got.Row(r), src.Row(r)) {
			t.Errorf("row %d = %+v, want %+v", r, got.Row(r), src.Row(r))
		}
	}
}

func TestColumnarEmptyTable(t *testing.T) {
	dir := t.TempDir()
	src := table.MustNew("emitidos", []string{"UUID", "Serie", "Folio"})
	if _, err := NewWriter(nil).Write(src, dir, "emitidos", Columnar); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadFile(filepath.Join(dir, "emitidos.parquet"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.NumRows() != 0 || !reflect.DeepEqual(got.Columns(), src.Columns()) {
		t.Errorf("got %v with %d rows", got.Columns(), got.NumRows())
	}
}

func TestDelimitedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter(nil).Write(layout(), dir, "Layout_Depósitos", Delimited)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.Cell(0, 3) != table.String("ACME, S.A.") {
		t.Errorf("quoted field = %+v", got.Cell(0, 3))
	}
	if !got.Cell(1, 1).IsNull() {
		t.Errorf("empty field should read back as null, got %+v", got.Cell(1, 1))
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestDelimitedWriteErrors(t *testing.T) {
	if err := encodeDelimited(failingWriter{}, layout(), ','); err == nil {
		t.Error("expected write error")
	}
	missing := filepath.Join(t.TempDir(), "missing", "out.csv")
	if err := writeDelimited(missing, layout(), ','); err == nil {
		t.Error("expected create error")
	}

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := writeDelimited(path, layout(), ';'); err != nil {
		t.Fatalf("writeDelimited: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "Merge_Key_Aux;Amount in Doc. Curr.;TC Reporte;Nombre Cliente\n"; len(data) < len(want) || string(data[:len(want)]) != want {
		t.Errorf("header = %q", data)
	}
}

func TestStyledWorkbook(t *testing.T) {
	dir := t.TempDir()
	path, err := NewWriter([]string{"TC Reporte"}).Write(layout(), dir, "Layout_Depósitos", Styled)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); !reflect.DeepEqual(got, []string{DefaultSheet}) {
		t.Fatalf("sheets = %v", got)
	}
	rows, err := f.GetRows(DefaultSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if !reflect.DeepEqual(rows[0], layout().Columns()) {
		t.Errorf("header = %v", rows[0])
	}
	if len(rows) != 3 {
		t.Errorf("rows = %d, want 3", len(rows))
	}

	raw, err := f.GetCellValue(DefaultSheet, "C2", excelize.Options{RawCellValue: true})
	if err != nil || raw != "19.3" {
		t.Errorf("rate cell raw value = %q, %v", raw, err)
	}

	panes, err := f.GetPanes(DefaultSheet)
	if err != nil {
		t.Fatalf("GetPanes: %v", err)
	}
	if !panes.Freeze || panes.YSplit != 1 {
		t.Errorf("panes = %+v", panes)
	}

	styleID, err := f.GetCellStyle(DefaultSheet, "B2")
	if err != nil {
		t.Fatalf("GetCellStyle: %v", err)
	}
	style, err := f.GetStyle(styleID)
	if err != nil {
		t.Fatalf("GetStyle: %v", err)
	}
	if style.Font == nil || style.Font.Family != DefaultFont || style.Font.Size != DefaultFontSize {
		t.Errorf("font = %+v", style.Font)
	}
}

func TestReadStyledRejected(t *testing.T) {
	if _, err := ReadFile("report.xlsx"); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}
