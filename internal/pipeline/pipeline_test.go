package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/join"
	"github.com/ginjaninja78/ledger-recon/internal/schema"
	"github.com/ginjaninja78/ledger-recon/internal/store"
	"github.com/ginjaninja78/ledger-recon/internal/table"
	"github.com/ginjaninja78/ledger-recon/internal/validation"
)

// sources are the seven exports of one reconciliation period.
var sources = map[string]string{
	"PROVEEDORES_ENE.csv": "Description Offsetting Item,Assignment,Document Number,Document Type,Tax Code,Withholding Tax Amt,Clearing Document,Text,Posting Key\n" +
		"Proveedor Uno,A-1,3.00000789E+8,KR,V1,0,3.00000999E+8,servicios,31\n",
	"CLIENTES_ENE.csv": "Description Offsetting Item,Assignment,Document Number,Document Type,Tax Code,Withholding Tax Amt,Clearing Document,Text,Posting Key\n" +
		"ACME SA,F-77,1.00000123E+8,DR,A1,nan,2.00000456E+8,factura enero,01\n" +
		"Otro Cliente,F-78,100000124.0,DR,A1,,,None,01\n",
	"COBRADO_ENE.csv": "Debit/Credit Ind.,Offsetting Acct Type,Document Number,Document Type,Assignment,Description Offsetting Item,Document Date,Amount in Local Currency,Amount in Doc. Curr.,Document Currency,Eff. Exchange Rate,Reference\n" +
		"S,D,1400000001,DZ,1000001230000001,ACME SA,2026-01-15,1930.00,100.00,USD,19.30001,R1\n" +
		"S,D,1400000002,DZ,9990000000002,Sin Cliente,20260116,500.00,500.00,MXN,NaN,R2\n",
	"ACREDITABLE_ENE.csv": "Debit/Credit Ind.,Offsetting Acct Type,Document Number,Document Type,Assignment,Description Offsetting Item,Document Date,Amount in Local Currency,Amount in Doc. Curr.,Document Currency,Eff. Exchange Rate\n" +
		"H,K,1500000001,KZ,3000007890000001,Proveedor Uno,45292,800.00,800.00,MXN,1\n",
	"BANCOS_ENE.csv": "Account,Document Number,Document Date,Amount in Doc. Curr.,Value Date\n" +
		"BBVA 0123,200000456,20/01/2026,100.00,20/01/2026\n",
	"EMITIDOS_ENE.csv": "UUID,Serie,Folio,Total\n" +
		"6F1C2A10-0000-4000-8000-000000000001,A,77,1930.00\n",
	"RECIBIDOS_ENE.csv": "UUID,Serie,Folio,Total\n" +
		"6F1C2A10-0000-4000-8000-000000000002,B,12,800.00\n",
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.InputDir = filepath.Join(root, "input")
	cfg.RawDir = filepath.Join(root, "data", "raw")
	cfg.CleanDir = filepath.Join(root, "data", "clean")
	cfg.MixDir = filepath.Join(root, "data", "mix")
	cfg.InputArchiveDir = filepath.Join(root, "archive")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeSources(t *testing.T, dir string) {
	t.Helper()
	for name, content := range sources {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func column(t *testing.T, tb *table.Table, name string) []table.Cell {
	t.Helper()
	cells, err := tb.Column(name)
	if err != nil {
		t.Fatalf("column %q: %v (have %v)", name, err, tb.Columns())
	}
	return cells
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)

	core, logs := observer.New(zapcore.InfoLevel)
	p := New(cfg, zap.New(core))
	reports, err := p.Run(context.Background(), Raw)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("reports = %d, want 3", len(reports))
	}

	// Cleaned collections: assignment normalized then stripped of its
	// seven-character suffix, rate and date canonical.
	cobranza, err := store.ReadFile(filepath.Join(cfg.CleanDir, "cobranza.parquet"))
	if err != nil {
		t.Fatalf("read cobranza: %v", err)
	}
	if got := column(t, cobranza, "Merge_Key_Aux")[0]; got != table.String("100000123") {
		t.Errorf("Merge_Key_Aux = %+v, want 100000123", got)
	}
	rates := column(t, cobranza, "TC Reporte")
	if rates[0] != table.String("19.3000") || rates[1] != table.String("0.0000") {
		t.Errorf("TC Reporte = %v", rates)
	}
	dates := column(t, cobranza, "Fecha de emisión")
	if dates[0] != table.String("15/01/2026") || dates[1] != table.String("16/01/2026") {
		t.Errorf("Fecha de emisión = %v", dates)
	}
	if cobranza.HasColumn("Reference") {
		t.Error("unlisted column kept")
	}

	clientes, err := store.ReadFile(filepath.Join(cfg.CleanDir, "clientes.parquet"))
	if err != nil {
		t.Fatalf("read clientes: %v", err)
	}
	if got := column(t, clientes, "Merge_Key"); got[0] != table.String("100000123") || got[1] != table.String("100000124") {
		t.Errorf("clientes Merge_Key = %v", got)
	}
	if got := column(t, clientes, "filtro2")[0]; !got.IsNull() {
		t.Errorf("nan sentinel not canonicalized: %+v", got)
	}

	acreditable, err := store.ReadFile(filepath.Join(cfg.CleanDir, "acreditable.parquet"))
	if err != nil {
		t.Fatalf("read acreditable: %v", err)
	}
	if got := column(t, acreditable, "Fecha de emisión")[0]; got != table.String("01/01/2024") {
		t.Errorf("serial date = %+v", got)
	}

	// Deposits layout: collections joined to customers, then to banks.
	layout, err := store.ReadFile(filepath.Join(cfg.MixDir, "Layout_Depósitos.csv"))
	if err != nil {
		t.Fatalf("read layout: %v", err)
	}
	if layout.NumRows() != 2 {
		t.Fatalf("layout rows = %d, want 2", layout.NumRows())
	}
	if got := column(t, layout, "Merge_Key")[0]; got != table.String("100000123") {
		t.Errorf("matched customer key = %+v", got)
	}
	if got := column(t, layout, "Nombre Cliente")[0]; got != table.String("ACME SA") {
		t.Errorf("Nombre Cliente = %+v", got)
	}
	if got := column(t, layout, "Banco")[0]; got != table.String("BBVA 0123") {
		t.Errorf("Banco = %+v", got)
	}
	if got := column(t, layout, "Merge_Key"+join.Suffix)[0]; got != table.String("200000456") {
		t.Errorf("bank key = %+v", got)
	}
	if got := column(t, layout, "Fecha Banco")[0]; got != table.String("20/01/2026") {
		t.Errorf("Fecha Banco = %+v", got)
	}
	if got := column(t, layout, "Nombre Cliente")[1]; !got.IsNull() {
		t.Errorf("unmatched row has customer %+v", got)
	}

	if _, err := os.Stat(filepath.Join(cfg.MixDir, "Layout_Pagos.csv")); !os.IsNotExist(err) {
		t.Error("disabled layout was written")
	}

	wb, err := excelize.OpenFile(filepath.Join(cfg.MixDir, "Layout_Depósitos.xlsx"))
	if err != nil {
		t.Fatalf("open styled layout: %v", err)
	}
	defer wb.Close()
	if got := wb.GetSheetList(); len(got) != 1 || got[0] != store.DefaultSheet {
		t.Errorf("sheets = %v", got)
	}

	for _, dir := range []string{cfg.RawDir, cfg.CleanDir, cfg.MixDir} {
		m, err := ReadManifest(dir)
		if err != nil {
			t.Fatalf("manifest in %s: %v", dir, err)
		}
		if m.RunID != p.RunID() {
			t.Errorf("manifest run id = %q, want %q", m.RunID, p.RunID())
		}
	}

	clean := reports[1]
	if tr, ok := clean.Table("cobranza"); !ok || tr.Rows != 2 {
		t.Errorf("cobranza report = %+v", tr)
	}
	if clean.SummaryFile == "" {
		t.Error("no summary log for clean stage")
	}

	for _, entry := range logs.All() {
		found := false
		for _, f := range entry.Context {
			if f.Key == "run_id" && f.String == p.RunID() {
				found = true
			}
		}
		if !found {
			t.Fatalf("log %q without run_id", entry.Message)
		}
	}
}

func TestRunCleanRequiresEveryTable(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)
	if err := os.Remove(filepath.Join(cfg.InputDir, "RECIBIDOS_ENE.csv")); err != nil {
		t.Fatal(err)
	}

	p := New(cfg, zaptest.NewLogger(t))
	if _, err := p.RunRaw(context.Background()); err != nil {
		t.Fatalf("RunRaw: %v", err)
	}
	_, err := p.RunClean(context.Background())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entries, _ := os.ReadDir(cfg.CleanDir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".parquet") {
			t.Errorf("partial clean output %s", e.Name())
		}
	}
	if _, err := ReadManifest(cfg.CleanDir); err == nil {
		t.Error("manifest written for a failed stage")
	}
}

func TestRunCleanAmbiguousSource(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)
	extra := filepath.Join(cfg.InputDir, "BANCOS_FEB.csv")
	if err := os.WriteFile(extra, []byte(sources["BANCOS_ENE.csv"]), 0644); err != nil {
		t.Fatal(err)
	}

	p := New(cfg, zap.NewNop())
	_, err := p.Run(context.Background(), Raw)
	var amb *store.AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("candidates = %v", amb.Candidates)
	}
}

func TestRunCleanWarnsWithoutRawManifest(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)

	p := New(cfg, zap.NewNop())
	if _, err := p.RunRaw(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(cfg.RawDir, ManifestFile)); err != nil {
		t.Fatal(err)
	}

	core, logs := observer.New(zapcore.WarnLevel)
	report, err := New(cfg, zap.New(core)).RunClean(context.Background())
	if err != nil {
		t.Fatalf("RunClean: %v", err)
	}
	if logs.FilterMessage("previous stage manifest missing").Len() != 1 {
		t.Errorf("warnings = %v", logs.All())
	}
	if len(report.Warnings) == 0 || !strings.HasPrefix(report.Warnings[0], "previous stage manifest missing") {
		t.Errorf("report warnings = %v", report.Warnings)
	}
}

func TestRunCleanRejectsBadDates(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)
	bad := strings.Replace(sources["BANCOS_ENE.csv"], "20/01/2026", "31/02/2026", 1)
	if err := os.WriteFile(filepath.Join(cfg.InputDir, "BANCOS_ENE.csv"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := New(cfg, zap.NewNop()).Run(context.Background(), Raw)
	if err == nil || !strings.Contains(err.Error(), "clean bancos") {
		t.Fatalf("expected bancos date error, got %v", err)
	}
}

func TestRunMixMissingKeyColumn(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)
	cfg.Layouts[0].Joins[0].LeftKey = "No Such Key"

	_, err := New(cfg, zap.NewNop()).Run(context.Background(), Raw)
	var colErr *join.ColumnError
	if !errors.As(err, &colErr) {
		t.Fatalf("expected ColumnError, got %v", err)
	}
	if colErr.Side != "left" || colErr.Column != "No Such Key" {
		t.Errorf("column error = %+v", colErr)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	writeSources(t, cfg.InputDir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(cfg, zap.NewNop()).Run(ctx, Raw); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunRejectsUnknownStage(t *testing.T) {
	if _, err := New(testConfig(t), zap.NewNop()).Run(context.Background(), Stage(7)); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("expected ErrInvalidStage, got %v", err)
	}
}

func TestCleanInvariantFailure(t *testing.T) {
	cat, _ := config.Default().Category("bancos")
	raw := table.MustNew("BANCOS", []string{"Document Number", "Document Date"})
	_ = raw.AppendStrings("1", "not a date")

	_, _, err := Clean(raw, cat)
	if err == nil {
		t.Fatal("expected error")
	}

	raw = table.MustNew("BANCOS", []string{"Document Number"})
	_ = raw.AppendStrings("1E+3")
	out, stats, err := Clean(raw, cat)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if out.Cell(0, 0) != table.String("1000") {
		t.Errorf("key = %+v", out.Cell(0, 0))
	}
	if len(stats.MissingColumns) != 3 || len(stats.SkippedColumns) != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !validation.Validate(out, cat).IsValid {
		t.Error("cleaned table fails validation")
	}
}

func TestCleanUnparsedKeysSurviveTruncation(t *testing.T) {
	cat, _ := config.Default().Category(schema.Cobrado)
	raw := table.MustNew("COBRADO", []string{"Assignment", "Eff. Exchange Rate"})
	_ = raw.AppendStrings("2024.01REF1234", "1")
	_ = raw.AppendStrings("1E+999999999", "1")
	_ = raw.AppendStrings("1000001230000001", "1")

	out, stats, err := Clean(raw, cat)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	want := []table.Cell{table.String("2024.01"), table.String("1E+99"), table.String("100000123")}
	got := column(t, out, schema.ColMergeKeyAux)
	for i, w := range want {
		if got[i] != w {
			t.Errorf("row %d key = %+v, want %+v", i, got[i], w)
		}
	}
	if n := stats.Unparsed()[schema.ColMergeKeyAux]; n != 2 {
		t.Errorf("unparsed = %d, want 2", n)
	}
	if result := validation.Validate(out, cat); !result.IsValid {
		t.Errorf("cleaned table fails validation: %v", result.Errors)
	}
}
