package validation

import (
	"errors"
	"testing"

	"github.com/ginjaninja78/ledger-recon/internal/schema"
	"github.com/ginjaninja78/ledger-recon/internal/table"
)

func cobranzaCategory(t *testing.T) schema.Category {
	t.Helper()
	for _, c := range schema.DefaultCategories() {
		if c.Name == schema.Cobrado {
			return c
		}
	}
	t.Fatal("cobrado category not found")
	return schema.Category{}
}

func cobranza(rows ...[]table.Cell) *table.Table {
	tb := table.MustNew("cobranza", []string{schema.ColMergeKeyAux, schema.ColTCReporte, schema.ColFechaEmision, "Moneda"})
	for _, r := range rows {
		_ = tb.AppendRow(r...)
	}
	return tb
}

func TestValidTable(t *testing.T) {
	tb := cobranza(
		[]table.Cell{table.String("100000123"), table.String("19.3000"), table.String("15/01/2026"), table.String("MXN")},
		[]table.Cell{table.Null(), table.String("0.0000"), table.Null(), table.Null()},
		[]table.Cell{table.String("FAC-001"), table.String("1.0000"), table.String("31/12/2025"), table.String("USD")},
	)

	result := Validate(tb, cobranzaCategory(t))
	if !result.IsValid || result.Err() != nil {
		t.Fatalf("expected valid table, got %v", result.Errors)
	}
	if result.CellsValidated == 0 {
		t.Error("no cells validated")
	}
}

func TestViolations(t *testing.T) {
	tests := []struct {
		name string
		row  []table.Cell
		rule string
	}{
		{"null rate", []table.Cell{table.Null(), table.Null(), table.Null(), table.Null()}, RuleRateNull},
		{"short rate", []table.Cell{table.Null(), table.String("19.3"), table.Null(), table.Null()}, RuleRateFormat},
		{"iso date", []table.Cell{table.Null(), table.String("1.0000"), table.String("2026-01-15"), table.Null()}, RuleDateFormat},
		{"impossible date", []table.Cell{table.Null(), table.String("1.0000"), table.String("31/02/2026"), table.Null()}, RuleDateFormat},
		{"sentinel", []table.Cell{table.Null(), table.String("1.0000"), table.Null(), table.String("NaN")}, RuleNullSentinel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(cobranza(tt.row), cobranzaCategory(t))
			if result.IsValid {
				t.Fatal("expected invalid table")
			}
			if len(result.Errors) != 1 || result.Errors[0].Rule != tt.rule {
				t.Fatalf("errors = %v, want one %s", result.Errors, tt.rule)
			}
			if result.Errors[0].Row != 1 || result.Errors[0].Table != "cobranza" {
				t.Errorf("error context = %+v", result.Errors[0])
			}
			if !errors.Is(result.Err(), ErrInvariant) {
				t.Errorf("Err() = %v, want ErrInvariant", result.Err())
			}
		})
	}
}

func TestKeyViolations(t *testing.T) {
	tests := []struct {
		name string
		key  string
		rule string
	}{
		{"exponent key", "1.23E+11", RuleKeyExponent},
		{"fractional key", "100.0", RuleKeyFraction},
		{"padded key", " 42", RuleKeyNonNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := cobranza([]table.Cell{table.String(tt.key), table.String("1.0000"), table.Null(), table.Null()})
			result := NewValidator().ValidateKeys(tb, cobranzaCategory(t))
			if len(result.Errors) != 1 || result.Errors[0].Rule != tt.rule {
				t.Fatalf("errors = %v, want one %s", result.Errors, tt.rule)
			}
			if !errors.Is(result.Err(), ErrInvariant) {
				t.Errorf("Err() = %v, want ErrInvariant", result.Err())
			}
		})
	}
}

func TestUnparsedKeysAreValid(t *testing.T) {
	tb := cobranza(
		[]table.Cell{table.String("FAC-001"), table.String("1.0000"), table.Null(), table.Null()},
		[]table.Cell{table.String("1E+999999999"), table.String("1.0000"), table.Null(), table.Null()},
	)
	if result := NewValidator().ValidateKeys(tb, cobranzaCategory(t)); !result.IsValid {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestTruncatedKeysSkippedByValidateTable(t *testing.T) {
	// "2024.01REF1234" loses its suffix after normalization left it unparsed.
	tb := cobranza([]table.Cell{table.String("2024.01"), table.String("1.0000"), table.Null(), table.Null()})
	if result := Validate(tb, cobranzaCategory(t)); !result.IsValid {
		t.Errorf("errors = %v", result.Errors)
	}
}

func TestStopOnFirstError(t *testing.T) {
	tb := cobranza(
		[]table.Cell{table.Null(), table.Null(), table.Null(), table.Null()},
		[]table.Cell{table.Null(), table.Null(), table.Null(), table.Null()},
	)
	v := NewValidatorWithOptions(Options{StopOnFirstError: true})
	result := v.ValidateTable(tb, cobranzaCategory(t))
	if result.ErrorCount != 1 {
		t.Errorf("ErrorCount = %d, want 1", result.ErrorCount)
	}

	keyed := cobranza(
		[]table.Cell{table.String("1E+3"), table.String("1.0000"), table.Null(), table.Null()},
		[]table.Cell{table.String("2E+3"), table.String("1.0000"), table.Null(), table.Null()},
	)
	if result := v.ValidateKeys(keyed, cobranzaCategory(t)); result.ErrorCount != 1 {
		t.Errorf("ValidateKeys ErrorCount = %d, want 1", result.ErrorCount)
	}
}

func TestNonNumericKeyWarning(t *testing.T) {
	tb := cobranza([]table.Cell{table.String("FAC-001"), table.String("1.0000"), table.Null(), table.Null()})

	result := NewValidatorWithOptions(Options{WarnNonNumericKeys: true}).ValidateKeys(tb, cobranzaCategory(t))
	if !result.IsValid || result.WarningCount != 1 {
		t.Fatalf("valid=%v warnings=%d", result.IsValid, result.WarningCount)
	}

	strict := NewValidatorWithOptions(Options{WarnNonNumericKeys: true, TreatWarningsAsErrors: true})
	if result := strict.ValidateKeys(tb, cobranzaCategory(t)); result.IsValid {
		t.Error("warning should fail the table when treated as error")
	}
}

func TestMissingColumnsAreSkipped(t *testing.T) {
	tb := table.MustNew("cobranza", []string{"Moneda"})
	_ = tb.AppendStrings("MXN")
	if result := Validate(tb, cobranzaCategory(t)); !result.IsValid {
		t.Errorf("errors = %v", result.Errors)
	}
}
