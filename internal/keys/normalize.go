// =============================================================================
// Ledger Reconciliation - Key Normalizer
// =============================================================================
//
// Join keys in the accounting exports are document numbers. Spreadsheet
// software renders large integers in scientific notation ("1.23457E+11")
// or with a trailing ".0", so the same document number can appear in
// several textual forms across source tables.
//
// Normalize treats a key as an arbitrary-precision decimal, rounds it to
// the nearest integer (half to even) and renders it in plain notation.
// Keys that are not numbers are valid in some sources; they are passed
// through unchanged and reported as Unparsed so the pipeline can count
// them.
//
// Suffix truncation is a separate step (TruncateSuffix) because the
// suffix is an artifact of one source field, not of numeric cleaning.
//
// =============================================================================

package keys

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome tells how a key was handled.
type Outcome int

const (
	// Normalized means the key parsed as a number and was rewritten in
	// plain integer notation.
	Normalized Outcome = iota

	// Unparsed means the key is not a number and was kept as-is.
	Unparsed

	// Null means the key was null and stays null.
	Null
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case Normalized:
		return "normalized"
	case Unparsed:
		return "unparsed"
	case Null:
		return "null"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Result is the normalized cell together with how it was obtained.
type Result struct {
	Cell    table.Cell
	Outcome Outcome
}

// =============================================================================
// SCALAR NORMALIZATION
// =============================================================================

// Normalize converts one key cell to its canonical string form.
//
// EXAMPLES:
//   - "1.234567890123E+11" -> "123456789012"
//   - "100000123.0"        -> "100000123"
//   - "FAC-001"            -> "FAC-001" (Unparsed)
func Normalize(c table.Cell) Result {
	if c.IsNull() {
		return Result{Cell: c, Outcome: Null}
	}
	s := NormalizeString(c.Str)
	if s == "" {
		return Result{Cell: c, Outcome: Unparsed}
	}
	return Result{Cell: table.String(s), Outcome: Normalized}
}

// MaxDigits bounds the magnitude of a number the normalizer will render:
// at most MaxDigits integer digits and at most MaxDigits fractional
// digits. Larger values are treated as unparseable.
const MaxDigits = 28

// NormalizeString returns the plain integer rendering of s, or "" when s
// is not a decimal number or is outside MaxDigits.
func NormalizeString(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !InRange(d) {
		return ""
	}
	return d.RoundBank(0).String()
}

// InRange reports whether d can be rendered in plain notation within
// MaxDigits integer and fractional digits.
func InRange(d decimal.Decimal) bool {
	exp := int64(d.Exponent())
	if exp < -MaxDigits {
		return false
	}
	return int64(d.NumDigits())+exp <= MaxDigits
}

// =============================================================================
// COLUMN OPERATIONS
// =============================================================================

// Stats counts outcomes for one column.
type Stats struct {
	Column     string
	Normalized int
	Unparsed   int
	Null       int

	// UnparsedSamples holds up to maxSamples distinct unparsed values for
	// operator-facing logs.
	UnparsedSamples []string
}

const maxSamples = 5

func (s *Stats) add(r Result, original table.Cell) {
	switch r.Outcome {
	case Normalized:
		s.Normalized++
	case Null:
		s.Null++
	case Unparsed:
		s.Unparsed++
		if len(s.UnparsedSamples) < maxSamples {
			for _, v := range s.UnparsedSamples {
				if v == original.Str {
					return
				}
			}
			s.UnparsedSamples = append(s.UnparsedSamples, original.Str)
		}
	}
}

// NormalizeColumn applies Normalize to every cell of a column.
func NormalizeColumn(t *table.Table, column string) (*table.Table, Stats, error) {
	stats := Stats{Column: column}
	out, err := t.MapColumn(column, func(_ int, c table.Cell) (table.Cell, error) {
		r := Normalize(c)
		stats.add(r, c)
		return r.Cell, nil
	})
	if err != nil {
		return nil, Stats{Column: column}, err
	}
	return out, stats, nil
}

// TruncateSuffix removes the last n characters of every non-null value in
// a column. Values with n characters or fewer become null: nothing of the
// key remains and an empty string would match other empty keys.
func TruncateSuffix(t *table.Table, column string, n int) (*table.Table, error) {
	if n < 0 {
		return nil, fmt.Errorf("suffix length must not be negative, got %d", n)
	}
	return t.MapColumn(column, func(_ int, c table.Cell) (table.Cell, error) {
		if c.IsNull() {
			return c, nil
		}
		r := []rune(c.Str)
		if len(r) <= n {
			return table.Null(), nil
		}
		return table.String(string(r[:len(r)-n])), nil
	})
}
