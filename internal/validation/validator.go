// =============================================================================
// Ledger Reconciliation - Validation Engine
// =============================================================================
//
// Checks the invariants a cleaned table must satisfy before it is persisted:
//   - Normalized key columns hold no scientific-notation or ".0" artifacts
//     (columns with a truncated suffix are checked before truncation,
//     through ValidateKeys)
//   - Rate columns are never null and carry exactly four decimals
//   - Date columns are null or dd/mm/yyyy
//   - No cell still holds a null-like sentinel ("nan", "None", "  ")
//
// ERROR HANDLING:
//   - Errors are collected, not returned one by one
//   - Each error names the table, column, row and offending value
//   - Warnings are reported but do not fail the table unless
//     TreatWarningsAsErrors is set
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ginjaninja78/ledger-recon/internal/format"
	"github.com/ginjaninja78/ledger-recon/internal/keys"
	"github.com/ginjaninja78/ledger-recon/internal/nulls"
	"github.com/ginjaninja78/ledger-recon/internal/schema"
	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// ErrInvariant is wrapped by Result.Err when a table fails validation.
var ErrInvariant = errors.New("cleaned table violates invariants")

// Severity levels.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names.
const (
	RuleKeyExponent  = "key_exponent"
	RuleKeyFraction  = "key_fraction"
	RuleKeyNonNumber = "key_non_numeric"
	RuleRateNull     = "rate_null"
	RuleRateFormat   = "rate_format"
	RuleDateFormat   = "date_format"
	RuleNullSentinel = "null_sentinel"
)

// =============================================================================
// VALIDATION ERROR TYPES
// =============================================================================

// ValidationError represents a single invariant violation.
type ValidationError struct {
	// Severity is SeverityError or SeverityWarning.
	Severity string

	Table  string
	Column string

	// Row is the 1-based data row.
	Row int

	Value   string
	Rule    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s, column '%s', row %d: %s (value: '%s')",
		strings.ToUpper(e.Severity),
		e.Table,
		e.Column,
		e.Row,
		e.Message,
		e.Value,
	)
}

// =============================================================================
// VALIDATION RESULT
// =============================================================================

// Result contains the results of validating one table.
type Result struct {
	Table string

	// IsValid is true if there are no fatal errors.
	IsValid bool

	// Errors contains all violations, warnings included.
	Errors []*ValidationError

	ErrorCount     int
	WarningCount   int
	CellsValidated int
}

// Err returns nil for a valid table, otherwise an error wrapping
// ErrInvariant that describes the first fatal violation.
func (r *Result) Err() error {
	if r.IsValid {
		return nil
	}
	for _, e := range r.Errors {
		if e.Severity == SeverityError {
			return fmt.Errorf("%w: %d error(s), first: %w", ErrInvariant, r.ErrorCount, e)
		}
	}
	return fmt.Errorf("%w: %d warning(s) treated as errors", ErrInvariant, r.WarningCount)
}

func (r *Result) add(e *ValidationError, opts Options) {
	r.Errors = append(r.Errors, e)
	if e.Severity == SeverityError {
		r.ErrorCount++
		r.IsValid = false
		return
	}
	r.WarningCount++
	if opts.TreatWarningsAsErrors {
		r.IsValid = false
	}
}

// =============================================================================
// VALIDATOR
// =============================================================================

// Options contains options for validation.
type Options struct {
	// StopOnFirstError stops validation after the first fatal error.
	StopOnFirstError bool

	// TreatWarningsAsErrors makes warnings fail the table.
	TreatWarningsAsErrors bool

	// WarnNonNumericKeys reports key values that are not numbers. They are
	// legitimate in some exports, so this is off by default.
	WarnNonNumericKeys bool
}

// Validator checks cleaned tables against their category rules.
type Validator struct {
	options Options
}

// NewValidator creates a Validator with default options.
func NewValidator() *Validator {
	return &Validator{}
}

// NewValidatorWithOptions creates a Validator with custom options.
func NewValidatorWithOptions(options Options) *Validator {
	return &Validator{options: options}
}

// Validate checks a cleaned table with a validator using default options.
func Validate(t *table.Table, cat schema.Category) *Result {
	return NewValidator().ValidateTable(t, cat)
}

var (
	exponentPattern = regexp.MustCompile(`^[-+]?\d+(\.\d+)?[eE][-+]?\d+$`)
	fractionPattern = regexp.MustCompile(`^[-+]?\d+\.\d+$`)
	integerPattern  = regexp.MustCompile(`^-?\d+$`)
	ratePattern     = regexp.MustCompile(`^-?\d+\.\d{4}$`)
)

// ValidateTable checks every invariant that applies to a table of the
// given category. Columns named by the category but absent from the table
// are not checked; projection already reported them. Key columns with a
// truncated suffix are skipped: truncation can turn an unparsed key into
// something that looks numeric.
func (v *Validator) ValidateTable(t *table.Table, cat schema.Category) *Result {
	result := &Result{Table: t.Name, IsValid: true}

	checks := []struct {
		columns []string
		check   func(value table.Cell) (rule, severity, message string)
	}{
		{keyColumns(cat, false), v.checkKey},
		{cat.RateColumns, checkRate},
		{cat.DateColumns, checkDate},
	}
	for _, c := range checks {
		for _, column := range c.columns {
			if v.checkColumn(result, t, column, c.check) {
				return result
			}
		}
	}

	for _, column := range t.Columns() {
		if v.checkColumn(result, t, column, checkSentinel) {
			return result
		}
	}
	return result
}

// ValidateKeys checks every key column of the category, truncated ones
// included. It is meant for a table whose keys are normalized but not yet
// truncated.
func (v *Validator) ValidateKeys(t *table.Table, cat schema.Category) *Result {
	result := &Result{Table: t.Name, IsValid: true}
	for _, column := range keyColumns(cat, true) {
		if v.checkColumn(result, t, column, v.checkKey) {
			break
		}
	}
	return result
}

// checkColumn runs check over one column and reports whether validation
// should stop.
func (v *Validator) checkColumn(result *Result, t *table.Table, column string, check func(table.Cell) (string, string, string)) bool {
	col := t.Index(column)
	if col < 0 {
		return false
	}
	for row := 0; row < t.NumRows(); row++ {
		cell := t.Cell(row, col)
		result.CellsValidated++
		rule, severity, message := check(cell)
		if rule == "" {
			continue
		}
		result.add(&ValidationError{
			Severity: severity,
			Table:    t.Name,
			Column:   column,
			Row:      row + 1,
			Value:    cell.Str,
			Rule:     rule,
			Message:  message,
		}, v.options)
		if severity == SeverityError && v.options.StopOnFirstError {
			return true
		}
	}
	return false
}

func keyColumns(cat schema.Category, truncated bool) []string {
	columns := make([]string, 0, len(cat.Keys))
	for _, k := range cat.Keys {
		if k.TruncateSuffix > 0 && !truncated {
			continue
		}
		columns = append(columns, k.Column)
	}
	return columns
}

// =============================================================================
// CELL CHECKS
// =============================================================================

// checkKey flags only keys the normalizer would have rewritten. Unparsed
// keys, out-of-range numbers among them, are legitimate.
func (v *Validator) checkKey(c table.Cell) (string, string, string) {
	if c.IsNull() {
		return "", "", ""
	}
	if keys.NormalizeString(c.Str) == "" {
		if v.options.WarnNonNumericKeys {
			return RuleKeyNonNumber, SeverityWarning, "key is not a number"
		}
		return "", "", ""
	}
	switch {
	case exponentPattern.MatchString(c.Str):
		return RuleKeyExponent, SeverityError, "key still in scientific notation"
	case fractionPattern.MatchString(c.Str):
		return RuleKeyFraction, SeverityError, "key has a fractional part"
	case !integerPattern.MatchString(c.Str):
		return RuleKeyNonNumber, SeverityError, "key is not in plain integer form"
	}
	return "", "", ""
}

func checkRate(c table.Cell) (string, string, string) {
	if c.IsNull() {
		return RuleRateNull, SeverityError, "rate is null"
	}
	if !ratePattern.MatchString(c.Str) {
		return RuleRateFormat, SeverityError, fmt.Sprintf("rate must have exactly %d decimals", format.RatePlaces)
	}
	return "", "", ""
}

func checkDate(c table.Cell) (string, string, string) {
	if c.IsNull() {
		return "", "", ""
	}
	d, err := time.Parse(format.DateLayout, c.Str)
	if err != nil || d.Format(format.DateLayout) != c.Str {
		return RuleDateFormat, SeverityError, "date is not dd/mm/yyyy"
	}
	return "", "", ""
}

func checkSentinel(c table.Cell) (string, string, string) {
	if !c.IsNull() && nulls.IsNullLike(c.Str) {
		return RuleNullSentinel, SeverityError, "null-like value was not canonicalized"
	}
	return "", "", ""
}
