// =============================================================================
// Ledger Reconciliation - Field Formatting
// =============================================================================
//
// Renders the typed columns of a cleaned table in their canonical text form.
// Cleaned tables carry every value as a string; these formatters decide
// what that string looks like for the two typed column kinds:
//
//   | Kind | Null input | Output               | Example               |
//   |------|------------|----------------------|-----------------------|
//   | Rate | "0.0000"   | exactly 4 decimals   | "19.30001" -> "19.3000" |
//   | Date | null       | dd/mm/yyyy           | "2026-01-15" -> "15/01/2026" |
//
// Rates are parsed as arbitrary-precision decimals and rounded half to
// even, so no float rounding artifacts reach the output.
//
// DATE INPUTS:
//   - ISO dates, with or without a time part
//   - dotted day-first dates as exported by the accounting system
//   - slash dates; month first unless the first part cannot be a month
//   - Excel serial day numbers (cells read from spreadsheets)
//
// =============================================================================

package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-recon/internal/keys"
	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// RatePlaces is the number of decimals an exchange rate is rendered with.
const RatePlaces = 4

// DateLayout is the canonical cleaned date rendering.
const DateLayout = "02/01/2006"

var (
	// ErrInvalidRate is returned for a rate that is not a decimal number.
	ErrInvalidRate = errors.New("invalid exchange rate")

	// ErrInvalidDate is returned for a date in none of the accepted forms.
	ErrInvalidDate = errors.New("invalid date")
)

// =============================================================================
// RATES
// =============================================================================

// FormatRate renders an exchange rate with exactly four decimals. A null
// rate means "no conversion recorded" and becomes zero. Rates beyond
// keys.MaxDigits integer or fractional digits are invalid.
func FormatRate(c table.Cell) (string, error) {
	if c.IsNull() {
		return decimal.Zero.StringFixed(RatePlaces), nil
	}
	d, err := decimal.NewFromString(strings.TrimSpace(c.Str))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidRate, c.Str)
	}
	if !keys.InRange(d) {
		return "", fmt.Errorf("%w: %q out of range", ErrInvalidRate, c.Str)
	}
	return d.RoundBank(RatePlaces).StringFixed(RatePlaces), nil
}

// RateColumn applies FormatRate to every cell of column.
func RateColumn(t *table.Table, column string) (*table.Table, error) {
	return t.MapColumn(column, func(_ int, c table.Cell) (table.Cell, error) {
		s, err := FormatRate(c)
		if err != nil {
			return c, err
		}
		return table.String(s), nil
	})
}

// =============================================================================
// DATES
// =============================================================================

// Layouts tried in order for non-slash, non-serial dates.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"02.01.2006",
	"2006/01/02",
}

// ParseDate parses one raw date value.
//
// PARSING ORDER:
//  1. compact yyyymmdd
//  2. Excel serial numbers (a plain number, optionally with a fraction)
//  3. slash dates d/m/y or m/d/y
//  4. the fixed layouts above
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidDate)
	}

	if isCompactDate(s) {
		if t, err := time.Parse("20060102", s); err == nil {
			return t, nil
		}
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
		}
		return t, nil
	}

	if first, _, ok := strings.Cut(s, "/"); ok && len(first) <= 2 {
		return parseSlashDate(s)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

func isCompactDate(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// parseSlashDate reads a/b/yyyy, with an optional time part. The first
// part is the month unless it is greater than 12.
func parseSlashDate(s string) (time.Time, error) {
	datePart := s
	if i := strings.IndexByte(s, ' '); i > 0 {
		datePart = s[:i]
	}
	parts := strings.Split(datePart, "/")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}
		nums[i] = n
	}

	month, day, year := nums[0], nums[1], nums[2]
	if month > 12 {
		month, day = day, month
	}
	if year < 100 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (31/02 -> 03/03); reject it.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a date cell as dd/mm/yyyy. Nulls stay null.
func FormatDate(c table.Cell) (table.Cell, error) {
	if c.IsNull() {
		return c, nil
	}
	t, err := ParseDate(c.Str)
	if err != nil {
		return c, err
	}
	return table.String(t.Format(DateLayout)), nil
}

// DateColumn applies FormatDate to every cell of column.
func DateColumn(t *table.Table, column string) (*table.Table, error) {
	return t.MapColumn(column, func(_ int, c table.Cell) (table.Cell, error) {
		return FormatDate(c)
	})
}
