// =============================================================================
// Ledger Reconciliation - Table Store
// =============================================================================
//
// The store persists tables between pipeline stages and finds them again.
//
//   | Format    | Extension | Read | Write | Used by               |
//   |-----------|-----------|------|-------|-----------------------|
//   | columnar  | .parquet  | yes  | yes   | raw and clean stages  |
//   | delimited | .csv      | yes  | yes   | mix stage             |
//   | styled    | .xlsx     | no   | yes   | mix stage             |
//
// Every format stores cells as text. Columnar files keep nulls as nulls;
// delimited and styled files write nulls as empty cells, and an empty
// delimited cell reads back as null.
//
// =============================================================================

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// =============================================================================
// FORMATS
// =============================================================================

// Format is an on-disk table representation.
type Format int

const (
	Columnar Format = iota + 1
	Delimited
	Styled
)

var (
	// ErrInvalidFormat is returned for an unknown or unreadable format.
	ErrInvalidFormat = errors.New("format must be one of columnar, delimited, styled")

	// ErrNotFound is returned when no file matches a table pattern.
	ErrNotFound = errors.New("table not found")
)

// ParseFormat converts a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "columnar", "parquet":
		return Columnar, nil
	case "delimited", "csv":
		return Delimited, nil
	case "styled", "xlsx":
		return Styled, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidFormat, s)
	}
}

func (f Format) String() string {
	switch f {
	case Columnar:
		return "columnar"
	case Delimited:
		return "delimited"
	case Styled:
		return "styled"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case Columnar:
		return ".parquet"
	case Delimited:
		return ".csv"
	case Styled:
		return ".xlsx"
	default:
		return ""
	}
}

// formatForPath picks the format from a file extension.
func formatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return Columnar, nil
	case ".csv":
		return Delimited, nil
	case ".xlsx":
		return Styled, nil
	default:
		return 0, fmt.Errorf("%w: unsupported extension for %s", ErrInvalidFormat, filepath.Base(path))
	}
}

// =============================================================================
// LOADER
// =============================================================================

// Loader reads tables from one directory.
type Loader struct {
	Dir    string
	Policy Policy
	Format Format
}

// NewLoader creates a Loader that resolves file names with policy and only
// considers files of the given format.
func NewLoader(dir string, policy Policy, format Format) *Loader {
	return &Loader{Dir: dir, Policy: policy, Format: format}
}

// Load resolves pattern against the loader directory and reads the table.
// The table is named after pattern.
//
// RETURNS:
//   - ErrNotFound when nothing matches
//   - *AmbiguousError when the substring policy matches several files
func (l *Loader) Load(pattern string) (*table.Table, error) {
	res, err := Resolve(l.Dir, pattern, l.Policy, l.Format.Extension())
	if err != nil {
		return nil, err
	}
	switch res.Status {
	case NotFound:
		return nil, fmt.Errorf("%w: no %s file matching %q in %s", ErrNotFound, l.Format, pattern, l.Dir)
	case Ambiguous:
		return nil, &AmbiguousError{Pattern: pattern, Dir: l.Dir, Candidates: res.Candidates}
	}

	t, err := ReadFile(res.Path)
	if err != nil {
		return nil, err
	}
	t.Name = pattern
	return t, nil
}

// ReadFile reads one table file, choosing the format from its extension.
func ReadFile(path string) (*table.Table, error) {
	format, err := formatForPath(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch format {
	case Columnar:
		return readParquet(path, name)
	case Delimited:
		return readDelimited(path, name)
	default:
		return nil, fmt.Errorf("%w: %s tables cannot be read back", ErrInvalidFormat, format)
	}
}

// =============================================================================
// WRITER
// =============================================================================

// Writer persists tables. The zero value writes comma-separated files and
// the default spreadsheet styling.
type Writer struct {
	// Delimiter separates fields in delimited output. Defaults to ','.
	Delimiter rune

	// Styled output settings.
	Sheet       string
	FontFamily  string
	FontSize    float64
	RateColumns []string
}

// NewWriter returns a Writer with the reconciliation report styling.
func NewWriter(rateColumns []string) *Writer {
	return &Writer{
		Delimiter:   ',',
		Sheet:       DefaultSheet,
		FontFamily:  DefaultFont,
		FontSize:    DefaultFontSize,
		RateColumns: rateColumns,
	}
}

// Write stores t as dir/name<ext> and returns the file path. The directory
// is created if needed. Existing files are replaced.
func (w *Writer) Write(t *table.Table, dir, name string, format Format) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+format.Extension())

	var err error
	switch format {
	case Columnar:
		err = writeParquet(path, t)
	case Delimited:
		err = writeDelimited(path, t, w.delimiter())
	case Styled:
		err = w.writeStyled(path, t)
	default:
		return "", fmt.Errorf("%w: got %s", ErrInvalidFormat, format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func (w *Writer) delimiter() rune {
	if w.Delimiter == 0 {
		return ','
	}
	return w.Delimiter
}
