// =============================================================================
// Ledger Reconciliation - Schema Projector
// =============================================================================
//
// The accounting system exports many more columns than reconciliation
// needs, and it names them in the source system's vocabulary. The
// projector keeps (or removes) a list of columns and renames the survivors
// to the canonical names used by the join stage.
//
// MODES:
//   - keep   : keep only the listed columns that exist in the table
//   - remove : drop the listed columns that exist in the table
//
// In both modes listed columns the table does not have are returned to the
// caller as "missing" so they can be logged; they never fail the
// projection. Column order always follows the table, not the list.
//
// =============================================================================

package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// =============================================================================
// MODE
// =============================================================================

// Mode selects what Project does with the listed columns.
type Mode int

const (
	// Keep retains only the listed columns.
	Keep Mode = iota + 1

	// Remove drops the listed columns.
	Remove
)

// ErrInvalidMode is returned for an unknown projection mode. It is a
// configuration error and must never be defaulted.
var ErrInvalidMode = errors.New("projection mode must be 'keep' or 'remove'")

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "keep":
		return Keep, nil
	case "remove":
		return Remove, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidMode, s)
	}
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case Keep:
		return "keep"
	case Remove:
		return "remove"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// =============================================================================
// PROJECTION
// =============================================================================

// Project keeps or removes the given columns.
//
// RETURNS:
//   - the projected table (a new table; t is not modified)
//   - the listed columns absent from t, in list order
//   - ErrInvalidMode for an unknown mode
func Project(t *table.Table, columns []string, mode Mode) (*table.Table, []string, error) {
	if mode != Keep && mode != Remove {
		return nil, nil, fmt.Errorf("%w: got %s", ErrInvalidMode, mode)
	}

	listed := make(map[string]bool, len(columns))
	var missing []string
	for _, col := range columns {
		if listed[col] {
			continue
		}
		listed[col] = true
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}

	var selected []string
	for _, col := range t.Columns() {
		if listed[col] == (mode == Keep) {
			selected = append(selected, col)
		}
	}

	out, err := t.Select(selected)
	if err != nil {
		return nil, missing, err
	}
	return out, missing, nil
}

// Rename applies a rename map (source name -> canonical name). Source names
// that are not columns of t are returned as missing, sorted.
func Rename(t *table.Table, renames map[string]string) (*table.Table, []string, error) {
	var missing []string
	for from := range renames {
		if !t.HasColumn(from) {
			missing = append(missing, from)
		}
	}
	sort.Strings(missing)

	out, err := t.RenameColumns(renames)
	if err != nil {
		return nil, missing, fmt.Errorf("rename columns of %q: %w", t.Name, err)
	}
	return out, missing, nil
}
