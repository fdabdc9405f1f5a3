// =============================================================================
// Ledger Reconciliation - Table Joiner
// =============================================================================
//
// Join combines two tables on a key column from each side. Keys are
// compared as exact strings: callers normalize keys before joining and the
// joiner performs no coercion of its own. Null keys never match.
//
// JOIN KINDS:
//   - left  : every left row appears at least once
//   - inner : only rows with a match on both sides
//   - right : every right row appears at least once
//   - outer : every row of both sides appears at least once
//
// A row matching N rows on the other side produces N output rows. The
// reconciliation layouts rely on this fan-out; it is never deduplicated.
//
// COLUMN NAMING:
//   - Left columns keep their names.
//   - When both keys have the same name the key is emitted once.
//   - A right column whose name is already taken gets the "_sec" suffix.
//
// ROW ORDER:
//   left rows in order, each followed by its matches in right order; for
//   outer joins the unmatched right rows follow. Right joins iterate the
//   right side instead.
//
// =============================================================================

package join

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// Suffix is appended to right-hand column names that collide with an
// output column.
const Suffix = "_sec"

// =============================================================================
// KIND
// =============================================================================

// Kind selects which unmatched rows survive a join.
type Kind int

const (
	Left Kind = iota + 1
	Inner
	Right
	Outer
)

// ErrInvalidKind is returned for an unknown join kind.
var ErrInvalidKind = errors.New("join kind must be one of left, inner, right, outer")

// ErrDuplicateColumn is returned when a right column still collides after
// the suffix has been applied.
var ErrDuplicateColumn = errors.New("column name collision after suffixing")

// ParseKind converts a configuration string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return Left, nil
	case "inner":
		return Inner, nil
	case "right":
		return Right, nil
	case "outer", "full":
		return Outer, nil
	default:
		return 0, fmt.Errorf("%w: got %q", ErrInvalidKind, s)
	}
}

func (k Kind) String() string {
	switch k {
	case Left:
		return "left"
	case Inner:
		return "inner"
	case Right:
		return "right"
	case Outer:
		return "outer"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ColumnError reports a join key column that one of the tables lacks.
type ColumnError struct {
	Side   string
	Table  string
	Column string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("%s table %q has no key column %q", e.Side, e.Table, e.Column)
}

// =============================================================================
// JOIN
// =============================================================================

// Result is the joined table and its row count.
type Result struct {
	Table *table.Table
	Rows  int
}

// plan describes where every output column comes from.
type plan struct {
	names []string

	// rightCols maps each emitted right column position to its output
	// position.
	rightCols []int
	rightOut  []int

	// sharedKey is true when both keys have the same name and the key is
	// emitted once, at the left key position.
	sharedKey bool
}

func buildPlan(left, right *table.Table, leftKey, rightKey string) (*plan, error) {
	p := &plan{names: left.Columns()}
	taken := make(map[string]bool, left.NumCols()+right.NumCols())
	for _, n := range p.names {
		taken[n] = true
	}
	p.sharedKey = leftKey == rightKey

	for i, col := range right.Columns() {
		if p.sharedKey && col == rightKey {
			continue
		}
		name := col
		if taken[name] {
			name = col + Suffix
			if taken[name] {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
			}
		}
		taken[name] = true
		p.rightCols = append(p.rightCols, i)
		p.rightOut = append(p.rightOut, len(p.names))
		p.names = append(p.names, name)
	}
	return p, nil
}

// Join matches rows where left[leftKey] == right[rightKey].
func Join(left, right *table.Table, leftKey, rightKey string, kind Kind) (Result, error) {
	if kind < Left || kind > Outer {
		return Result{}, fmt.Errorf("%w: got %s", ErrInvalidKind, kind)
	}
	lk := left.Index(leftKey)
	if lk < 0 {
		return Result{}, &ColumnError{Side: "left", Table: left.Name, Column: leftKey}
	}
	rk := right.Index(rightKey)
	if rk < 0 {
		return Result{}, &ColumnError{Side: "right", Table: right.Name, Column: rightKey}
	}

	p, err := buildPlan(left, right, leftKey, rightKey)
	if err != nil {
		return Result{}, err
	}
	out, err := table.New(left.Name, p.names)
	if err != nil {
		return Result{}, err
	}

	emit := func(l, r int) error {
		row := make([]table.Cell, len(p.names))
		if l >= 0 {
			for c := 0; c < left.NumCols(); c++ {
				row[c] = left.Cell(l, c)
			}
		} else if p.sharedKey && r >= 0 {
			row[lk] = right.Cell(r, rk)
		}
		if r >= 0 {
			for i, src := range p.rightCols {
				row[p.rightOut[i]] = right.Cell(r, src)
			}
		}
		return out.AppendRow(row...)
	}

	if kind == Right {
		leftIndex := index(left, lk)
		for r := 0; r < right.NumRows(); r++ {
			matches := lookup(leftIndex, right.Cell(r, rk))
			if len(matches) == 0 {
				if err := emit(-1, r); err != nil {
					return Result{}, err
				}
				continue
			}
			for _, l := range matches {
				if err := emit(l, r); err != nil {
					return Result{}, err
				}
			}
		}
		return Result{Table: out, Rows: out.NumRows()}, nil
	}

	rightIndex := index(right, rk)
	matched := make([]bool, right.NumRows())
	for l := 0; l < left.NumRows(); l++ {
		matches := lookup(rightIndex, left.Cell(l, lk))
		if len(matches) == 0 {
			if kind == Left || kind == Outer {
				if err := emit(l, -1); err != nil {
					return Result{}, err
				}
			}
			continue
		}
		for _, r := range matches {
			matched[r] = true
			if err := emit(l, r); err != nil {
				return Result{}, err
			}
		}
	}

	if kind == Outer {
		for r, ok := range matched {
			if ok {
				continue
			}
			if err := emit(-1, r); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{Table: out, Rows: out.NumRows()}, nil
}

func index(t *table.Table, col int) map[string][]int {
	idx := make(map[string][]int, t.NumRows())
	for r := 0; r < t.NumRows(); r++ {
		c := t.Cell(r, col)
		if c.IsNull() {
			continue
		}
		idx[c.Str] = append(idx[c.Str], r)
	}
	return idx
}

func lookup(idx map[string][]int, key table.Cell) []int {
	if key.IsNull() {
		return nil
	}
	return idx[key.Str]
}
