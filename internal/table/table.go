// =============================================================================
// Ledger Reconciliation - Table Model
// =============================================================================
//
// This package contains the column-oriented table shared by every stage of
// the pipeline. Types defined here are used by:
//   - keys, nulls, schema, join, format (transformations)
//   - store, ingest (persistence)
//   - pipeline (orchestration)
//
// A table is an ordered list of named columns. Every column holds the same
// number of cells. Rows have no identity beyond their position; join keys
// are the only cross-table identity.
//
// Transformations never modify a table in place. Every operation that
// changes cells or columns returns a new table.
//
// =============================================================================

package table

import (
	"errors"
	"fmt"
)

// =============================================================================
// CELL
// =============================================================================

// Cell is a single table value. A cell is either a string or null.
// Numbers and dates travel as their string rendering, exactly as the
// source spreadsheets export them.
type Cell struct {
	// Str is the value. It is meaningless when Valid is false.
	Str string

	// Valid is false for null cells.
	Valid bool
}

// String returns a non-null cell holding s.
func String(s string) Cell {
	return Cell{Str: s, Valid: true}
}

// Null returns the canonical null cell.
func Null() Cell {
	return Cell{}
}

// IsNull reports whether the cell is null.
func (c Cell) IsNull() bool {
	return !c.Valid
}

// Or returns the cell value, or def when the cell is null.
func (c Cell) Or(def string) string {
	if !c.Valid {
		return def
	}
	return c.Str
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrColumnNotFound is returned when an operation names a column the
// table does not have.
var ErrColumnNotFound = errors.New("column not found")

// ErrDuplicateColumn is returned when a table would end up with two
// columns of the same name.
var ErrDuplicateColumn = errors.New("duplicate column")

// =============================================================================
// TABLE
// =============================================================================

// Table is an ordered sequence of named columns.
type Table struct {
	// Name identifies the table in logs and output file names.
	Name string

	columns []string
	index   map[string]int
	data    [][]Cell
	rows    int
}

// New creates an empty table with the given columns.
func New(name string, columns []string) (*Table, error) {
	t := &Table{
		Name:    name,
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
		data:    make([][]Cell, 0, len(columns)),
	}
	for _, col := range columns {
		if _, exists := t.index[col]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, col)
		}
		t.index[col] = len(t.columns)
		t.columns = append(t.columns, col)
		t.data = append(t.data, nil)
	}
	return t, nil
}

// MustNew is like New but panics on duplicate columns. It is meant for
// tests and static fixtures.
func MustNew(name string, columns []string) *Table {
	t, err := New(name, columns)
	if err != nil {
		panic(err)
	}
	return t
}

// AppendRow adds one row. The number of cells must match the number of
// columns.
func (t *Table) AppendRow(cells ...Cell) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table %q has %d columns", len(cells), t.Name, len(t.columns))
	}
	for i, c := range cells {
		t.data[i] = append(t.data[i], c)
	}
	t.rows++
	return nil
}

// AppendStrings adds one row of non-null string cells.
func (t *Table) AppendStrings(values ...string) error {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = String(v)
	}
	return t.AppendRow(cells...)
}

// NumRows returns the number of rows.
func (t *Table) NumRows() int {
	return t.rows
}

// NumCols returns the number of columns.
func (t *Table) NumCols() int {
	return len(t.columns)
}

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the cells of a column. The returned slice must not be
// modified.
func (t *Table) Column(name string) ([]Cell, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in table %q", ErrColumnNotFound, name, t.Name)
	}
	return t.data[i], nil
}

// Cell returns the cell at the given row and column position.
func (t *Table) Cell(row, col int) Cell {
	return t.data[col][row]
}

// Row returns a copy of the cells of one row in column order.
func (t *Table) Row(i int) []Cell {
	out := make([]Cell, len(t.columns))
	for c := range t.columns {
		out[c] = t.data[c][i]
	}
	return out
}

// Clone returns a deep copy of the table.
func (t *Table) Clone() *Table {
	out := MustNew(t.Name, t.columns)
	for i := range t.data {
		out.data[i] = append([]Cell(nil), t.data[i]...)
	}
	out.rows = t.rows
	return out
}

// Select returns a new table holding only the named columns, in the order
// given. Every name must exist.
func (t *Table) Select(columns []string) (*Table, error) {
	out, err := New(t.Name, columns)
	if err != nil {
		return nil, err
	}
	for i, col := range columns {
		src, ok := t.index[col]
		if !ok {
			return nil, fmt.Errorf("%w: %q in table %q", ErrColumnNotFound, col, t.Name)
		}
		out.data[i] = append([]Cell(nil), t.data[src]...)
	}
	out.rows = t.rows
	return out, nil
}

// RenameColumns returns a new table with columns renamed according to
// renames (old name -> new name). Names absent from the table are ignored.
func (t *Table) RenameColumns(renames map[string]string) (*Table, error) {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		if newName, ok := renames[col]; ok {
			names[i] = newName
		} else {
			names[i] = col
		}
	}
	out, err := New(t.Name, names)
	if err != nil {
		return nil, err
	}
	for i := range t.data {
		out.data[i] = append([]Cell(nil), t.data[i]...)
	}
	out.rows = t.rows
	return out, nil
}

// MapColumn returns a new table where every cell of the named column has
// been replaced by fn(rowIndex, cell). The first error returned by fn
// aborts the operation.
func (t *Table) MapColumn(name string, fn func(row int, c Cell) (Cell, error)) (*Table, error) {
	idx, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q in table %q", ErrColumnNotFound, name, t.Name)
	}
	out := t.Clone()
	for r, c := range t.data[idx] {
		nc, err := fn(r, c)
		if err != nil {
			return nil, fmt.Errorf("column %q row %d: %w", name, r+1, err)
		}
		out.data[idx][r] = nc
	}
	return out, nil
}

// MapCells returns a new table with fn applied to every cell.
func (t *Table) MapCells(fn func(c Cell) Cell) *Table {
	out := t.Clone()
	for i := range out.data {
		for r, c := range out.data[i] {
			out.data[i][r] = fn(c)
		}
	}
	return out
}
