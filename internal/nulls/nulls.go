// Package nulls collapses the many spellings of "no value" found in
// spreadsheet exports into the table's single null cell.
//
// A cell is null-like when its whole value, compared case-insensitively,
// is empty or whitespace only, "nan", "null" or "none". Converting a
// spreadsheet through a dataframe library turns empty cells into the text
// "nan", which is why those spellings show up in otherwise clean exports.
package nulls

import (
	"strings"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

var sentinels = []string{"nan", "null", "none"}

// IsNullLike reports whether s is one of the null spellings.
func IsNullLike(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	for _, v := range sentinels {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// Canonicalize returns a copy of t with every null-like cell replaced by
// the null cell, and the number of cells that were rewritten. Cells that
// are already null are not counted.
func Canonicalize(t *table.Table) (*table.Table, int) {
	rewritten := 0
	out := t.MapCells(func(c table.Cell) table.Cell {
		if c.Valid && IsNullLike(c.Str) {
			rewritten++
			return table.Null()
		}
		return c
	})
	return out, rewritten
}
