package pipeline

import (
	"fmt"

	"github.com/ginjaninja78/ledger-recon/internal/format"
	"github.com/ginjaninja78/ledger-recon/internal/keys"
	"github.com/ginjaninja78/ledger-recon/internal/nulls"
	"github.com/ginjaninja78/ledger-recon/internal/schema"
	"github.com/ginjaninja78/ledger-recon/internal/table"
	"github.com/ginjaninja78/ledger-recon/internal/validation"
)

// CleanStats describes what cleaning did to one table.
type CleanStats struct {
	// MissingColumns are projection columns the raw table lacks.
	MissingColumns []string

	// MissingRenames are rename sources absent after projection.
	MissingRenames []string

	// SkippedColumns are key, rate or date columns that could not be
	// processed because the table lacks them.
	SkippedColumns []string

	NullsCanonicalized int
	Keys               []keys.Stats
}

// Unparsed returns the unparsed key count per key column.
func (s CleanStats) Unparsed() map[string]int {
	out := make(map[string]int, len(s.Keys))
	for _, k := range s.Keys {
		if k.Unparsed > 0 {
			out[k.Column] = k.Unparsed
		}
	}
	return out
}

// Clean turns a raw table into the canonical table of a category:
//
//  1. project the category columns
//  2. rename them to canonical names
//  3. collapse null-like values
//  4. normalize key columns and check them
//  5. strip configured key suffixes
//  6. format rate and date columns
//  7. check the remaining cleaned-table invariants
//
// Columns the table lacks are reported in CleanStats and skipped. Any other
// failure is returned with the step that caused it.
func Clean(raw *table.Table, cat schema.Category) (*table.Table, CleanStats, error) {
	var stats CleanStats

	mode, err := schema.ParseMode(cat.Mode)
	if err != nil {
		return nil, stats, fmt.Errorf("category %q: %w", cat.Name, err)
	}

	t, missing, err := schema.Project(raw, cat.Columns, mode)
	if err != nil {
		return nil, stats, fmt.Errorf("project: %w", err)
	}
	stats.MissingColumns = missing

	t, missing, err = schema.Rename(t, cat.Renames)
	if err != nil {
		return nil, stats, err
	}
	stats.MissingRenames = missing
	t.Name = cat.CleanName

	t, stats.NullsCanonicalized = nulls.Canonicalize(t)

	for _, rule := range cat.Keys {
		if !t.HasColumn(rule.Column) {
			stats.SkippedColumns = append(stats.SkippedColumns, rule.Column)
			continue
		}
		var ks keys.Stats
		t, ks, err = keys.NormalizeColumn(t, rule.Column)
		if err != nil {
			return nil, stats, fmt.Errorf("normalize key: %w", err)
		}
		stats.Keys = append(stats.Keys, ks)
	}

	if err := validation.NewValidator().ValidateKeys(t, cat).Err(); err != nil {
		return nil, stats, err
	}

	for _, rule := range cat.Keys {
		if rule.TruncateSuffix <= 0 || !t.HasColumn(rule.Column) {
			continue
		}
		if t, err = keys.TruncateSuffix(t, rule.Column, rule.TruncateSuffix); err != nil {
			return nil, stats, fmt.Errorf("truncate key: %w", err)
		}
	}

	for _, col := range cat.RateColumns {
		if !t.HasColumn(col) {
			stats.SkippedColumns = append(stats.SkippedColumns, col)
			continue
		}
		if t, err = format.RateColumn(t, col); err != nil {
			return nil, stats, fmt.Errorf("format rate: %w", err)
		}
	}

	for _, col := range cat.DateColumns {
		if !t.HasColumn(col) {
			stats.SkippedColumns = append(stats.SkippedColumns, col)
			continue
		}
		if t, err = format.DateColumn(t, col); err != nil {
			return nil, stats, fmt.Errorf("format date: %w", err)
		}
	}

	if err := validation.Validate(t, cat).Err(); err != nil {
		return nil, stats, err
	}
	return t, stats, nil
}
