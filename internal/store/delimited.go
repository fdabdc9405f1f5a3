package store

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// writeDelimited writes a header row followed by one record per row.
// Nulls are written as empty fields.
func writeDelimited(path string, t *table.Table, delimiter rune) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encodeDelimited(file, t, delimiter); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func encodeDelimited(out io.Writer, t *table.Table, delimiter rune) error {
	buf := bufio.NewWriter(out)
	w := csv.NewWriter(buf)
	w.Comma = delimiter

	if err := w.Write(t.Columns()); err != nil {
		return err
	}
	record := make([]string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := range record {
			record[c] = t.Cell(r, c).Or("")
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("row %d: %w", r+1, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

// readDelimited reads a comma-separated table written by writeDelimited.
// Empty fields read back as null.
func readDelimited(path, name string) (*table.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(bufio.NewReader(file))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: file is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t, err := table.New(name, header)
	if err != nil {
		return nil, err
	}

	row := make([]table.Cell, len(header))
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", path, line, err)
		}
		for c := range row {
			if c < len(record) && record[c] != "" {
				row[c] = table.String(record[c])
			} else {
				row[c] = table.Null()
			}
		}
		if err := t.AppendRow(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}
