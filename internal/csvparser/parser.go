// =============================================================================
// Ledger Reconciliation - CSV Parser Module
// =============================================================================
//
// Parses delimited exports from the accounting system into raw tables.
// Every cell is kept as the exact text of the export; typing happens in the
// clean stage.
//
// FEATURES:
//   - Different delimiters (comma, pipe, tab, semicolon)
//   - Multi-row headers, merged column by column
//   - Custom data start rows (report banners above the header)
//   - Source encodings other than UTF-8 (Windows-1252, ISO-8859-1, ...)
//   - Lenient quoting and ragged rows
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/table"
)

const utf8BOM = "\ufeff"

// =============================================================================
// ENCODINGS
// =============================================================================

// LookupEncoding returns the decoder for an encoding name. UTF-8 returns a
// nil encoding, meaning the bytes are used as they are.
//
// Common spreadsheet names are matched first; anything else is looked up
// in the IANA registry.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin1", "latin-1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1, nil
	case "windows-1252", "cp1252", "ansi":
		return charmap.Windows1252, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
	return enc, nil
}

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a delimited file into a table named name.
//
// PARAMETERS:
//   - filePath: the export to read
//   - name: the table name
//   - settings: delimiter, header rows, data start row and encoding
//
// PARSING PROCESS:
//  1. Decode the file from the configured encoding
//  2. Read every record with a lenient CSV reader
//  3. Merge the header rows into one set of column names
//  4. Append the data rows, skipping blank ones
func Parse(filePath, name string, settings config.CSVSettings) (*table.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ParseReader(file, name, settings)
}

// ParseReader is Parse for an already opened source.
func ParseReader(r io.Reader, name string, settings config.CSVSettings) (*table.Table, error) {
	enc, err := LookupEncoding(settings.Encoding)
	if err != nil {
		return nil, err
	}
	var src io.Reader = bufio.NewReader(r)
	if enc != nil {
		src = transform.NewReader(src, enc.NewDecoder())
	}

	csvReader := csv.NewReader(src)
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers, err := extractHeaders(allRows, settings)
	if err != nil {
		return nil, fmt.Errorf("failed to extract headers: %w", err)
	}

	t, err := table.New(name, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to build table: %w", err)
	}
	if err := appendDataRows(t, allRows, settings); err != nil {
		return nil, fmt.Errorf("failed to extract data rows: %w", err)
	}
	return t, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	reader.Comma = Delimiter(settings.Delimiter)

	// Exports are not always rectangular and quote loosely.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
}

// Delimiter resolves a configured delimiter name to its rune.
func Delimiter(s string) rune {
	switch s {
	case "\\t", "\t", "tab", "TAB":
		return '\t'
	case "|", "pipe", "PIPE":
		return '|'
	case ";", "semicolon":
		return ';'
	default:
		if len(s) > 0 {
			return []rune(s)[0]
		}
		return ','
	}
}

// extractHeaders extracts and merges headers from the CSV.
//
// MULTI-LINE HEADER HANDLING:
//
//	Row 1: "Amount in", "",         "Document"
//	Row 2: "Local Currency", "Text", "Date"
//	Result: "Amount in Local Currency", "Text", "Document Date"
func extractHeaders(allRows [][]string, settings config.CSVSettings) ([]string, error) {
	if settings.HeaderRows <= 0 {
		return nil, fmt.Errorf("header_rows must be at least 1")
	}
	if len(allRows) < settings.HeaderRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting")
	}

	if settings.HeaderRows == 1 {
		return CleanHeaders(allRows[0]), nil
	}

	maxCols := 0
	for i := 0; i < settings.HeaderRows; i++ {
		if len(allRows[i]) > maxCols {
			maxCols = len(allRows[i])
		}
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for row := 0; row < settings.HeaderRows; row++ {
			if col < len(allRows[row]) {
				if value := strings.TrimSpace(allRows[row][col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return CleanHeaders(headers), nil
}

// CleanHeaders trims header values, names empty headers by position
// (Column_N) and suffixes repeated names (Text, Text.1, ...). The
// spreadsheet parser shares it.
func CleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	seen := make(map[string]int, len(headers))

	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n := seen[header]; n > 0 {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n)
		} else {
			seen[header] = 1
		}
		cleaned[i] = header
	}

	return cleaned
}

// appendDataRows adds the rows from DataStartRow on. Short rows are padded
// with empty cells; cells beyond the header width are dropped.
func appendDataRows(t *table.Table, allRows [][]string, settings config.CSVSettings) error {
	// DataStartRow is 1-indexed.
	startIndex := settings.DataStartRow - 1
	if startIndex < settings.HeaderRows {
		startIndex = settings.HeaderRows
	}

	values := make([]string, t.NumCols())
	for rowIndex := startIndex; rowIndex < len(allRows); rowIndex++ {
		row := allRows[rowIndex]
		if isRowEmpty(row) {
			continue
		}
		for i := range values {
			if i < len(row) {
				values[i] = strings.TrimSpace(row[i])
			} else {
				values[i] = ""
			}
		}
		if err := t.AppendStrings(values...); err != nil {
			return fmt.Errorf("row %d: %w", rowIndex+1, err)
		}
	}
	return nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
