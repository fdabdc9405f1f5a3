package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/ginjaninja78/ledger-recon/internal/table"
)

// columnsKey is the footer metadata key holding the table's column names.
// Parquet column paths cannot carry names such as "Amount in Doc. Curr.",
// so physical columns are named c0..cN and the real names live here.
const columnsKey = "ledger_recon.columns"

func physicalName(i int) string {
	return fmt.Sprintf("c%d", i)
}

func writeParquet(path string, t *table.Table) error {
	if t.NumCols() == 0 {
		return fmt.Errorf("table %q has no columns", t.Name)
	}

	md := make([]string, t.NumCols())
	for i := range md {
		md[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", physicalName(i))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewCSVWriter(md, fw, 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	names, err := json.Marshal(t.Columns())
	if err != nil {
		file.Close()
		return err
	}
	value := string(names)
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{Key: columnsKey, Value: &value})

	rec := make([]*string, t.NumCols())
	for r := 0; r < t.NumRows(); r++ {
		for c := range rec {
			cell := t.Cell(r, c)
			if cell.IsNull() {
				rec[c] = nil
				continue
			}
			s := cell.Str
			rec[c] = &s
		}
		if err := pw.WriteString(rec); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("parquet write row %d: %w", r+1, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close parquet file: %w", err)
	}
	return nil
}

func readParquet(path, name string) (*table.Table, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetColumnReader(fr, 1)
	if err != nil {
		return nil, fmt.Errorf("read parquet footer %s: %w", path, err)
	}
	defer pr.ReadStop()

	ncols := len(pr.SchemaHandler.ValueColumns)
	columns, err := columnNames(pr.Footer.KeyValueMetadata, ncols)
	if err != nil {
		return nil, fmt.Errorf("parquet %s: %w", path, err)
	}
	t, err := table.New(name, columns)
	if err != nil {
		return nil, err
	}

	nrows := pr.GetNumRows()
	if nrows == 0 {
		return t, nil
	}

	data := make([][]interface{}, ncols)
	for c := 0; c < ncols; c++ {
		values, _, _, err := pr.ReadColumnByIndex(int64(c), nrows)
		if err != nil {
			return nil, fmt.Errorf("read parquet column %q: %w", columns[c], err)
		}
		if int64(len(values)) != nrows {
			return nil, fmt.Errorf("parquet column %q has %d values, want %d", columns[c], len(values), nrows)
		}
		data[c] = values
	}

	row := make([]table.Cell, ncols)
	for r := int64(0); r < nrows; r++ {
		for c := range row {
			row[c] = cellFromParquet(data[c][r])
		}
		if err := t.AppendRow(row...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// columnNames recovers the logical column names from the footer. Files
// written by other tools have no such entry and get their physical names.
func columnNames(kv []*parquet.KeyValue, ncols int) ([]string, error) {
	for _, e := range kv {
		if e == nil || e.Key != columnsKey || e.Value == nil {
			continue
		}
		var names []string
		if err := json.Unmarshal([]byte(*e.Value), &names); err != nil {
			return nil, fmt.Errorf("decode column names: %w", err)
		}
		if len(names) != ncols {
			return nil, fmt.Errorf("footer lists %d columns, file has %d", len(names), ncols)
		}
		return names, nil
	}
	names := make([]string, ncols)
	for i := range names {
		names[i] = physicalName(i)
	}
	return names, nil
}

func cellFromParquet(v interface{}) table.Cell {
	switch x := v.(type) {
	case nil:
		return table.Null()
	case string:
		return table.String(x)
	case []byte:
		return table.String(string(x))
	default:
		return table.String(fmt.Sprint(x))
	}
}
