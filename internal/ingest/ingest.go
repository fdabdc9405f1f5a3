// =============================================================================
// Ledger Reconciliation - Raw Ingest
// =============================================================================
//
// Turns the source exports in the input directory into raw columnar tables,
// one per file. Nothing is interpreted here: every cell is the text of the
// export, so the clean stage always starts from what the accounting system
// produced.
//
// INGEST PIPELINE (per file):
//   1. Pick a reader from the extension (.xlsx/.xlsm, .xls, .csv)
//   2. Read the first sheet (or the whole delimited file) into a table
//   3. Write raw_dir/<basename>.parquet
//   4. Archive the source export when archival is enabled
//
// Files with other extensions are skipped with a warning. A file that fails
// is recorded and the remaining files are still processed; Run reports the
// failures at the end.
//
// =============================================================================

package ingest

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/csvparser"
	"github.com/ginjaninja78/ledger-recon/internal/store"
	"github.com/ginjaninja78/ledger-recon/internal/table"
	"github.com/ginjaninja78/ledger-recon/internal/xlsxparser"
	"github.com/ginjaninja78/ledger-recon/pkg/utils"
)

var (
	// ErrUnsupported is returned by ReadSource for extensions no reader
	// handles.
	ErrUnsupported = errors.New("unsupported source file type")

	// ErrSourceFailed is returned by Run when at least one source file
	// could not be ingested.
	ErrSourceFailed = errors.New("source files failed to ingest")
)

// Extensions lists the source file types the raw stage reads.
var Extensions = []string{".xlsx", ".xlsm", ".xls", ".csv"}

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// FileResult represents the outcome of ingesting a single file.
type FileResult struct {
	// FilePath is the source export.
	FilePath string

	// OutputFile is the raw table written for it. Empty on failure.
	OutputFile string

	// ArchivedTo is set when the source was moved to the archive.
	ArchivedTo string

	Rows     int
	Columns  int
	Duration time.Duration

	Success bool
	Error   error
}

// Result collects the outcome of one raw stage run.
type Result struct {
	Files   []FileResult
	Skipped []string
}

// Failed returns the results of the files that could not be ingested.
func (r Result) Failed() []FileResult {
	var failed []FileResult
	for _, f := range r.Files {
		if !f.Success {
			failed = append(failed, f)
		}
	}
	return failed
}

// =============================================================================
// INGESTER
// =============================================================================

// Ingester reads source exports into raw tables.
type Ingester struct {
	cfg    *config.Config
	files  *utils.FileManager
	writer *store.Writer
	logger *zap.Logger
}

// New creates an Ingester for the configured input and raw directories.
func New(cfg *config.Config, logger *zap.Logger) *Ingester {
	fm := utils.NewFileManager(cfg.InputDir, cfg.InputArchiveDir, cfg.RawDir)
	fm.ArchiveOnSuccess = cfg.ArchiveInputs
	return &Ingester{
		cfg:    cfg,
		files:  fm,
		writer: store.NewWriter(nil),
		logger: logger,
	}
}

// Run ingests every file of the input directory.
//
// RETURNS:
//   - The per-file results, including skipped files.
//   - An error wrapping ErrSourceFailed when a file failed, ctx.Err() when
//     the run was interrupted, or a configuration error for an unknown
//     source encoding.
func (in *Ingester) Run(ctx context.Context) (Result, error) {
	var result Result

	if _, err := csvparser.LookupEncoding(in.cfg.CSVSettings.Encoding); err != nil {
		return result, fmt.Errorf("%w: csv_settings.encoding: %w", config.ErrInvalidConfig, err)
	}

	paths, err := in.files.DiscoverInputFiles()
	if err != nil {
		return result, err
	}
	in.logger.Info("discovered input files", zap.String("dir", in.cfg.InputDir), zap.Int("count", len(paths)))

	written := make(map[string]string, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if !Supported(path) {
			in.logger.Warn("skipping unsupported file", zap.String("file", filepath.Base(path)))
			result.Skipped = append(result.Skipped, path)
			continue
		}

		name := TableName(path)
		if prev, ok := written[strings.ToLower(name)]; ok {
			fr := FileResult{
				FilePath: path,
				Error:    fmt.Errorf("raw table %q already written from %s", name, filepath.Base(prev)),
			}
			in.logger.Error("duplicate raw table name", zap.String("file", filepath.Base(path)), zap.Error(fr.Error))
			result.Files = append(result.Files, fr)
			continue
		}

		fr := in.ingestFile(path, name)
		result.Files = append(result.Files, fr)
		if fr.Success {
			written[strings.ToLower(name)] = path
		}
	}

	if failed := result.Failed(); len(failed) > 0 {
		return result, fmt.Errorf("%w: %d of %d", ErrSourceFailed, len(failed), len(result.Files))
	}
	return result, nil
}

func (in *Ingester) ingestFile(path, name string) FileResult {
	start := time.Now()
	fr := FileResult{FilePath: path}
	log := in.logger.With(zap.String("file", filepath.Base(path)))

	t, err := ReadSource(path, name, in.cfg.CSVSettings)
	if err != nil {
		fr.Error = err
		log.Error("failed to read source", zap.Error(err))
		return fr
	}
	fr.Rows, fr.Columns = t.NumRows(), t.NumCols()

	out, err := in.writer.Write(t, in.cfg.RawDir, name, store.Columnar)
	if err != nil {
		fr.Error = err
		log.Error("failed to write raw table", zap.Error(err))
		return fr
	}
	fr.OutputFile = out
	fr.Success = true

	if in.cfg.ArchiveInputs {
		archived, err := in.files.ArchiveInputFile(path)
		if err != nil {
			// The raw table exists; a failed move leaves the export in
			// place for the next run.
			log.Warn("failed to archive source", zap.Error(err))
		} else {
			fr.ArchivedTo = archived
		}
	}

	fr.Duration = time.Since(start)
	log.Info("raw table written",
		zap.String("output", out),
		zap.Int("rows", fr.Rows),
		zap.Int("columns", fr.Columns),
		zap.Duration("elapsed", fr.Duration),
	)
	return fr
}

// =============================================================================
// READERS
// =============================================================================

// Supported reports whether a file has one of the ingestible extensions.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// TableName is the raw table name of a source file: its base name without
// the extension.
func TableName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReadSource reads one source export into an all-string table.
func ReadSource(path, name string, settings config.CSVSettings) (*table.Table, error) {
	var (
		t   *table.Table
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		t, err = xlsxparser.ParseXLSX(path, name)
	case ".xls":
		t, err = xlsxparser.ParseXLS(path, name)
	case ".csv":
		t, err = csvparser.Parse(path, name, settings)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return t, nil
}
