// =============================================================================
// Ledger Reconciliation - Pipeline
// =============================================================================
//
// Runs the three stages of a reconciliation:
//
//   input_dir --(raw)--> raw_dir --(clean)--> clean_dir --(mix)--> mix_dir
//
// RAW:   every source export becomes one columnar table of strings.
// CLEAN: the seven source categories are loaded from raw_dir, cleaned and,
//        only when all seven succeeded, written to clean_dir.
// MIX:   each enabled layout joins cleaned tables in order and is written
//        as CSV and as a styled workbook.
//
// Every stage writes a summary log and a _stage.yaml manifest to its output
// directory. Stages read only the previous stage's files, so any stage can
// be rerun on its own.
//
// The context is checked between tables: an interrupt stops the run after
// the table being processed.
//
// =============================================================================

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/ingest"
	"github.com/ginjaninja78/ledger-recon/internal/join"
	"github.com/ginjaninja78/ledger-recon/internal/store"
	"github.com/ginjaninja78/ledger-recon/internal/table"
	"github.com/ginjaninja78/ledger-recon/pkg/utils"
)

// =============================================================================
// REPORT
// =============================================================================

// Report summarizes one stage run.
type Report struct {
	RunID    string
	Stage    Stage
	Start    time.Time
	End      time.Time
	Tables   []TableReport
	Failed   []utils.FailedFileInfo
	Warnings []string

	// SummaryFile is the summary log written for the stage.
	SummaryFile string
}

// TableReport describes one table a stage produced.
type TableReport struct {
	Name    string
	Source  string
	Files   []string
	Rows    int
	Columns []string

	// UnparsedKeys counts non-numeric key values per key column.
	UnparsedKeys map[string]int
}

// Table returns the report entry for a table name.
func (r *Report) Table(name string) (TableReport, bool) {
	for _, t := range r.Tables {
		if t.Name == name {
			return t, true
		}
	}
	return TableReport{}, false
}

// warn logs a warning and keeps it for the summary log.
func (r *Report) warn(logger *zap.Logger, msg string, fields ...zap.Field) {
	logger.Warn(msg, fields...)
	enc := zapcore.NewMapObjectEncoder()
	line := msg
	for _, f := range fields {
		f.AddTo(enc)
		line += fmt.Sprintf(" %s=%v", f.Key, enc.Fields[f.Key])
	}
	r.Warnings = append(r.Warnings, line)
}

func (r *Report) summary() utils.StageSummary {
	s := utils.StageSummary{
		RunID:     r.RunID,
		Stage:     r.Stage.String(),
		StartTime: r.Start,
		EndTime:   r.End,
		Failed:    r.Failed,
		Warnings:  r.Warnings,
	}
	for _, t := range r.Tables {
		s.Tables = append(s.Tables, utils.TableSummary{
			Name:         t.Name,
			Source:       t.Source,
			Files:        t.Files,
			Rows:         t.Rows,
			UnparsedKeys: t.UnparsedKeys,
		})
	}
	return s
}

func (r *Report) manifest() Manifest {
	m := Manifest{RunID: r.RunID, Stage: r.Stage.String(), CreatedAt: r.End}
	for _, t := range r.Tables {
		m.Tables = append(m.Tables, ManifestTable{
			Name:    t.Name,
			Source:  t.Source,
			Files:   t.Files,
			Rows:    t.Rows,
			Columns: t.Columns,
		})
	}
	return m
}

// =============================================================================
// PIPELINE
// =============================================================================

// Pipeline runs reconciliation stages with one configuration.
type Pipeline struct {
	cfg    *config.Config
	runID  string
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Pipeline. The configuration is shared by every stage and
// must not be modified while the pipeline runs.
func New(cfg *config.Config, logger *zap.Logger) *Pipeline {
	runID := utils.NewRunID()
	return &Pipeline{
		cfg:    cfg,
		runID:  runID,
		logger: logger.With(zap.String("run_id", runID)),
		now:    time.Now,
	}
}

// RunID returns the identifier shared by this pipeline's logs, summaries
// and manifests.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run executes the stages from `from` through Mixed and returns their
// reports. It stops at the first stage that fails.
func (p *Pipeline) Run(ctx context.Context, from Stage) ([]*Report, error) {
	if from < Raw || from > Mixed {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidStage, from)
	}

	var reports []*Report
	for stage := from; ; {
		report, err := p.RunStage(ctx, stage)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, fmt.Errorf("%s stage: %w", stage, err)
		}
		next, ok := stage.Next()
		if !ok {
			return reports, nil
		}
		stage = next
	}
}

// RunStage executes a single stage.
func (p *Pipeline) RunStage(ctx context.Context, stage Stage) (*Report, error) {
	switch stage {
	case Raw:
		return p.RunRaw(ctx)
	case Cleaned:
		return p.RunClean(ctx)
	case Mixed:
		return p.RunMix(ctx)
	default:
		return nil, fmt.Errorf("%w: got %s", ErrInvalidStage, stage)
	}
}

func (p *Pipeline) begin(stage Stage) (*Report, *zap.Logger) {
	logger := p.logger.With(zap.String("stage", stage.String()))
	logger.Info("stage started")
	return &Report{RunID: p.runID, Stage: stage, Start: p.now()}, logger
}

// finish writes the summary log and, for a successful stage, the manifest.
func (p *Pipeline) finish(report *Report, logger *zap.Logger, dir string, stageErr error) error {
	report.End = p.now()

	summaryPath, err := utils.WriteSummaryLog(report.summary(), dir)
	if err != nil {
		logger.Error("failed to write summary log", zap.Error(err))
	} else {
		report.SummaryFile = summaryPath
	}

	if stageErr != nil {
		logger.Error("stage failed", zap.Error(stageErr))
		return stageErr
	}
	if err := WriteManifest(dir, report.manifest()); err != nil {
		return err
	}

	logger.Info("stage finished",
		zap.Int("tables", len(report.Tables)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("elapsed", report.End.Sub(report.Start)),
	)
	return nil
}

// checkPrevious warns when the stage feeding `stage` left no manifest.
func (p *Pipeline) checkPrevious(report *Report, logger *zap.Logger, stage Stage, dir string) {
	prev, ok := stage.previous()
	if !ok {
		return
	}
	m, err := ReadManifest(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		report.warn(logger, "previous stage manifest missing", zap.String("previous", prev.String()), zap.String("dir", dir))
	case err != nil:
		report.warn(logger, "previous stage manifest unreadable", zap.String("previous", prev.String()), zap.String("error", err.Error()))
	default:
		logger.Debug("previous stage manifest",
			zap.String("previous_run_id", m.RunID),
			zap.Time("created_at", m.CreatedAt),
			zap.Int("tables", len(m.Tables)),
		)
	}
}

// =============================================================================
// RAW STAGE
// =============================================================================

// RunRaw reads every source export of the input directory into raw_dir.
func (p *Pipeline) RunRaw(ctx context.Context) (*Report, error) {
	report, logger := p.begin(Raw)

	result, err := ingest.New(p.cfg, logger).Run(ctx)
	for _, f := range result.Files {
		if !f.Success {
			report.Failed = append(report.Failed, utils.FailedFileInfo{InputFile: f.FilePath, ErrorMessage: f.Error.Error()})
			continue
		}
		report.Tables = append(report.Tables, TableReport{
			Name:   ingest.TableName(f.FilePath),
			Source: f.FilePath,
			Files:  []string{f.OutputFile},
			Rows:   f.Rows,
		})
	}
	for _, s := range result.Skipped {
		report.Warnings = append(report.Warnings, "skipped unsupported file "+s)
	}

	return report, p.finish(report, logger, p.cfg.RawDir, err)
}

// =============================================================================
// CLEAN STAGE
// =============================================================================

// RunClean cleans every configured category. The cleaned tables are written
// only after all of them succeeded, so clean_dir never mixes tables of two
// runs.
func (p *Pipeline) RunClean(ctx context.Context) (*Report, error) {
	report, logger := p.begin(Cleaned)
	p.checkPrevious(report, logger, Cleaned, p.cfg.RawDir)

	err := p.clean(ctx, report, logger)
	return report, p.finish(report, logger, p.cfg.CleanDir, err)
}

func (p *Pipeline) clean(ctx context.Context, report *Report, logger *zap.Logger) error {
	loader := store.NewLoader(p.cfg.RawDir, p.cfg.Policy(), store.Columnar)

	type cleaned struct {
		table  *table.Table
		source string
		stats  CleanStats
	}
	results := make([]cleaned, 0, len(p.cfg.Categories))

	for _, cat := range p.cfg.Categories {
		if err := ctx.Err(); err != nil {
			return err
		}
		log := logger.With(zap.String("category", cat.Name))

		raw, err := loader.Load(cat.Pattern)
		if err != nil {
			return fmt.Errorf("load %s: %w", cat.Name, err)
		}
		log.Debug("raw table loaded", zap.Int("rows", raw.NumRows()), zap.Int("columns", raw.NumCols()))

		t, stats, err := Clean(raw, cat)
		if err != nil {
			return fmt.Errorf("clean %s: %w", cat.Name, err)
		}

		if len(stats.MissingColumns) > 0 {
			report.warn(log, "columns missing from raw table", zap.Strings("columns", stats.MissingColumns))
		}
		if len(stats.SkippedColumns) > 0 {
			report.warn(log, "columns not processed", zap.Strings("columns", stats.SkippedColumns))
		}
		for _, ks := range stats.Keys {
			if ks.Unparsed > 0 {
				report.warn(log, "unparsed key values",
					zap.String("column", ks.Column),
					zap.Int("count", ks.Unparsed),
					zap.Strings("samples", ks.UnparsedSamples),
				)
			}
		}
		log.Info("table cleaned",
			zap.Int("rows", t.NumRows()),
			zap.Int("nulls", stats.NullsCanonicalized),
		)
		results = append(results, cleaned{table: t, source: raw.Name, stats: stats})
	}

	writer := store.NewWriter(nil)
	for _, c := range results {
		path, err := writer.Write(c.table, p.cfg.CleanDir, c.table.Name, store.Columnar)
		if err != nil {
			return err
		}
		report.Tables = append(report.Tables, TableReport{
			Name:         c.table.Name,
			Source:       c.source,
			Files:        []string{path},
			Rows:         c.table.NumRows(),
			Columns:      c.table.Columns(),
			UnparsedKeys: c.stats.Unparsed(),
		})
	}
	return nil
}

// =============================================================================
// MIX STAGE
// =============================================================================

// RunMix builds every enabled layout from the cleaned tables.
func (p *Pipeline) RunMix(ctx context.Context) (*Report, error) {
	report, logger := p.begin(Mixed)
	p.checkPrevious(report, logger, Mixed, p.cfg.CleanDir)

	err := p.mix(ctx, report, logger)
	return report, p.finish(report, logger, p.cfg.MixDir, err)
}

func (p *Pipeline) mix(ctx context.Context, report *Report, logger *zap.Logger) error {
	loader := store.NewLoader(p.cfg.CleanDir, store.Exact, store.Columnar)
	loaded := make(map[string]*table.Table)

	load := func(category string) (*table.Table, error) {
		if t, ok := loaded[category]; ok {
			return t, nil
		}
		cat, ok := p.cfg.Category(category)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q", config.ErrInvalidConfig, category)
		}
		t, err := loader.Load(cat.CleanName)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cat.CleanName, err)
		}
		loaded[category] = t
		return t, nil
	}

	for _, layout := range p.cfg.Layouts {
		log := logger.With(zap.String("layout", layout.Name))
		if !layout.IsEnabled() {
			log.Debug("layout disabled")
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := p.buildLayout(ctx, layout, load, log)
		if err != nil {
			return fmt.Errorf("layout %s: %w", layout.Name, err)
		}

		writer := store.NewWriter(layout.RateColumns)
		tr := TableReport{Name: layout.Name, Rows: t.NumRows(), Columns: t.Columns()}
		for _, f := range layout.Formats {
			format, err := store.ParseFormat(f)
			if err != nil {
				return fmt.Errorf("layout %s: %w", layout.Name, err)
			}
			path, err := writer.Write(t, p.cfg.MixDir, layout.Name, format)
			if err != nil {
				return fmt.Errorf("layout %s: %w", layout.Name, err)
			}
			tr.Files = append(tr.Files, path)
		}
		report.Tables = append(report.Tables, tr)
		log.Info("layout written", zap.Int("rows", tr.Rows), zap.Strings("files", tr.Files))
	}
	return nil
}

func (p *Pipeline) buildLayout(ctx context.Context, layout config.Layout, load func(string) (*table.Table, error), log *zap.Logger) (*table.Table, error) {
	t, err := load(layout.Base)
	if err != nil {
		return nil, err
	}

	for _, step := range layout.Joins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kind, err := join.ParseKind(step.Kind)
		if err != nil {
			return nil, err
		}
		right, err := load(step.Category)
		if err != nil {
			return nil, err
		}

		before := t.NumRows()
		res, err := join.Join(t, right, step.LeftKey, step.RightKey, kind)
		if err != nil {
			return nil, fmt.Errorf("join %s: %w", step.Category, err)
		}
		t = res.Table
		log.Info("joined",
			zap.String("category", step.Category),
			zap.String("kind", kind.String()),
			zap.String("left_key", step.LeftKey),
			zap.String("right_key", step.RightKey),
			zap.Int("rows_before", before),
			zap.Int("rows_after", res.Rows),
		)
	}

	out := t.Clone()
	out.Name = layout.Name
	return out, nil
}
