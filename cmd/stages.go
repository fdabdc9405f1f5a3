// =============================================================================
// Ledger Reconciliation - Stage Commands
// =============================================================================
//
// COMMAND USAGE:
//   recon raw                 # input_dir  -> raw_dir
//   recon clean               # raw_dir    -> clean_dir
//   recon mix                 # clean_dir  -> mix_dir
//   recon run [--from stage]  # the stages from `stage` (default raw) on
//
// Each command loads the configuration once, runs its stages and prints a
// short report. The first failing stage ends the command with its error.
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-recon/internal/pipeline"
)

// fromStage is the --from flag of the run command.
var fromStage string

var rawCmd = &cobra.Command{
	Use:   "raw",
	Short: "Read the source exports into raw tables",
	Long: `Reads every .xlsx, .xlsm, .xls and .csv file of the input directory and
writes it unchanged to the raw directory as a columnar table. Other files are
skipped with a warning.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.Raw, false)
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the seven source tables",
	Long: `Loads the raw table of every source category, keeps and renames its
columns, normalizes join keys, rates and dates, and writes the cleaned tables
once all of them passed validation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.Cleaned, false)
	},
}

var mixCmd = &cobra.Command{
	Use:   "mix",
	Short: "Join the cleaned tables into the layouts",
	Long: `Builds every enabled layout by joining the cleaned tables in the
configured order, and writes each layout as CSV and as a styled workbook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStages(cmd, pipeline.Mixed, false)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stages in order",
	Long: `Runs raw, clean and mix in order, starting at --from. The run stops at
the first stage that fails.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := pipeline.ParseStage(fromStage)
		if err != nil {
			return err
		}
		return runStages(cmd, from, true)
	},
}

func init() {
	runCmd.Flags().StringVar(&fromStage, "from", "raw", "First stage to run: raw, clean or mix")
	rootCmd.AddCommand(rawCmd, cleanCmd, mixCmd, runCmd)
}

// runStages runs one stage, or every stage from `from` when all is set.
func runStages(cmd *cobra.Command, from pipeline.Stage, all bool) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	p := pipeline.New(cfg, logger)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "=== Ledger Reconciliation (run %s) ===\n", p.RunID())

	var reports []*pipeline.Report
	if all {
		reports, err = p.Run(cmd.Context(), from)
	} else {
		var report *pipeline.Report
		report, err = p.RunStage(cmd.Context(), from)
		if report != nil {
			reports = append(reports, report)
		}
	}

	for _, r := range reports {
		printReport(out, r)
	}
	return err
}

func printReport(w io.Writer, r *pipeline.Report) {
	fmt.Fprintf(w, "\n--- %s stage ---\n", r.Stage)
	for _, t := range r.Tables {
		fmt.Fprintf(w, "  ✓ %-24s %6d rows", t.Name, t.Rows)
		for _, f := range t.Files {
			fmt.Fprintf(w, "  %s", filepath.Base(f))
		}
		fmt.Fprintln(w)

		cols := make([]string, 0, len(t.UnparsedKeys))
		for col := range t.UnparsedKeys {
			cols = append(cols, col)
		}
		sort.Strings(cols)
		for _, col := range cols {
			fmt.Fprintf(w, "      unparsed %s: %d\n", col, t.UnparsedKeys[col])
		}
	}
	for _, f := range r.Failed {
		fmt.Fprintf(w, "  ✗ %s: %s\n", filepath.Base(f.InputFile), f.ErrorMessage)
	}
	if n := len(r.Warnings); n > 0 {
		fmt.Fprintf(w, "  Warnings:     %d\n", n)
	}
	if !r.End.IsZero() {
		fmt.Fprintf(w, "  Time elapsed: %s\n", r.End.Sub(r.Start))
	}
	if r.SummaryFile != "" {
		fmt.Fprintf(w, "  Summary:      %s\n", r.SummaryFile)
	}
}
