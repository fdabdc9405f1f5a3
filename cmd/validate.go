// =============================================================================
// Ledger Reconciliation - Validate Command
// =============================================================================
//
// COMMAND USAGE:
//   recon validate
//
// Loads and validates the configuration, checks the source encoding, and
// resolves every category pattern against the raw directory so a missing or
// ambiguous raw table is found before the clean stage runs.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/csvparser"
	"github.com/ginjaninja78/ledger-recon/internal/store"
)

// ErrUnresolved is returned by validate when a category has no single raw
// table.
var ErrUnresolved = errors.New("raw tables do not resolve")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration and the raw tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if _, err := csvparser.LookupEncoding(cfg.CSVSettings.Encoding); err != nil {
			return fmt.Errorf("%w: csv_settings.encoding: %w", config.ErrInvalidConfig, err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Configuration is valid.")
		fmt.Fprintf(out, "  Match policy: %s\n", cfg.Policy())
		fmt.Fprintf(out, "  Encoding:     %s\n", cfg.CSVSettings.Encoding)
		for _, l := range cfg.Layouts {
			state := "enabled"
			if !l.IsEnabled() {
				state = "disabled"
			}
			fmt.Fprintf(out, "  Layout:       %s (%s, %d joins)\n", l.Name, state, len(l.Joins))
		}

		fmt.Fprintf(out, "\nRaw tables in %s:\n", cfg.RawDir)
		unresolved := 0
		for _, cat := range cfg.Categories {
			res, err := store.Resolve(cfg.RawDir, cat.Pattern, cfg.Policy(), store.Columnar.Extension())
			if err != nil {
				return err
			}
			switch res.Status {
			case store.Found:
				fmt.Fprintf(out, "  ✓ %-12s %s\n", cat.Name, res.Path)
			case store.Ambiguous:
				unresolved++
				fmt.Fprintf(out, "  ✗ %-12s ambiguous: %v\n", cat.Name, res.Candidates)
			default:
				unresolved++
				fmt.Fprintf(out, "  ✗ %-12s no file matching %q\n", cat.Name, cat.Pattern)
			}
		}
		if unresolved > 0 {
			return fmt.Errorf("%w: %d of %d categories", ErrUnresolved, unresolved, len(cfg.Categories))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
