// =============================================================================
// Ledger Reconciliation - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every stage command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (recon)
//   ├── rawCmd      (recon raw)
//   ├── cleanCmd    (recon clean)
//   ├── mixCmd      (recon mix)
//   ├── runCmd      (recon run [--from stage])
//   ├── validateCmd (recon validate)
//   └── versionCmd  (recon version)
//
// The root command owns the global flags (--config, --verbose) and builds
// the configuration and logger that the stage commands share.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ginjaninja78/ledger-recon/internal/config"
	"github.com/ginjaninja78/ledger-recon/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// defaultConfigFile is used when --config is not given. Unlike an explicit
// --config, it may be absent, in which case the built-in defaults apply.
const defaultConfigFile = "config.yaml"

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "recon",
	Short: "Ledger Reconciliation - Clean and join accounting exports",
	Long: `recon turns the spreadsheet and CSV exports of the accounting system
(vendors, customers, collections, tax credit, bank statements and CFDI
invoices) into cleaned tables and joins them into reconciliation layouts.

Stages:
  raw    read every export in the input directory into a raw table
  clean  project, rename and normalize the seven source tables
  mix    join the cleaned tables into the configured layouts

Example Usage:
  recon run                        # Run every stage
  recon run --from clean           # Rerun from the clean stage
  recon mix --config ./recon.yaml  # Rebuild the layouts only
  recon validate                   # Check configuration and raw files`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. An interrupt cancels the running stage between
// tables. Errors are printed to stderr and end the process with status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the configuration named by --config. A missing default
// file falls back to the built-in configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := cfgFile
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the run logger from the configuration and --verbose.
func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	logger, closeFn, err := logging.New(level, cfg.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	return logger, closeFn, nil
}
