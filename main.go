// =============================================================================
// Ledger Reconciliation - Main Entry Point
// =============================================================================
//
// USAGE:
//   recon raw        - Read the source exports into raw tables
//   recon clean      - Clean the seven source tables
//   recon mix        - Join the cleaned tables into the layouts
//   recon run        - Run the stages in order
//   recon validate   - Check the configuration and the raw tables
//   recon version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/       : CLI command definitions (Cobra)
//   - internal/  : table model, cleaning, joining, storage and the pipeline
//   - pkg/       : shared file management utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/ledger-recon/cmd"
)

func main() {
	cmd.Execute()
}
