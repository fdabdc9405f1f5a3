// =============================================================================
// Ledger Reconciliation - File Manager Utility
// =============================================================================
//
// File management utilities for the pipeline stages:
//   - Directory management
//   - Source file discovery
//   - Source file archival (moving exports once the raw stage wrote them)
//   - Run identifiers
//   - Stage summary logs
//
// ARCHIVAL STRATEGY:
//   - Source exports are moved to the archive only after their raw table
//     has been written
//   - Failed files remain in the input directory
//   - A rename is tried first; across devices the file is copied and the
//     original removed
//
// =============================================================================

package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// FILE MANAGER
// =============================================================================

// FileManager handles file operations for the pipeline.
type FileManager struct {
	// InputDir is the directory where source exports are placed.
	InputDir string

	// InputArchiveDir receives archived source exports.
	InputArchiveDir string

	// StageDirs are the raw, clean and mix output directories.
	StageDirs []string

	// UseTimestampSubdirs creates date-based subdirectories in the archive.
	// Example: input_archive/2026/01/15/BANCOS.xlsx
	UseTimestampSubdirs bool

	// ArchiveOnSuccess enables archival of processed source exports.
	ArchiveOnSuccess bool
}

// NewFileManager creates a FileManager. Archival is off until
// ArchiveOnSuccess is set.
func NewFileManager(inputDir, inputArchiveDir string, stageDirs ...string) *FileManager {
	return &FileManager{
		InputDir:        inputDir,
		InputArchiveDir: inputArchiveDir,
		StageDirs:       stageDirs,
	}
}

// =============================================================================
// DIRECTORY MANAGEMENT
// =============================================================================

// EnsureDirectories creates the input and stage directories, and the
// archive directory when archival is enabled.
func (fm *FileManager) EnsureDirectories() error {
	dirs := append([]string{fm.InputDir}, fm.StageDirs...)
	if fm.ArchiveOnSuccess {
		dirs = append(dirs, fm.InputArchiveDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// =============================================================================
// FILE DISCOVERY
// =============================================================================

// DiscoverInputFiles lists the regular files in the input directory whose
// extension is one of exts (case-insensitive), sorted by name. With no
// exts every regular file is returned. Hidden files and spreadsheet lock
// files ("~$...") are skipped.
func (fm *FileManager) DiscoverInputFiles(exts ...string) ([]string, error) {
	entries, err := os.ReadDir(fm.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	var result []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if len(exts) > 0 && !hasExtension(name, exts) {
			continue
		}
		result = append(result, filepath.Join(fm.InputDir, name))
	}
	sort.Strings(result)
	return result, nil
}

func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, e := range exts {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// =============================================================================
// FILE ARCHIVAL
// =============================================================================

// ArchiveInputFile moves a source export to the archive directory and
// returns its new path. With archival disabled the path is returned
// unchanged.
func (fm *FileManager) ArchiveInputFile(filePath string) (string, error) {
	if !fm.ArchiveOnSuccess {
		return filePath, nil
	}

	archivePath := fm.getArchivePath(filePath, time.Now())

	if err := os.MkdirAll(filepath.Dir(archivePath), 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	if err := os.Rename(filePath, archivePath); err != nil {
		// Cross-device moves fail; fall back to copy and delete.
		if err := copyFile(filePath, archivePath); err != nil {
			return "", fmt.Errorf("failed to copy file to archive: %w", err)
		}
		if err := os.Remove(filePath); err != nil {
			return "", fmt.Errorf("failed to remove original file: %w", err)
		}
	}

	return archivePath, nil
}

func (fm *FileManager) getArchivePath(filePath string, now time.Time) string {
	fileName := filepath.Base(filePath)

	if fm.UseTimestampSubdirs {
		return filepath.Join(
			fm.InputArchiveDir,
			fmt.Sprintf("%d", now.Year()),
			fmt.Sprintf("%02d", now.Month()),
			fmt.Sprintf("%02d", now.Day()),
			fileName,
		)
	}
	return filepath.Join(fm.InputArchiveDir, fileName)
}

// =============================================================================
// RUN IDENTIFIERS
// =============================================================================

// NewRunID returns a fresh identifier tying together the logs, manifests
// and summaries of one run.
func NewRunID() string {
	return uuid.New().String()
}

// =============================================================================
// STAGE SUMMARY
// =============================================================================

// StageSummary contains summary information about one stage run.
type StageSummary struct {
	RunID     string
	Stage     string
	StartTime time.Time
	EndTime   time.Time
	Tables    []TableSummary
	Failed    []FailedFileInfo
	Warnings  []string
}

// TableSummary describes one table produced by a stage.
type TableSummary struct {
	Name   string
	Source string
	Files  []string
	Rows   int

	// UnparsedKeys counts key values left as-is because they were not
	// numeric, per key column.
	UnparsedKeys map[string]int
}

// FailedFileInfo describes a source file the stage could not process.
type FailedFileInfo struct {
	InputFile    string
	ErrorMessage string
}

// WriteSummaryLog writes a stage summary to outputDir and returns its path.
// The file is named <stage>_summary_<timestamp>.txt.
func WriteSummaryLog(summary StageSummary, outputDir string) (string, error) {
	timestamp := summary.EndTime.Format("20060102_150405")
	summaryPath := filepath.Join(outputDir, fmt.Sprintf("%s_summary_%s.txt", summary.Stage, timestamp))

	file, err := os.Create(summaryPath)
	if err != nil {
		return "", fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)

	totalRows := 0
	for _, t := range summary.Tables {
		totalRows += t.Rows
	}

	fmt.Fprintf(w, "Ledger Reconciliation - Stage Summary (%s)\n", summary.Stage)
	fmt.Fprintf(w, "================================================================================\n\n")
	fmt.Fprintf(w, "Run Information:\n")
	fmt.Fprintf(w, "  Run ID:         %s\n", summary.RunID)
	fmt.Fprintf(w, "  Start Time:     %s\n", summary.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  End Time:       %s\n", summary.EndTime.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "  Duration:       %s\n\n", summary.EndTime.Sub(summary.StartTime).String())
	fmt.Fprintf(w, "Statistics:\n")
	fmt.Fprintf(w, "  Tables:         %d\n", len(summary.Tables))
	fmt.Fprintf(w, "  Total Rows:     %d\n", totalRows)
	fmt.Fprintf(w, "  Failed Files:   %d\n\n", len(summary.Failed))

	if len(summary.Tables) > 0 {
		fmt.Fprintf(w, "Tables:\n")
		fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
		for _, t := range summary.Tables {
			fmt.Fprintf(w, "  Table:        %s\n", t.Name)
			if t.Source != "" {
				fmt.Fprintf(w, "  Source:       %s\n", t.Source)
			}
			for _, f := range t.Files {
				fmt.Fprintf(w, "  Output:       %s\n", f)
			}
			fmt.Fprintf(w, "  Rows:         %d\n", t.Rows)
			cols := make([]string, 0, len(t.UnparsedKeys))
			for col := range t.UnparsedKeys {
				cols = append(cols, col)
			}
			sort.Strings(cols)
			for _, col := range cols {
				fmt.Fprintf(w, "  Unparsed key: %s (%d)\n", col, t.UnparsedKeys[col])
			}
			fmt.Fprintln(w)
		}
	}

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n")
		fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
		for _, msg := range summary.Warnings {
			fmt.Fprintf(w, "  %s\n", msg)
		}
		fmt.Fprintln(w)
	}

	if len(summary.Failed) > 0 {
		fmt.Fprintf(w, "Failed Files:\n")
		fmt.Fprintf(w, "--------------------------------------------------------------------------------\n")
		for _, ff := range summary.Failed {
			fmt.Fprintf(w, "  File:  %s\n", ff.InputFile)
			fmt.Fprintf(w, "  Error: %s\n\n", ff.ErrorMessage)
		}
	}

	fmt.Fprintf(w, "================================================================================\n")
	fmt.Fprintf(w, "End of Summary\n")

	if err := w.Flush(); err != nil {
		return "", fmt.Errorf("failed to flush summary file: %w", err)
	}
	return summaryPath, nil
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	return destFile.Sync()
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
