// =============================================================================
// Client Billing Consolidator - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main command for turning
// usage exports into billing workbooks.
//
// COMMAND USAGE:
//   billing process [files...] [flags]
//
// FLAGS:
//   --dry-run     : Run every step but do not write workbooks or archive
//   --output-dir  : Write workbooks here instead of output_dir
//
// PROCESSING PIPELINE:
//   1. Discover exports in the input directory (unless files are named)
//   2. For each file, one at a time:
//      a. Load, normalise and derive usage records
//      b. Stop and list accounts that need a billing group
//      c. Aggregate, reconcile and assemble the report
//      d. Write the workbook and archive the export
//   3. Print and write the run summary
//   4. Write run metrics when metrics_textfile is set
//
// =============================================================================

package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ginjaninja78/client-billing-consolidator/internal/classifier"
	"github.com/ginjaninja78/client-billing-consolidator/internal/logging"
	"github.com/ginjaninja78/client-billing-consolidator/internal/pipeline"
	"github.com/ginjaninja78/client-billing-consolidator/internal/reconcile"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/ginjaninja78/client-billing-consolidator/pkg/utils"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun runs the pipeline without writing workbooks.
var dryRun bool

// outputDir overrides the configured output directory.
var outputDir string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process [files...]",
	Short: "Process usage exports into billing workbooks",
	Long: `The process command reads each usage export, groups its accounts by billing
group and writes a workbook with group subtotals and global totals.

With no arguments, every .csv and .xlsx file in the input directory is
processed. Files are handled one at a time and a failure in one file does
not stop the others.

If an export contains accounts that have no billing group yet, no workbook
is written for it. The first few such accounts are listed; assign them with
'billing assign' and run the command again.

On success:
  - The workbook is placed in the output directory
  - The export is moved to the input archive (when archive_inputs is set)
  - A processing summary is written to the output directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(args)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Run every step but do not write workbooks or archive exports",
	)

	processCmd.Flags().StringVar(
		&outputDir,
		"output-dir",
		"",
		"Write workbooks to this directory instead of output_dir",
	)
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(args []string) error {
	startTime := time.Now()
	log := logging.S()

	fmt.Println("=== Client Billing Consolidator ===")

	// =========================================================================
	// STEP 1: PREPARE DIRECTORIES AND PROCESSOR
	// =========================================================================

	targetDir := mainConfig.OutputDir
	if outputDir != "" {
		targetDir = outputDir
	}

	files := utils.NewFileManager(mainConfig.InputDir, targetDir, mainConfig.InputArchiveDir)
	if err := files.EnsureDirectories(); err != nil {
		return err
	}

	processor, err := newProcessor()
	if err != nil {
		return err
	}
	processor.DryRun = dryRun
	processor.OutputDir = targetDir

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	inputFiles := args
	if len(inputFiles) == 0 {
		fmt.Println("Discovering input files...")
		inputFiles, err = files.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Printf("No usage exports found in %s.\n", mainConfig.InputDir)
		return nil
	}

	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))
	if dryRun {
		fmt.Println("Dry run: no workbooks will be written.")
	}

	// =========================================================================
	// STEP 3: PROCESS FILES
	// =========================================================================
	// One file at a time: assignments made between runs must be visible to
	// the next file, and the mapping file has a single writer.

	summary := utils.ProcessingSummary{
		StartTime:  startTime,
		TotalFiles: len(inputFiles),
	}
	var errorEntries []utils.ErrorLogEntry

	for _, file := range inputFiles {
		result := processor.Process(file)
		name := filepath.Base(file)

		summary.TotalRecords += result.Stats.Records
		summary.ParseWarnings += len(result.Warnings)
		summary.Files = append(summary.Files, utils.FileSummary{
			InputFile:   file,
			OutputFile:  result.OutputFile,
			ArchivePath: result.ArchivePath,
			RunID:       result.RunID,
			Status:      string(result.Status),
			Records:     result.Stats.Records,
			Unmapped:    result.Stats.Unmapped,
			Reconciled:  result.Reconciliation.Passed,
			Error:       errorText(result.Error),
			ProcessTime: result.Stats.ProcessingTime,
		})

		for _, w := range result.Warnings {
			errorEntries = append(errorEntries, utils.ErrorLogEntry{
				Timestamp:    time.Now(),
				FileName:     name,
				ErrorType:    "parse_warning",
				ErrorMessage: w.String(),
				RowNumber:    w.Row,
				FieldName:    w.Column,
				FieldValue:   w.Value,
			})
		}

		switch result.Status {
		case pipeline.StatusWritten:
			summary.Written++
			fmt.Printf("  ✓ %s -> %s\n", name, result.OutputFile)
			printGroupPreview(result.Aggregation.Groups)
			printReconciliation(result.Reconciliation)

		case pipeline.StatusDryRun:
			summary.Written++
			fmt.Printf("  ✓ %s (dry run, %d report rows)\n", name, len(result.Rows))
			printGroupPreview(result.Aggregation.Groups)
			printReconciliation(result.Reconciliation)

		case pipeline.StatusGated:
			summary.Gated++
			fmt.Printf("  ⚠ %s: %d account(s) need a billing group\n", name, result.Stats.Unmapped)
			printPending(result.Pending)

		case pipeline.StatusBlocked:
			summary.Blocked++
			fmt.Printf("  ✗ %s: reconciliation failed, workbook withheld\n", name)
			printReconciliation(result.Reconciliation)

		default:
			summary.Failed++
			fmt.Printf("  ✗ %s: %v\n", name, result.Error)
			errorEntries = append(errorEntries, utils.ErrorLogEntry{
				Timestamp:    time.Now(),
				FileName:     name,
				ErrorType:    "processing_failed",
				ErrorMessage: errorText(result.Error),
			})
		}
	}

	// =========================================================================
	// STEP 4: PRINT AND WRITE SUMMARY
	// =========================================================================

	summary.EndTime = time.Now()
	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:      %d\n", summary.TotalFiles)
	fmt.Printf("Reports:          %d\n", summary.Written)
	fmt.Printf("Awaiting mapping: %d\n", summary.Gated)
	if summary.Blocked > 0 {
		fmt.Printf("Blocked:          %d\n", summary.Blocked)
	}
	fmt.Printf("Errors:           %d\n", summary.Failed)
	fmt.Printf("Time elapsed:     %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if !dryRun {
		if path, err := utils.WriteSummaryLog(summary, targetDir); err != nil {
			log.Warnw("failed to write summary log", "error", err)
		} else {
			log.Debugw("wrote summary log", "path", path)
		}

		if path, err := utils.WriteErrorLog(errorEntries, targetDir, summary.EndTime); err != nil {
			log.Warnw("failed to write error log", "error", err)
		} else if path != "" {
			fmt.Printf("\nWarnings and errors have been logged to %s\n", path)
		}
	}

	// =========================================================================
	// STEP 5: METRICS
	// =========================================================================

	if mainConfig.MetricsTextfile != "" {
		if err := processor.Metrics().WriteTextfile(mainConfig.MetricsTextfile, summary.EndTime); err != nil {
			log.Warnw("failed to write metrics", "error", err)
		}
	}

	return nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// printPending lists one page of accounts awaiting a billing group.
func printPending(page classifier.Page) {
	for _, a := range page.Accounts {
		fmt.Printf("      %s\n", a.Display())
	}
	if more := page.Remaining(); more > 0 {
		fmt.Printf("      ... and %d more need assignment\n", more)
	}
	fmt.Println("    Assign with: billing assign <account> <group>")
}

// printGroupPreview prints the account count of each non-empty group.
func printGroupPreview(groups []types.AggregatedGroup) {
	for _, g := range groups {
		if len(g.Accounts) == 0 {
			continue
		}
		fmt.Printf("      %-22s %d account(s)\n", g.Group, len(g.Accounts))
	}
}

// printReconciliation prints the verdict and any metric outside tolerance.
func printReconciliation(result types.ReconciliationResult) {
	if result.Passed {
		fmt.Println("    Reconciliation: passed")
		return
	}

	fmt.Println("    Reconciliation: FAILED")
	for _, d := range reconcile.FailedDiffs(result) {
		fmt.Printf("      %-22s input %.2f  report %.2f  diff %.2f\n", d.Metric, d.Input, d.Processed, d.Delta)
	}
	if len(result.MissingAccounts) > 0 {
		fmt.Printf("      %d account(s) missing from the report\n", len(result.MissingAccounts))
	}
	if len(result.UnmappedAccounts) > 0 {
		fmt.Printf("      %d account(s) without a billing group\n", len(result.UnmappedAccounts))
	}
}
