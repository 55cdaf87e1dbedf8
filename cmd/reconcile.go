// =============================================================================
// Client Billing Consolidator - Reconcile Command
// =============================================================================
//
// COMMAND USAGE:
//   billing reconcile <file>
//
// Runs the integrity check for an export against the current mapping and
// prints every metric. The check is advisory: the exit status is 0 whether
// it passes or not.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <file>",
	Short: "Compare export totals with what the report would contain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(args[0])
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(path string) error {
	processor, err := newProcessor()
	if err != nil {
		return err
	}

	result, err := processor.Reconcile(path)
	if err != nil {
		return err
	}

	fmt.Printf("Input records:     %d\n", result.InputRecords)
	fmt.Printf("Accounts reported: %d\n\n", result.ProcessedCount)

	fmt.Printf("%-22s %14s %14s %12s\n", "Metric", "Input", "Report", "Diff")
	for _, d := range result.Diffs {
		mark := "✓"
		if !d.Within {
			mark = "✗"
		}
		fmt.Printf("%-22s %14.2f %14.2f %12.2f %s\n", d.Metric, d.Input, d.Processed, d.Delta, mark)
	}

	if len(result.MissingAccounts) > 0 {
		fmt.Printf("\nMissing from report (%d):\n", len(result.MissingAccounts))
		for _, id := range result.MissingAccounts {
			fmt.Printf("  %s\n", id)
		}
	}
	if len(result.UnmappedAccounts) > 0 {
		fmt.Printf("\nWithout a billing group (%d):\n", len(result.UnmappedAccounts))
		for _, id := range result.UnmappedAccounts {
			fmt.Printf("  %s\n", id)
		}
	}

	if result.Passed {
		fmt.Println("\nReconciliation: passed")
	} else {
		fmt.Println("\nReconciliation: FAILED")
	}
	return nil
}
