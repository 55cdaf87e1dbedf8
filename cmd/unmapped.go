// =============================================================================
// Client Billing Consolidator - Unmapped Command
// =============================================================================
//
// COMMAND USAGE:
//   billing unmapped <file> [--all]
//
// Lists the accounts in an export that have no billing group. By default
// only the first assignment_page_size accounts are shown.
//
// =============================================================================

package cmd

import (
	"fmt"

	"github.com/ginjaninja78/client-billing-consolidator/internal/classifier"
	"github.com/spf13/cobra"
)

// showAll lifts the page limit.
var showAll bool

var unmappedCmd = &cobra.Command{
	Use:   "unmapped <file>",
	Short: "List accounts in an export that need a billing group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnmapped(args[0])
	},
}

func init() {
	rootCmd.AddCommand(unmappedCmd)

	unmappedCmd.Flags().BoolVar(&showAll, "all", false, "List every unmapped account")
}

func runUnmapped(path string) error {
	processor, err := newProcessor()
	if err != nil {
		return err
	}

	prepared, err := processor.Prepare(path)
	if err != nil {
		return err
	}

	pageSize := mainConfig.AssignmentPageSize
	if showAll {
		pageSize = 0
	}
	page := classifier.Pending(prepared.Records, processor.Classifier().Mapping(), pageSize)

	if page.Total == 0 {
		fmt.Println("✓ Every account has a billing group.")
		return nil
	}

	fmt.Printf("%d account(s) need a billing group:\n", page.Total)
	printPending(page)
	return nil
}
