// =============================================================================
// Client Billing Consolidator - Mappings and Groups Commands
// =============================================================================
//
// COMMAND USAGE:
//   billing mappings [--file <export>]
//                      List the saved account -> billing group mapping, or
//                      with --file, how the export's accounts split by group
//   billing groups     List the billing groups in report order
//
// =============================================================================

package cmd

import (
	"fmt"
	"sort"

	"github.com/ginjaninja78/client-billing-consolidator/internal/classifier"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/spf13/cobra"
)

// previewFile selects an export for the group preview.
var previewFile string

var mappingsCmd = &cobra.Command{
	Use:   "mappings",
	Short: "List the saved account to billing group mapping",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if previewFile != "" {
			return runGroupPreview(previewFile)
		}
		return runMappings()
	},
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List billing groups in report order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for i, g := range types.AllGroups() {
			fmt.Printf("%d. %-22s (%s)\n", i+1, g, g.Identifier())
		}
	},
}

func init() {
	rootCmd.AddCommand(mappingsCmd)
	rootCmd.AddCommand(groupsCmd)

	mappingsCmd.Flags().StringVar(&previewFile, "file", "", "Show per-group account counts for this export")
}

func runMappings() error {
	snapshot := newClassifier().Mapping()

	byGroup := make(map[types.BillingGroup][]string)
	for id, g := range snapshot {
		byGroup[g] = append(byGroup[g], id)
	}

	fmt.Printf("Mapping file: %s (%d accounts)\n", mainConfig.MappingsFile, len(snapshot))
	for _, g := range types.AllGroups() {
		ids := byGroup[g]
		sort.Strings(ids)
		fmt.Printf("\n%s (%d)\n", g, len(ids))
		for _, id := range ids {
			fmt.Printf("  %s\n", id)
		}
	}
	return nil
}

// runGroupPreview prints how many of the export's accounts fall in each
// group, and how many have none yet.
func runGroupPreview(path string) error {
	processor, err := newProcessor()
	if err != nil {
		return err
	}

	prepared, err := processor.Prepare(path)
	if err != nil {
		return err
	}

	snapshot := processor.Classifier().Mapping()
	counts := classifier.GroupCounts(prepared.Records, snapshot)
	result := classifier.Classify(prepared.Records, snapshot)

	fmt.Printf("%d account(s) in %s\n", len(result.Mapped)+len(result.Unmapped), path)
	for _, g := range types.AllGroups() {
		fmt.Printf("  %-22s %d\n", g, counts[g])
	}
	if len(result.Unmapped) > 0 {
		fmt.Printf("  %-22s %d\n", "(unassigned)", len(result.Unmapped))
	}
	return nil
}
