// =============================================================================
// Client Billing Consolidator - Assign Command
// =============================================================================
//
// COMMAND USAGE:
//   billing assign <account> <group>
//
// The group may be given as its display name ("Sylvan Learning") or its
// identifier (SYLVAN_LEARNING), in any case. The mapping file is re-read,
// the one account is updated and the whole file is written back.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/schema"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/spf13/cobra"
)

var assignCmd = &cobra.Command{
	Use:   "assign <account> <group>",
	Short: "Assign an account to a billing group",
	Long: `Assign an account to a billing group and save the mapping.

Valid groups (see 'billing groups'):
  ` + strings.Join(groupIdentifiers(), "\n  "),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAssign(args[0], args[1])
	},
}

func init() {
	rootCmd.AddCommand(assignCmd)
}

func runAssign(account, groupName string) error {
	id := schema.CanonicalAccountID(account)
	if id == "" {
		return errors.New("account id is required")
	}

	group, ok := types.ParseBillingGroup(groupName)
	if !ok {
		return fmt.Errorf("unknown billing group %q (valid: %s)", groupName, strings.Join(groupIdentifiers(), ", "))
	}

	cls := newClassifier()
	previous, existed := cls.Mapping().Lookup(id)

	err := cls.Assign(id, group)
	var warning *mapping.PersistenceWarning
	switch {
	case errors.As(err, &warning):
		fmt.Printf("⚠ %s assigned to %s for this session only: %v\n", id, group, warning.Err)
		return nil
	case err != nil:
		return err
	}

	switch {
	case existed && previous == group:
		fmt.Printf("%s is already in %s\n", id, group)
	case existed:
		fmt.Printf("✓ %s moved from %s to %s\n", id, previous, group)
	default:
		fmt.Printf("✓ %s assigned to %s\n", id, group)
	}
	return nil
}

func groupIdentifiers() []string {
	groups := types.AllGroups()
	ids := make([]string, len(groups))
	for i, g := range groups {
		ids[i] = g.Identifier()
	}
	return ids
}
