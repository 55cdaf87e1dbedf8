// =============================================================================
// Client Billing Consolidator - Main Entry Point
// =============================================================================
//
// USAGE:
//   billing process       - Process every usage export in the input directory
//   billing assign        - Assign an account to a billing group
//   billing unmapped      - List accounts that need a billing group
//   billing reconcile     - Run the integrity check for an export
//   billing mappings      - List the saved mapping
//   billing groups        - List billing groups
//   billing version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (not for external import)
//   - pkg/           : Shared file utilities
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/client-billing-consolidator/cmd"
)

func main() {
	cmd.Execute()
}
