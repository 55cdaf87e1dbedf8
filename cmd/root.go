// =============================================================================
// Client Billing Consolidator - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (billing)
//   ├── processCmd   (billing process)
//   ├── assignCmd    (billing assign)
//   ├── unmappedCmd  (billing unmapped)
//   ├── reconcileCmd (billing reconcile)
//   ├── mappingsCmd  (billing mappings)
//   ├── groupsCmd    (billing groups)
//   └── versionCmd   (billing version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads a .env file if one is present
//   2. Loads the main configuration (defaults when the file is missing)
//   3. Sets up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/ginjaninja78/client-billing-consolidator/internal/classifier"
	"github.com/ginjaninja78/client-billing-consolidator/internal/config"
	"github.com/ginjaninja78/client-billing-consolidator/internal/logging"
	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/pipeline"
	"github.com/spf13/cobra"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// envFile holds the path to an optional .env file.
var envFile string

// verbose enables debug logging when set to true.
var verbose bool

// mainConfig is loaded once in PersistentPreRunE.
var mainConfig *config.MainConfig

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "billing",
	Short: "Client Billing Consolidator - Monthly usage exports to a grouped billing workbook",
	Long: `Client Billing Consolidator turns a monthly per-account usage export into a
billing workbook grouped by billing group, with subtotals, global totals and
an integrity check against the raw export.

Key Features:
  - Accepts CSV (any common encoding) and XLSX exports
  - Header synonyms are normalised to the canonical columns
  - Transcription costs are converted back to minutes
  - Accounts are assigned to billing groups once and remembered
  - Reports are withheld while any account is unassigned

Example Usage:
  billing process                        # Process every export in the input directory
  billing process usage_2026_09.csv      # Process one export
  billing assign 8053332898 INDEPENDENTS # Put an account in a billing group
  billing reconcile usage_2026_09.csv    # Run the integrity check only`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize()
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logging.Sync()
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
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"Path to an optional .env file with BILLING_* overrides",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initialize loads the environment, the configuration and the logger.
func initialize() error {
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}

	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load main config: %w", err)
	}
	mainConfig = cfg

	if err := logging.Init(cfg.LogLevel, verbose); err != nil {
		return err
	}
	logging.S().Debugw("configuration loaded", "config", cfgFile, "mappings", cfg.MappingsFile)
	return nil
}

// =============================================================================
// SHARED CONSTRUCTORS
// =============================================================================

// newClassifier opens the persisted mapping named in the configuration.
func newClassifier() *classifier.Classifier {
	store := mapping.NewFileStore(mainConfig.MappingsFile, logging.S())
	return classifier.New(store, logging.S())
}

// newProcessor builds the pipeline around a fresh classifier.
func newProcessor() (*pipeline.Processor, error) {
	return pipeline.New(mainConfig, newClassifier(), nil, logging.S())
}
