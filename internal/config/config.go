// =============================================================================
// Client Billing Consolidator - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Two documents are
// involved:
//   1. Main Config (config.yaml): directories, mapping file, rates, output
//   2. Synonym Table (optional YAML): header synonyms for the normaliser
//
// Settings can also be overridden from the environment (and a .env file),
// which is how the mapping file location is usually pinned on shared hosts.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

const (
	EnvMappingsFile = "BILLING_MAPPINGS_FILE"
	EnvOutputDir    = "BILLING_OUTPUT_DIR"
	EnvLogLevel     = "BILLING_LOG_LEVEL"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is scanned for usage exports when no file is named explicitly.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives generated workbooks and run summaries.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir is where processed exports are moved when ArchiveInputs
	// is set. Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ArchiveInputs moves an export out of InputDir once its report is written.
	ArchiveInputs bool `yaml:"archive_inputs"`

	// =========================================================================
	// MAPPING SETTINGS
	// =========================================================================

	// MappingsFile is the persisted account -> billing group document.
	// Default: "./account_group_mappings.json"
	MappingsFile string `yaml:"mappings_file"`

	// SynonymsFile optionally replaces the built-in header synonym table.
	SynonymsFile string `yaml:"synonyms_file"`

	// AssignmentPageSize is how many unmapped accounts are offered for
	// assignment per invocation. Default: 5
	AssignmentPageSize int `yaml:"assignment_page_size"`

	// =========================================================================
	// CALCULATION SETTINGS
	// =========================================================================

	// TranscriptionRate is the per-minute cost used to turn a transcription
	// cost back into minutes. Kept as text so it stays exact. Default: "0.02"
	TranscriptionRate string `yaml:"transcription_rate"`

	// ReconcileTolerance is the absolute per-metric tolerance. Default: 0.01
	ReconcileTolerance float64 `yaml:"reconcile_tolerance"`

	// BlockOnReconciliationFailure withholds the workbook when the integrity
	// check fails. Off by default: the check is advisory.
	BlockOnReconciliationFailure bool `yaml:"block_on_reconciliation_failure"`

	// =========================================================================
	// INPUT SETTINGS
	// =========================================================================

	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputNameFormat defines the workbook file name.
	// Placeholders:
	//   {date}      - Run date (YYYY-MM-DD)
	//   {timestamp} - Run timestamp (YYYYMMDD_HHMMSS)
	//   {uuid}      - Run ID
	//   {original}  - Input file name without extension
	// Default: "consolidated_billing_{date}.xlsx"
	OutputNameFormat string `yaml:"output_name_format"`

	// ReportTitle prefixes the merged title row. Default: "Client Billing Report"
	ReportTitle string `yaml:"report_title"`

	// SheetName is the worksheet name. Default: "Billing Report"
	SheetName string `yaml:"sheet_name"`

	// MetricsTextfile, when set, receives Prometheus metrics in the
	// node-exporter textfile format after every run.
	MetricsTextfile string `yaml:"metrics_textfile"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error". Default: "info"
	LogLevel string `yaml:"log_level"`
}

// CSVSettings contains settings for parsing delimited exports.
type CSVSettings struct {
	// Delimiter is the field separator. Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is "auto" (UTF-8 with Latin-1 fallback) or a charset label.
	// Default: "auto"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// A missing file is not an error: defaults apply, so the tool works out of a
// bare directory. Environment overrides are applied after the file and
// before validation.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	var config MainConfig

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	applyMainConfigDefaults(&config)
	applyEnvOverrides(&config)

	if err := validateMainConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment. A missing file is ignored; variables already set win.
func LoadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = "./input_archive"
	}
	if config.MappingsFile == "" {
		config.MappingsFile = "./account_group_mappings.json"
	}
	if config.AssignmentPageSize == 0 {
		config.AssignmentPageSize = 5
	}
	if config.TranscriptionRate == "" {
		config.TranscriptionRate = "0.02"
	}
	if config.ReconcileTolerance == 0 {
		config.ReconcileTolerance = 0.01
	}
	if config.CSVSettings.Delimiter == "" {
		config.CSVSettings.Delimiter = ","
	}
	if config.CSVSettings.Encoding == "" {
		config.CSVSettings.Encoding = "auto"
	}
	if config.OutputNameFormat == "" {
		config.OutputNameFormat = "consolidated_billing_{date}.xlsx"
	}
	if config.ReportTitle == "" {
		config.ReportTitle = "Client Billing Report"
	}
	if config.SheetName == "" {
		config.SheetName = "Billing Report"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}

func applyEnvOverrides(config *MainConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvMappingsFile)); v != "" {
		config.MappingsFile = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvOutputDir)); v != "" {
		config.OutputDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		config.LogLevel = v
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if _, err := config.Rate(); err != nil {
		return err
	}

	if config.ReconcileTolerance < 0 {
		return fmt.Errorf("reconcile_tolerance must not be negative, got %v", config.ReconcileTolerance)
	}

	if config.AssignmentPageSize < 0 {
		return fmt.Errorf("assignment_page_size must not be negative, got %d", config.AssignmentPageSize)
	}

	switch strings.ToLower(config.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", config.LogLevel)
	}

	return nil
}

// Rate returns the transcription rate as an exact decimal.
func (c *MainConfig) Rate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(strings.TrimSpace(c.TranscriptionRate))
	if err != nil {
		return decimal.Zero, fmt.Errorf("transcription_rate %q is not a number: %w", c.TranscriptionRate, err)
	}
	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("transcription_rate must be positive, got %s", rate)
	}
	return rate, nil
}

// =============================================================================
// SYNONYM TABLE
// =============================================================================

// SynonymRule binds a set of header spellings to one canonical column.
type SynonymRule struct {
	Canonical string   `yaml:"canonical"`
	Synonyms  []string `yaml:"synonyms"`
}

// SynonymsFile is the on-disk shape of a synonym table.
type SynonymsFile struct {
	Synonyms []SynonymRule `yaml:"synonyms"`
}

// LoadSynonyms reads a synonym table. Conflict checking is left to the
// schema package, which knows the canonical columns.
func LoadSynonyms(path string) ([]SynonymRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read synonyms file: %w", err)
	}

	var file SynonymsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse synonyms file: %w", err)
	}

	if len(file.Synonyms) == 0 {
		return nil, fmt.Errorf("synonyms file %s defines no rules", path)
	}

	return file.Synonyms, nil
}
