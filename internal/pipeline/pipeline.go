// =============================================================================
// Client Billing Consolidator - Processing Pipeline
// =============================================================================
//
// This module orchestrates the processing of a single usage export, from
// ingestion to the written workbook.
//
// PROCESSING PIPELINE:
//   1. Load the export (.csv or .xlsx) into a raw table
//   2. Normalise column headers and fill missing columns
//   3. Build usage records and derive transcription minutes
//   4. Classify accounts; any unmapped account stops the run here
//   5. Aggregate mapped accounts by billing group
//   6. Reconcile input totals against processed totals
//   7. Assemble the report rows
//   8. Write the workbook
//   9. Archive the export
//
// Files are processed one at a time. The account mapping is shared state
// and the classifier assumes a single writer.
//
// =============================================================================

package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/client-billing-consolidator/internal/aggregator"
	"github.com/ginjaninja78/client-billing-consolidator/internal/classifier"
	"github.com/ginjaninja78/client-billing-consolidator/internal/config"
	"github.com/ginjaninja78/client-billing-consolidator/internal/csvparser"
	"github.com/ginjaninja78/client-billing-consolidator/internal/derive"
	"github.com/ginjaninja78/client-billing-consolidator/internal/reconcile"
	"github.com/ginjaninja78/client-billing-consolidator/internal/report"
	"github.com/ginjaninja78/client-billing-consolidator/internal/schema"
	"github.com/ginjaninja78/client-billing-consolidator/internal/telemetry"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/ginjaninja78/client-billing-consolidator/internal/xlsxparser"
	"github.com/ginjaninja78/client-billing-consolidator/internal/xlsxwriter"
	"github.com/ginjaninja78/client-billing-consolidator/pkg/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Status describes how far a file got through the pipeline.
type Status string

const (
	// StatusWritten means the workbook was written.
	StatusWritten Status = telemetry.StatusWritten

	// StatusGated means unmapped accounts must be assigned first.
	StatusGated Status = telemetry.StatusGated

	// StatusBlocked means reconciliation failed and the configuration
	// withholds reports in that case.
	StatusBlocked Status = telemetry.StatusBlocked

	// StatusDryRun means everything ran except writing and archiving.
	StatusDryRun Status = telemetry.StatusDryRun

	// StatusFailed means the file could not be processed.
	StatusFailed Status = telemetry.StatusFailed
)

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// RunID identifies this processing attempt in logs and the workbook.
	RunID string

	// Status is the outcome.
	Status Status

	// OutputFile is the path to the generated workbook, if any.
	OutputFile string

	// ArchivePath is where the export was moved, if it was archived.
	ArchivePath string

	// Error is set when Status is StatusFailed.
	Error error

	// Pending is the first page of accounts awaiting assignment.
	Pending classifier.Page

	// Aggregation and Reconciliation are filled once classification passed.
	Aggregation    aggregator.Result
	Reconciliation types.ReconciliationResult

	// Rows are the assembled report rows.
	Rows []types.ReportRow

	// Warnings are the cells that were defaulted while building records.
	Warnings []derive.ParseWarning

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// Success reports whether the file produced (or would have produced) a
// report.
func (r Result) Success() bool {
	return r.Status == StatusWritten || r.Status == StatusDryRun
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// InputRows is the number of data rows in the export.
	InputRows int

	// Records is the number of usage records after normalisation.
	Records int

	// SkippedRows counts rows dropped for a blank account id.
	SkippedRows int

	// Unmapped is the number of distinct accounts without a group.
	Unmapped int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// Prepared is an export that has been loaded, normalised and derived.
type Prepared struct {
	Table      *types.Table
	Normalized *schema.Normalized
	Records    []types.UsageRecord
	Warnings   []derive.ParseWarning
}

// =============================================================================
// PROCESSOR STRUCTURE
// =============================================================================

// Processor runs the pipeline for one file at a time.
type Processor struct {
	cfg        *config.MainConfig
	synonyms   *schema.SynonymTable
	deriver    *derive.Deriver
	classifier *classifier.Classifier
	aggregator *aggregator.Aggregator
	files      *utils.FileManager
	metrics    *telemetry.Metrics
	logger     *zap.SugaredLogger

	// OutputDir overrides cfg.OutputDir when set.
	OutputDir string

	// DryRun skips writing the workbook and archiving the export.
	DryRun bool

	// Now is the clock used for the report period and file names.
	Now func() time.Time
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a Processor.
//
// PARAMETERS:
//   - cfg: The main configuration. Its transcription rate and synonym file
//     are read here, so errors in either surface before any file is touched.
//   - cls: The account classifier holding the session mapping.
//   - metrics: Run metrics; nil creates a private set.
//   - logger: nil means no logging.
//
// RETURNS:
//   - The Processor, or an error if the rate or synonym table is invalid.
func New(cfg *config.MainConfig, cls *classifier.Classifier, metrics *telemetry.Metrics, logger *zap.SugaredLogger) (*Processor, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if metrics == nil {
		metrics = telemetry.New()
	}

	rate, err := cfg.Rate()
	if err != nil {
		return nil, err
	}

	synonyms := schema.DefaultSynonymTable()
	if cfg.SynonymsFile != "" {
		rules, err := config.LoadSynonyms(cfg.SynonymsFile)
		if err != nil {
			return nil, err
		}
		synonyms, err = schema.NewSynonymTable(rules)
		if err != nil {
			return nil, fmt.Errorf("invalid synonym table %s: %w", cfg.SynonymsFile, err)
		}
	}

	return &Processor{
		cfg:        cfg,
		synonyms:   synonyms,
		deriver:    derive.New(rate),
		classifier: cls,
		aggregator: aggregator.New(nil),
		files:      utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir),
		metrics:    metrics,
		logger:     logger,
		Now:        time.Now,
	}, nil
}

// Metrics returns the collectors the processor reports to.
func (p *Processor) Metrics() *telemetry.Metrics {
	return p.metrics
}

// Classifier returns the classifier holding the session mapping.
func (p *Processor) Classifier() *classifier.Classifier {
	return p.classifier
}

func (p *Processor) outputDir() string {
	if p.OutputDir != "" {
		return p.OutputDir
	}
	return p.cfg.OutputDir
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Process executes the pipeline for the file at path.
//
// RETURNS:
//   - A Result describing the outcome. Failures are reported through
//     Result.Error rather than a second return value so that a batch can
//     keep going.
func (p *Processor) Process(path string) (result Result) {
	startTime := time.Now()
	result = Result{
		FilePath: path,
		RunID:    uuid.New().String(),
	}
	log := p.logger.With("file", filepath.Base(path), "run_id", result.RunID)

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
		p.metrics.ObserveFile(string(result.Status), result.Stats.ProcessingTime)
	}()

	fail := func(err error) Result {
		result.Status = StatusFailed
		result.Error = err
		log.Errorw("processing failed", "error", err)
		return result
	}

	// =========================================================================
	// STEPS 1-3: LOAD, NORMALISE, DERIVE
	// =========================================================================

	log.Infow("processing file")

	prepared, err := p.Prepare(path)
	if err != nil {
		return fail(err)
	}

	records := prepared.Records
	result.Warnings = prepared.Warnings
	result.Stats.InputRows = len(prepared.Table.Rows)
	result.Stats.Records = len(records)
	result.Stats.SkippedRows = len(prepared.Normalized.SkippedRows)

	p.metrics.RecordsTotal.Add(float64(len(records)))
	p.metrics.ParseWarningsTotal.Add(float64(len(prepared.Warnings)))
	for _, w := range prepared.Warnings {
		log.Warnw("value defaulted", "row", w.Row, "column", w.Column, "value", w.Value, "default", w.Default)
	}

	// =========================================================================
	// STEP 4: CLASSIFY
	// =========================================================================
	// Every account must belong to a billing group before a report is
	// produced. Unmapped accounts are returned as the first assignment page.

	snapshot := p.classifier.Mapping()
	classification := classifier.Classify(records, snapshot)
	result.Stats.Unmapped = len(classification.Unmapped)
	p.metrics.UnmappedAccounts.Set(float64(len(classification.Unmapped)))

	if len(classification.Unmapped) > 0 {
		result.Status = StatusGated
		result.Pending = classifier.Pending(records, snapshot, p.cfg.AssignmentPageSize)
		log.Warnw("accounts need a billing group", "unmapped", len(classification.Unmapped))
		return result
	}

	// =========================================================================
	// STEPS 5-6: AGGREGATE AND RECONCILE
	// =========================================================================

	result.Aggregation = p.aggregator.Aggregate(records, snapshot)
	p.metrics.ObserveGroups(result.Aggregation.Groups)

	result.Reconciliation = reconcile.Reconcile(records, snapshot, result.Aggregation.Processed, p.cfg.ReconcileTolerance)
	p.metrics.ObserveReconciliation(result.Reconciliation)

	if !result.Reconciliation.Passed {
		for _, d := range reconcile.FailedDiffs(result.Reconciliation) {
			log.Warnw("reconciliation mismatch",
				"metric", d.Metric.String(), "input", d.Input, "processed", d.Processed, "delta", d.Delta)
		}
		if len(result.Reconciliation.MissingAccounts) > 0 {
			log.Warnw("accounts missing from report", "accounts", result.Reconciliation.MissingAccounts)
		}
		if p.cfg.BlockOnReconciliationFailure {
			result.Status = StatusBlocked
			return result
		}
	}

	// =========================================================================
	// STEP 7: ASSEMBLE
	// =========================================================================

	result.Rows = report.FromAggregation(result.Aggregation)

	if p.DryRun {
		result.Status = StatusDryRun
		log.Infow("dry run, workbook not written", "rows", len(result.Rows))
		return result
	}

	// =========================================================================
	// STEP 8: WRITE OUTPUT FILE
	// =========================================================================

	outputPath, err := p.writeOutput(path, result.RunID, result.Rows)
	if err != nil {
		return fail(fmt.Errorf("failed to write output: %w", err))
	}
	result.OutputFile = outputPath
	result.Status = StatusWritten
	log.Infow("wrote report", "output", outputPath, "accounts", len(result.Aggregation.Processed))

	// =========================================================================
	// STEP 9: ARCHIVE FILES
	// =========================================================================

	if p.cfg.ArchiveInputs {
		archived, err := p.files.ArchiveInputFile(path)
		if err != nil {
			// Log the error but don't fail the processing.
			log.Warnw("failed to archive input", "error", err)
		} else {
			result.ArchivePath = archived
		}
	}

	return result
}

// Prepare loads, normalises and derives the export at path.
func (p *Processor) Prepare(path string) (*Prepared, error) {
	table, err := Load(path, p.cfg.CSVSettings)
	if err != nil {
		return nil, err
	}

	normalized, err := schema.Normalize(table, p.synonyms)
	if err != nil {
		return nil, err
	}
	if len(normalized.Renamed) > 0 {
		p.logger.Debugw("renamed columns", "file", filepath.Base(path), "renamed", normalized.Renamed)
	}
	if len(normalized.Added) > 0 {
		p.logger.Debugw("added missing columns", "file", filepath.Base(path), "columns", normalized.Added)
	}

	records, warnings := p.deriver.Build(normalized)

	return &Prepared{
		Table:      table,
		Normalized: normalized,
		Records:    records,
		Warnings:   warnings,
	}, nil
}

// Reconcile runs the integrity check for the export at path against the
// current mapping, without writing anything.
func (p *Processor) Reconcile(path string) (types.ReconciliationResult, error) {
	prepared, err := p.Prepare(path)
	if err != nil {
		return types.ReconciliationResult{}, err
	}

	snapshot := p.classifier.Mapping()
	agg := p.aggregator.Aggregate(prepared.Records, snapshot)
	return reconcile.Reconcile(prepared.Records, snapshot, agg.Processed, p.cfg.ReconcileTolerance), nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// ErrUnsupportedInput is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedInput = errors.New("unsupported input file type")

// Load reads an export into a raw table, choosing the parser by extension.
func Load(path string, settings config.CSVSettings) (*types.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvparser.Parse(path, settings)
	case ".xlsx":
		return xlsxparser.Parse(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, filepath.Base(path))
	}
}

// writeOutput names and writes the workbook for one export.
func (p *Processor) writeOutput(inputPath, runID string, rows []types.ReportRow) (string, error) {
	now := p.Now()
	original := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	fileName := utils.GenerateOutputFileName(p.cfg.OutputNameFormat, now, map[string]string{
		"uuid":     runID,
		"original": original,
	})
	outputPath := filepath.Join(p.outputDir(), fileName)

	err := xlsxwriter.WriteFile(outputPath, rows, xlsxwriter.WriteOptions{
		Title:     p.cfg.ReportTitle,
		SheetName: p.cfg.SheetName,
		Period:    now,
		RunID:     runID,
	})
	if err != nil {
		return "", err
	}
	return outputPath, nil
}
