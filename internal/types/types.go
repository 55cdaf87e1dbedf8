// =============================================================================
// Client Billing Consolidator - Shared Types
// =============================================================================
//
// This package contains the domain types shared by the pipeline stages so that
// none of them has to import another stage just for a struct definition.
// Types defined here are used by:
//   - schema / derive      (UsageRecord)
//   - classifier / mapping (BillingGroup)
//   - aggregator / reconcile / report / xlsxwriter
//
// =============================================================================

package types

import (
	"math"
	"strings"
)

// =============================================================================
// BILLING GROUPS
// =============================================================================

// BillingGroup is one of the fixed client categories usage is rolled up into.
// The string value is the display name, which is also what the mapping file
// stores.
type BillingGroup string

const (
	GroupBTTW         BillingGroup = "BTTW GROUP"
	GroupBigBrandTire BillingGroup = "BIG BRAND TIRE GROUP"
	GroupSylvan       BillingGroup = "Sylvan Learning"
	GroupTruckfitters BillingGroup = "Truckfitters"
	GroupIndependents BillingGroup = "INDEPENDENTS"
)

// groupOrder is the processing and display order. BTTW comes first.
var groupOrder = []BillingGroup{
	GroupBTTW,
	GroupBigBrandTire,
	GroupSylvan,
	GroupTruckfitters,
	GroupIndependents,
}

// groupIdentifiers are the enum-style names accepted on the command line.
var groupIdentifiers = map[string]BillingGroup{
	"BTTW_GROUP":           GroupBTTW,
	"BIG_BRAND_TIRE_GROUP": GroupBigBrandTire,
	"SYLVAN_LEARNING":      GroupSylvan,
	"TRUCKFITTERS":         GroupTruckfitters,
	"INDEPENDENTS":         GroupIndependents,
}

// AllGroups returns the billing groups in their fixed processing order.
// The returned slice is a copy and may be modified by the caller.
func AllGroups() []BillingGroup {
	out := make([]BillingGroup, len(groupOrder))
	copy(out, groupOrder)
	return out
}

// Valid reports whether g is one of the known billing groups.
func (g BillingGroup) Valid() bool {
	return g.Index() >= 0
}

// Index returns the position of g in the processing order, or -1.
func (g BillingGroup) Index() int {
	for i, known := range groupOrder {
		if known == g {
			return i
		}
	}
	return -1
}

// Identifier returns the enum-style name, e.g. BIG_BRAND_TIRE_GROUP.
func (g BillingGroup) Identifier() string {
	for id, known := range groupIdentifiers {
		if known == g {
			return id
		}
	}
	return ""
}

// ParseBillingGroup resolves a display name ("Sylvan Learning") or an enum
// identifier ("SYLVAN_LEARNING") to a BillingGroup. Matching is
// case-insensitive and ignores surrounding whitespace.
func ParseBillingGroup(value string) (BillingGroup, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", false
	}

	for _, g := range groupOrder {
		if strings.EqualFold(string(g), v) {
			return g, true
		}
	}

	id := strings.ToUpper(strings.ReplaceAll(v, " ", "_"))
	if g, ok := groupIdentifiers[id]; ok {
		return g, true
	}

	return "", false
}

// =============================================================================
// METRICS
// =============================================================================

// Metric identifies one of the six usage quantities carried through the report.
type Metric int

const (
	MetricCalls Metric = iota
	MetricMinutes
	MetricMessages
	MetricTranscriptionMinutes
	MetricAskAI
	MetricNumbers
)

// MetricCount is the number of report metrics.
const MetricCount = 6

// AllMetrics lists the metrics in report column order.
var AllMetrics = []Metric{
	MetricCalls,
	MetricMinutes,
	MetricMessages,
	MetricTranscriptionMinutes,
	MetricAskAI,
	MetricNumbers,
}

// ReconciledMetrics are the metrics compared by the reconciliation check.
// Minutes are not part of the cross-check.
var ReconciledMetrics = []Metric{
	MetricCalls,
	MetricMessages,
	MetricTranscriptionMinutes,
	MetricAskAI,
	MetricNumbers,
}

var metricNames = [MetricCount]string{
	"calls",
	"minutes",
	"messages",
	"transcription_minutes",
	"askai",
	"numbers",
}

// String returns the snake_case name of the metric.
func (m Metric) String() string {
	if m < 0 || int(m) >= MetricCount {
		return "unknown"
	}
	return metricNames[m]
}

// =============================================================================
// USAGE RECORD
// =============================================================================

// UsageRecord is one row of the usage export after normalisation and
// derivation. Quantities have already been through the parse-or-zero policy.
type UsageRecord struct {
	// AccountID is the canonical key used against the mapping.
	AccountID string

	// AccountName defaults to "Unknown".
	AccountName string

	CallsTotal       float64
	MinutesQuantity  float64
	MessagesQuantity float64

	TranscriptionsQuantity float64

	// TranscriptionsCost is the raw currency text, "$0.00" when the export had
	// no cost column.
	TranscriptionsCost string

	// CostReported is true when the export actually carried a cost column.
	// A defaulted "$0.00" must not shadow the quantity fallback.
	CostReported bool

	AskAIQuantity   float64
	NumbersQuantity float64

	// TranscriptionMinutes is populated by the deriver.
	TranscriptionMinutes float64

	// SourceRow is the 1-indexed data row the record came from.
	SourceRow int
}

// Value returns the record's raw (unmultiplied) value for a metric.
func (r UsageRecord) Value(m Metric) float64 {
	switch m {
	case MetricCalls:
		return r.CallsTotal
	case MetricMinutes:
		return r.MinutesQuantity
	case MetricMessages:
		return r.MessagesQuantity
	case MetricTranscriptionMinutes:
		return r.TranscriptionMinutes
	case MetricAskAI:
		return r.AskAIQuantity
	case MetricNumbers:
		return r.NumbersQuantity
	}
	return 0
}

// =============================================================================
// TOTALS
// =============================================================================

// Totals holds the accumulated float sums of the six metrics.
type Totals [MetricCount]float64

// AddRecord adds the raw values of a record.
func (t *Totals) AddRecord(r UsageRecord) {
	for _, m := range AllMetrics {
		t[m] += r.Value(m)
	}
}

// Add adds another Totals elementwise.
func (t *Totals) Add(other Totals) {
	for i := range t {
		t[i] += other[i]
	}
}

// Get returns the accumulated value for a metric.
func (t Totals) Get(m Metric) float64 {
	return t[m]
}

// Truncated converts every sum to an integer by truncation toward zero.
func (t Totals) Truncated() [MetricCount]int64 {
	var out [MetricCount]int64
	for i, v := range t {
		out[i] = int64(math.Trunc(v))
	}
	return out
}

// =============================================================================
// AGGREGATION
// =============================================================================

// AggregatedGroup is one billing group's slice of the report. It is rebuilt on
// every run and never persisted.
type AggregatedGroup struct {
	Group BillingGroup

	// Accounts is sorted by upper-cased account name, stable.
	Accounts []UsageRecord

	// Totals has any group rate rule already applied.
	Totals Totals
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// MetricDiff compares one metric between the whole input and the processed
// accounts.
type MetricDiff struct {
	Metric    Metric
	Input     float64
	Processed float64
	Delta     float64
	Within    bool
}

// ReconciliationResult is the verdict of the integrity cross-check. It is
// advisory: nothing in the core blocks on it.
type ReconciliationResult struct {
	InputRecords    int
	ProcessedCount  int
	InputTotals     Totals
	ProcessedTotals Totals

	// Diffs has one entry per reconciled metric, in ReconciledMetrics order.
	Diffs []MetricDiff

	MissingAccounts  []string
	UnmappedAccounts []string

	TotalsMatch bool
	Passed      bool
}

// =============================================================================
// REPORT ROWS
// =============================================================================

// RowKind tags each row handed to the spreadsheet writer.
type RowKind int

const (
	RowGlobalTotals RowKind = iota
	RowColumnHeader
	RowGroupSubtotal
	RowAccountDetail
	RowBlankSeparator
)

func (k RowKind) String() string {
	switch k {
	case RowGlobalTotals:
		return "global_totals"
	case RowColumnHeader:
		return "column_header"
	case RowGroupSubtotal:
		return "group_subtotal"
	case RowAccountDetail:
		return "account_detail"
	case RowBlankSeparator:
		return "blank_separator"
	}
	return "unknown"
}

// Cell is an integer report value that may render as empty.
type Cell struct {
	Value int64
	Blank bool
}

// ReportRow is one line of the assembled report.
type ReportRow struct {
	Kind RowKind

	// Label is the first column: "GLOBAL TOTALS", the group name, or the
	// account id.
	Label string

	// Name is the second column: "<n> accounts" or the account name.
	Name string

	// Group is set on subtotal and detail rows.
	Group BillingGroup

	// Headers is only set on the column header row.
	Headers []string

	// Values is unset on header and blank rows.
	Values []Cell
}

// =============================================================================
// RAW TABLE
// =============================================================================

// Table is an ingested usage export before normalisation: ordered headers
// (duplicates allowed) and rows of cell text. Both the CSV and the XLSX
// readers produce it.
type Table struct {
	// Headers keeps source order, which decides which duplicate stays
	// unsuffixed.
	Headers []string

	// Rows holds one slice per data row, padded or truncated to len(Headers).
	Rows [][]string

	// SourceFile is the path the table was read from, if any.
	SourceFile string
}

// Column returns the index of the first header equal to name, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}
	return -1
}
