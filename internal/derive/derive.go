// =============================================================================
// Client Billing Consolidator - Metric Deriver
// =============================================================================
//
// This module turns normalised cell text into numeric UsageRecords.
//
// PARSING POLICY:
//   Every quantity goes through ParseNumericOrDefault: "$", thousands
//   separators and whitespace are stripped, anything that still is not a
//   finite number becomes the default (0). A bad cell never fails the file;
//   it produces a ParseWarning instead.
//
// TRANSCRIPTION MINUTES:
//   When the export carries a cost column and the row's cost parses as
//   currency, minutes = cost / rate (rate defaults to 0.02 per minute).
//   Otherwise the transcriptions quantity is used as-is.
//
// =============================================================================

package derive

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/schema"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/shopspring/decimal"
)

// DefaultRate is the per-minute transcription price.
var DefaultRate = decimal.RequireFromString("0.02")

// =============================================================================
// WARNINGS
// =============================================================================

// ParseWarning records a cell that could not be parsed and was defaulted.
type ParseWarning struct {
	// Row is the 1-indexed data row.
	Row     int
	Column  string
	Value   string
	Default string
}

func (w ParseWarning) String() string {
	return fmt.Sprintf("row %d: %s value %q is not a number, using %s", w.Row, w.Column, w.Value, w.Default)
}

// =============================================================================
// PARSING
// =============================================================================

var numberCleaner = strings.NewReplacer("$", "", ",", "", " ", "", "\t", "", "\u00a0", "")

// ParseNumericOrDefault parses a quantity cell.
//
// RETURNS:
//   - The parsed value, or def when the cell is blank or not a finite number.
//   - ok is false only when a non-blank cell had to be defaulted.
func ParseNumericOrDefault(value string, def float64) (v float64, ok bool) {
	cleaned := numberCleaner.Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return def, true
	}

	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def, false
	}
	return f, true
}

// ParseCurrency parses a cost cell such as "$1,234.56". ok is false for a
// blank or malformed value.
func ParseCurrency(value string) (decimal.Decimal, bool) {
	cleaned := numberCleaner.Replace(strings.TrimSpace(value))
	if cleaned == "" {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// TranscriptionMinutes applies the cost / rate rule.
//
// PARAMETERS:
//   - cost: The raw cost cell.
//   - costReported: Whether the export actually had a cost column.
//   - quantity: The already-parsed transcriptions quantity.
//   - rate: Per-minute price; must be positive.
func TranscriptionMinutes(cost string, costReported bool, quantity float64, rate decimal.Decimal) float64 {
	if !costReported || !rate.IsPositive() {
		return quantity
	}

	d, ok := ParseCurrency(cost)
	if !ok {
		return quantity
	}
	return d.Div(rate).InexactFloat64()
}

// =============================================================================
// DERIVER
// =============================================================================

// Deriver builds UsageRecords from normalised rows.
type Deriver struct {
	Rate decimal.Decimal
}

// New creates a Deriver. A non-positive rate falls back to DefaultRate.
func New(rate decimal.Decimal) *Deriver {
	if !rate.IsPositive() {
		rate = DefaultRate
	}
	return &Deriver{Rate: rate}
}

// Derive populates TranscriptionMinutes on a record.
func (d *Deriver) Derive(rec types.UsageRecord) types.UsageRecord {
	rec.TranscriptionMinutes = TranscriptionMinutes(rec.TranscriptionsCost, rec.CostReported, rec.TranscriptionsQuantity, d.Rate)
	return rec
}

// Build converts every normalised row into a derived UsageRecord.
//
// RETURNS:
//   - One record per normalised row, in source order.
//   - Warnings for every non-blank cell that had to be defaulted.
func (d *Deriver) Build(n *schema.Normalized) ([]types.UsageRecord, []ParseWarning) {
	records := make([]types.UsageRecord, 0, len(n.Records))
	var warnings []ParseWarning

	num := func(raw schema.RawRecord, f schema.Field, column string) float64 {
		v, ok := ParseNumericOrDefault(raw.Get(f), 0)
		if !ok {
			warnings = append(warnings, ParseWarning{Row: raw.Row, Column: column, Value: raw.Get(f), Default: "0"})
		}
		return v
	}

	for _, raw := range n.Records {
		rec := types.UsageRecord{
			AccountID:              raw.Get(schema.FieldAccountNumber),
			AccountName:            raw.Get(schema.FieldAccountName),
			CallsTotal:             num(raw, schema.FieldCalls, schema.ColCallsTotal),
			MinutesQuantity:        num(raw, schema.FieldMinutes, schema.ColMinutesQuantity),
			MessagesQuantity:       num(raw, schema.FieldMessages, n.MessagesSource),
			TranscriptionsQuantity: num(raw, schema.FieldTranscriptionsQuantity, schema.ColTranscriptionsQuantity),
			TranscriptionsCost:     raw.Get(schema.FieldTranscriptionsCost),
			CostReported:           n.CostReported,
			AskAIQuantity:          num(raw, schema.FieldAskAI, schema.ColAskAIQuantity),
			NumbersQuantity:        num(raw, schema.FieldNumbers, schema.ColNumbersQuantity),
			SourceRow:              raw.Row,
		}

		if n.CostReported && strings.TrimSpace(rec.TranscriptionsCost) != "" {
			if _, ok := ParseCurrency(rec.TranscriptionsCost); !ok {
				warnings = append(warnings, ParseWarning{
					Row:     raw.Row,
					Column:  schema.ColTranscriptionsCost,
					Value:   rec.TranscriptionsCost,
					Default: "transcriptions quantity",
				})
			}
		}

		records = append(records, d.Derive(rec))
	}

	return records, warnings
}
