// =============================================================================
// Client Billing Consolidator - Reconciliation Checker
// =============================================================================
//
// The reconciliation check proves nothing was dropped between the export and
// the report. It recomputes totals straight from the export and compares
// them with the totals of the accounts that made it into the report, before
// any rate rule is applied.
//
// The verdict is advisory. Whether a failed check withholds the workbook is
// decided by the caller (see block_on_reconciliation_failure).
//
// =============================================================================

package reconcile

import (
	"math"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/samber/lo"
)

// DefaultTolerance is the absolute per-metric tolerance.
const DefaultTolerance = 0.01

// Reconcile compares export totals with processed-account totals.
//
// PARAMETERS:
//   - records: Every derived record of the export.
//   - snapshot: The mapping used for the report.
//   - processed: The account ids the aggregator included.
//   - tolerance: Absolute tolerance per metric; negative means DefaultTolerance.
//
// RETURNS:
//   - The itemised verdict. Passed is true only when every metric is within
//     tolerance and no account is missing or unmapped.
func Reconcile(records []types.UsageRecord, snapshot mapping.Snapshot, processed []string, tolerance float64) types.ReconciliationResult {
	if tolerance < 0 {
		tolerance = DefaultTolerance
	}

	result := types.ReconciliationResult{
		InputRecords:   len(records),
		ProcessedCount: len(processed),
	}

	for _, r := range records {
		result.InputTotals.AddRecord(r)
	}

	// One row per processed id: the first one in the export.
	first := make(map[string]types.UsageRecord, len(records))
	for _, r := range records {
		if _, ok := first[r.AccountID]; !ok {
			first[r.AccountID] = r
		}
	}
	for _, id := range lo.Uniq(processed) {
		if r, ok := first[id]; ok {
			result.ProcessedTotals.AddRecord(r)
		}
	}

	ids := lo.Uniq(lo.Map(records, func(r types.UsageRecord, _ int) string {
		return r.AccountID
	}))
	processedSet := lo.SliceToMap(processed, func(id string) (string, struct{}) {
		return id, struct{}{}
	})

	result.MissingAccounts = lo.Filter(ids, func(id string, _ int) bool {
		_, ok := processedSet[id]
		return !ok
	})
	result.UnmappedAccounts = lo.Filter(ids, func(id string, _ int) bool {
		_, ok := snapshot[id]
		return !ok
	})

	result.TotalsMatch = true
	for _, m := range types.ReconciledMetrics {
		in, out := result.InputTotals.Get(m), result.ProcessedTotals.Get(m)
		delta := in - out
		within := math.Abs(delta) <= tolerance
		if !within {
			result.TotalsMatch = false
		}
		result.Diffs = append(result.Diffs, types.MetricDiff{
			Metric:    m,
			Input:     in,
			Processed: out,
			Delta:     delta,
			Within:    within,
		})
	}

	result.Passed = result.TotalsMatch &&
		len(result.MissingAccounts) == 0 &&
		len(result.UnmappedAccounts) == 0

	return result
}

// FailedDiffs returns the metrics outside tolerance.
func FailedDiffs(result types.ReconciliationResult) []types.MetricDiff {
	return lo.Filter(result.Diffs, func(d types.MetricDiff, _ int) bool {
		return !d.Within
	})
}
