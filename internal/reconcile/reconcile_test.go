package reconcile

import (
	"testing"

	"github.com/ginjaninja78/client-billing-consolidator/internal/aggregator"
	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_RoundTripAllMapped(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332894", AccountName: "Tire", CallsTotal: 10, MessagesQuantity: 20, AskAIQuantity: 3, TranscriptionMinutes: 50},
		{AccountID: "8053332895", AccountName: "Sylvan", CallsTotal: 5.5, NumbersQuantity: 2},
	}
	snapshot := mapping.DefaultSeeds()

	agg := aggregator.Aggregate(records, snapshot)
	result := Reconcile(records, snapshot, agg.Processed, DefaultTolerance)

	assert.True(t, result.Passed)
	assert.True(t, result.TotalsMatch)
	assert.Empty(t, result.MissingAccounts)
	assert.Empty(t, result.UnmappedAccounts)
	require.Len(t, result.Diffs, len(types.ReconciledMetrics))
	for _, d := range result.Diffs {
		assert.InDelta(t, d.Input, d.Processed, DefaultTolerance, d.Metric.String())
	}

	// Processed totals carry no multiplier.
	assert.Equal(t, 3.0, result.ProcessedTotals.Get(types.MetricAskAI))
	assert.Empty(t, FailedDiffs(result))
}

func TestReconcile_UnmappedAccountFails(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332894", CallsTotal: 10},
		{AccountID: "999", CallsTotal: 5},
	}
	snapshot := mapping.DefaultSeeds()

	agg := aggregator.Aggregate(records, snapshot)
	result := Reconcile(records, snapshot, agg.Processed, DefaultTolerance)

	assert.False(t, result.Passed)
	assert.Equal(t, []string{"999"}, result.MissingAccounts)
	assert.Equal(t, []string{"999"}, result.UnmappedAccounts)

	failed := FailedDiffs(result)
	require.Len(t, failed, 1)
	assert.Equal(t, types.MetricCalls, failed[0].Metric)
	assert.Equal(t, 5.0, failed[0].Delta)
}

func TestReconcile_DuplicateIDsFailTotals(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332896", MessagesQuantity: 4},
		{AccountID: "8053332896", MessagesQuantity: 6},
	}
	snapshot := mapping.DefaultSeeds()

	result := Reconcile(records, snapshot, []string{"8053332896"}, DefaultTolerance)

	assert.Empty(t, result.MissingAccounts)
	assert.False(t, result.TotalsMatch)
	assert.False(t, result.Passed)
	assert.Equal(t, 10.0, result.InputTotals.Get(types.MetricMessages))
	assert.Equal(t, 4.0, result.ProcessedTotals.Get(types.MetricMessages))
}

func TestReconcile_ToleranceAndMinutesIgnored(t *testing.T) {
	records := []types.UsageRecord{{AccountID: "8053332893", CallsTotal: 1.004, MinutesQuantity: 30}}
	snapshot := mapping.DefaultSeeds()

	result := Reconcile(records, snapshot, []string{"8053332893"}, -1)
	assert.True(t, result.Passed)

	for _, d := range result.Diffs {
		assert.NotEqual(t, types.MetricMinutes, d.Metric)
	}
}
