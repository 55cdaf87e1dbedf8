package aggregator

import (
	"testing"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_BigBrandTireMultiplier(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332894", AccountName: "Big Brand Tire", CallsTotal: 10, MessagesQuantity: 20, AskAIQuantity: 3},
	}

	result := Aggregate(records, mapping.DefaultSeeds())
	require.Len(t, result.Groups, 1)

	group := result.Groups[0]
	assert.Equal(t, types.GroupBigBrandTire, group.Group)
	assert.Equal(t, 21.0, group.Totals.Get(types.MetricAskAI))
	assert.Equal(t, 10.0, group.Totals.Get(types.MetricCalls))
	assert.Equal(t, 3.0, group.Accounts[0].AskAIQuantity)

	assert.Equal(t, 21.0, result.Global.Get(types.MetricAskAI))
	assert.Equal(t, []string{"8053332894"}, result.Processed)
}

func TestAggregate_ExcludesUnmapped(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332894", AskAIQuantity: 3, CallsTotal: 10},
		{AccountID: "999", CallsTotal: 5, AskAIQuantity: 1},
	}

	result := Aggregate(records, mapping.DefaultSeeds())
	require.Len(t, result.Groups, 1)
	assert.Equal(t, []string{"8053332894"}, result.Processed)

	// Global totals cover every row.
	assert.Equal(t, 15.0, result.Global.Get(types.MetricCalls))
	assert.Equal(t, 3.0+1.0+6*3.0, result.Global.Get(types.MetricAskAI))
	assert.Equal(t, 2, result.InputRows)
}

func TestAggregate_ConservationAndGroupOrder(t *testing.T) {
	snapshot := mapping.Snapshot{
		"i1": types.GroupIndependents,
		"b1": types.GroupBTTW,
		"t1": types.GroupBigBrandTire,
		"t2": types.GroupBigBrandTire,
		"s1": types.GroupSylvan,
	}
	records := []types.UsageRecord{
		{AccountID: "i1", AccountName: "Indie", CallsTotal: 1, MinutesQuantity: 2, MessagesQuantity: 3, TranscriptionMinutes: 4, AskAIQuantity: 5, NumbersQuantity: 6},
		{AccountID: "t1", AccountName: "Tire One", CallsTotal: 10, AskAIQuantity: 2, NumbersQuantity: 1},
		{AccountID: "b1", AccountName: "Bttw", CallsTotal: 7, MinutesQuantity: 1.5, TranscriptionMinutes: 50},
		{AccountID: "t2", AccountName: "Tire Two", AskAIQuantity: 4},
		{AccountID: "s1", AccountName: "Sylvan", MessagesQuantity: 9},
	}

	result := Aggregate(records, snapshot)

	var order []types.BillingGroup
	var sum types.Totals
	var bbtRawAskAI float64
	for _, g := range result.Groups {
		order = append(order, g.Group)
		sum.Add(g.Totals)
		if g.Group == types.GroupBigBrandTire {
			for _, a := range g.Accounts {
				bbtRawAskAI += a.AskAIQuantity
			}
		}
	}

	assert.Equal(t, []types.BillingGroup{
		types.GroupBTTW, types.GroupBigBrandTire, types.GroupSylvan, types.GroupIndependents,
	}, order)

	for _, m := range types.AllMetrics {
		if m == types.MetricAskAI {
			continue
		}
		assert.InDelta(t, result.Global.Get(m), sum.Get(m), 1e-9, m.String())
	}

	// BBT group shows 7x; global adds 6x the raw BBT figure to the raw sum.
	assert.Equal(t, 42.0, result.Groups[1].Totals.Get(types.MetricAskAI))
	var rawAskAI float64
	for _, r := range records {
		rawAskAI += r.AskAIQuantity
	}
	assert.Equal(t, rawAskAI+6*bbtRawAskAI, result.Global.Get(types.MetricAskAI))
	assert.Equal(t, sum.Get(types.MetricAskAI), result.Global.Get(types.MetricAskAI))
}

func TestAggregate_StableSortByUpperName(t *testing.T) {
	snapshot := mapping.Snapshot{"1": types.GroupSylvan, "2": types.GroupSylvan, "3": types.GroupSylvan, "4": types.GroupSylvan}
	records := []types.UsageRecord{
		{AccountID: "1", AccountName: "zeta"},
		{AccountID: "2", AccountName: "Alpha"},
		{AccountID: "3", AccountName: "ALPHA"},
		{AccountID: "4", AccountName: "beta"},
	}

	result := Aggregate(records, snapshot)
	require.Len(t, result.Groups, 1)

	var ids []string
	for _, a := range result.Groups[0].Accounts {
		ids = append(ids, a.AccountID)
	}
	assert.Equal(t, []string{"2", "3", "4", "1"}, ids)
	assert.Equal(t, ids, result.Processed)
}

func TestAggregate_FirstRowWinsForDuplicateIDs(t *testing.T) {
	snapshot := mapping.Snapshot{"1": types.GroupTruckfitters}
	records := []types.UsageRecord{
		{AccountID: "1", AccountName: "first", CallsTotal: 4},
		{AccountID: "1", AccountName: "second", CallsTotal: 100},
	}

	result := Aggregate(records, snapshot)
	require.Len(t, result.Groups[0].Accounts, 1)
	assert.Equal(t, "first", result.Groups[0].Accounts[0].AccountName)
	assert.Equal(t, 4.0, result.Groups[0].Totals.Get(types.MetricCalls))
	assert.Equal(t, 104.0, result.Global.Get(types.MetricCalls))
}

func TestAggregate_CustomRules(t *testing.T) {
	agg := New([]RateRule{{Group: types.GroupSylvan, Metric: types.MetricNumbers, Multiplier: 2}})
	records := []types.UsageRecord{
		{AccountID: "8053332894", AskAIQuantity: 3},
		{AccountID: "8053332895", NumbersQuantity: 5},
	}

	result := agg.Aggregate(records, mapping.DefaultSeeds())
	require.Len(t, result.Groups, 2)
	assert.Equal(t, 3.0, result.Groups[0].Totals.Get(types.MetricAskAI))
	assert.Equal(t, 10.0, result.Groups[1].Totals.Get(types.MetricNumbers))
	assert.Equal(t, 10.0, result.Global.Get(types.MetricNumbers))
}
