// =============================================================================
// Client Billing Consolidator - Aggregator
// =============================================================================
//
// This module rolls mapped accounts up into their billing groups.
//
// RULES:
//   - Only accounts that are both in the export and in the mapping are
//     aggregated. Unmapped accounts are left out entirely.
//   - An account id that appears on several rows is represented by its first
//     row.
//   - Groups come out in the fixed order (BTTW first) and empty groups are
//     omitted.
//   - Accounts inside a group are sorted by upper-cased name. The sort is
//     stable, so equal names keep their export order.
//   - Rate rules multiply a metric at group and global level only. Account
//     rows keep raw values. The one rule in use: BIG BRAND TIRE GROUP AskAI
//     x7.
//   - Global totals are summed over every export row, then each rate rule
//     adds (multiplier - 1) x the raw group figure.
//
// =============================================================================

package aggregator

import (
	"sort"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/samber/lo"
)

// =============================================================================
// RATE RULES
// =============================================================================

// RateRule multiplies one metric of one group's totals.
type RateRule struct {
	Group      types.BillingGroup
	Metric     types.Metric
	Multiplier float64
}

// DefaultRateRules returns the rules in force.
func DefaultRateRules() []RateRule {
	return []RateRule{
		{Group: types.GroupBigBrandTire, Metric: types.MetricAskAI, Multiplier: 7},
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the output of Aggregate.
type Result struct {
	// Groups holds the non-empty groups in processing order, with rate rules
	// applied to their totals.
	Groups []types.AggregatedGroup

	// Global is the export-wide total with rate rule adjustments.
	Global types.Totals

	// Processed lists the aggregated account ids in report order.
	Processed []string

	// InputRows is the number of export rows the global totals cover.
	InputRows int
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregator applies a fixed set of rate rules.
type Aggregator struct {
	rules []RateRule
}

// New creates an Aggregator. A nil rules slice means DefaultRateRules.
func New(rules []RateRule) *Aggregator {
	if rules == nil {
		rules = DefaultRateRules()
	}
	return &Aggregator{rules: rules}
}

// Aggregate groups records by the mapping.
func (a *Aggregator) Aggregate(records []types.UsageRecord, snapshot mapping.Snapshot) Result {
	result := Result{InputRows: len(records)}

	for _, r := range records {
		result.Global.AddRecord(r)
	}

	// First row per account id.
	accounts := lo.UniqBy(records, func(r types.UsageRecord) string {
		return r.AccountID
	})

	byGroup := make(map[types.BillingGroup][]types.UsageRecord)
	for _, r := range accounts {
		if group, ok := snapshot[r.AccountID]; ok && group.Valid() {
			byGroup[group] = append(byGroup[group], r)
		}
	}

	for _, group := range types.AllGroups() {
		members := byGroup[group]
		if len(members) == 0 {
			continue
		}

		sorted := make([]types.UsageRecord, len(members))
		copy(sorted, members)
		sort.SliceStable(sorted, func(i, j int) bool {
			return strings.ToUpper(sorted[i].AccountName) < strings.ToUpper(sorted[j].AccountName)
		})

		var raw types.Totals
		for _, r := range sorted {
			raw.AddRecord(r)
			result.Processed = append(result.Processed, r.AccountID)
		}

		totals := raw
		for _, rule := range a.rules {
			if rule.Group != group {
				continue
			}
			totals[rule.Metric] *= rule.Multiplier
			result.Global[rule.Metric] += (rule.Multiplier - 1) * raw[rule.Metric]
		}

		result.Groups = append(result.Groups, types.AggregatedGroup{
			Group:    group,
			Accounts: sorted,
			Totals:   totals,
		})
	}

	return result
}

// Aggregate runs the default rules.
func Aggregate(records []types.UsageRecord, snapshot mapping.Snapshot) Result {
	return New(nil).Aggregate(records, snapshot)
}
