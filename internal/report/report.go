// =============================================================================
// Client Billing Consolidator - Report Assembler
// =============================================================================
//
// This module turns aggregation output into the ordered row sequence the
// spreadsheet writer renders. It knows nothing about cells or styles.
//
// ROW ORDER:
//   GLOBAL TOTALS
//   column headers
//   for each non-empty group, in processing order:
//     group subtotal
//     account rows (already sorted by the aggregator)
//     blank separator
//
// VALUES:
//   Every value is truncated to an integer. Account rows leave a value blank
//   when it is not positive; subtotal and global rows always show a number,
//   0 included.
//
// =============================================================================

package report

import (
	"fmt"
	"math"

	"github.com/ginjaninja78/client-billing-consolidator/internal/aggregator"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
)

// GlobalLabel is the first cell of the global totals row.
const GlobalLabel = "GLOBAL TOTALS"

// ColumnHeaders are the report columns, left to right.
var ColumnHeaders = []string{
	"Account",
	"Account Name",
	"Calls Total",
	"Minutes quantity",
	"Messages quantity",
	"Transcription Minutes",
	"AskAI quantity",
	"Numbers quantity",
}

// Assemble builds the report rows.
//
// PARAMETERS:
//   - global: Export-wide totals, rate rules applied.
//   - inputRows: Number of export rows, shown as "<n> accounts" on the
//     global row.
//   - groups: Aggregated groups in processing order.
func Assemble(global types.Totals, inputRows int, groups []types.AggregatedGroup) []types.ReportRow {
	rows := []types.ReportRow{
		{
			Kind:   types.RowGlobalTotals,
			Label:  GlobalLabel,
			Name:   accountsLabel(inputRows),
			Values: totalCells(global),
		},
		{
			Kind:    types.RowColumnHeader,
			Headers: append([]string(nil), ColumnHeaders...),
		},
	}

	for _, g := range groups {
		if len(g.Accounts) == 0 {
			continue
		}

		rows = append(rows, types.ReportRow{
			Kind:   types.RowGroupSubtotal,
			Label:  string(g.Group),
			Name:   accountsLabel(len(g.Accounts)),
			Group:  g.Group,
			Values: totalCells(g.Totals),
		})

		for _, a := range g.Accounts {
			rows = append(rows, types.ReportRow{
				Kind:   types.RowAccountDetail,
				Label:  a.AccountID,
				Name:   a.AccountName,
				Group:  g.Group,
				Values: detailCells(a),
			})
		}

		rows = append(rows, types.ReportRow{Kind: types.RowBlankSeparator, Group: g.Group})
	}

	return rows
}

// FromAggregation assembles the rows for an aggregator result.
func FromAggregation(result aggregator.Result) []types.ReportRow {
	return Assemble(result.Global, result.InputRows, result.Groups)
}

func accountsLabel(n int) string {
	return fmt.Sprintf("%d accounts", n)
}

func totalCells(t types.Totals) []types.Cell {
	truncated := t.Truncated()
	cells := make([]types.Cell, len(types.AllMetrics))
	for i, m := range types.AllMetrics {
		cells[i] = types.Cell{Value: truncated[m]}
	}
	return cells
}

func detailCells(r types.UsageRecord) []types.Cell {
	cells := make([]types.Cell, len(types.AllMetrics))
	for i, m := range types.AllMetrics {
		v := r.Value(m)
		if v <= 0 {
			cells[i] = types.Cell{Blank: true}
			continue
		}
		cells[i] = types.Cell{Value: int64(math.Trunc(v))}
	}
	return cells
}
