package xlsxwriter

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ginjaninja78/client-billing-consolidator/internal/aggregator"
	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/report"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRows() []types.ReportRow {
	records := []types.UsageRecord{
		{AccountID: "8053332894", AccountName: "Big Brand Tire", CallsTotal: 10, MessagesQuantity: 20, AskAIQuantity: 3},
		{AccountID: "8053332893", AccountName: "BTTW Main", CallsTotal: 4},
	}
	return report.FromAggregation(aggregator.Aggregate(records, mapping.DefaultSeeds()))
}

func TestWriteFile_Layout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	period := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, WriteFile(path, sampleRows(), WriteOptions{Period: period, RunID: "run-1"}))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheet := "Billing Report"
	assert.Equal(t, []string{sheet}, f.GetSheetList())

	title, err := f.GetCellValue(sheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Client Billing Report - September 2026", title)

	merges, err := f.GetMergeCells(sheet)
	require.NoError(t, err)
	require.Len(t, merges, 1)
	assert.Equal(t, "A1", merges[0].GetStartAxis())
	assert.Equal(t, "H1", merges[0].GetEndAxis())

	rows, err := f.GetRows(sheet)
	require.NoError(t, err)

	assert.Equal(t, []string{"GLOBAL TOTALS", "2 accounts", "14", "0", "20", "0", "21", "0"}, rows[1])
	assert.Equal(t, report.ColumnHeaders, rows[2])
	assert.Equal(t, []string{"BTTW GROUP", "1 accounts", "4", "0", "0", "0", "0", "0"}, rows[3])
	assert.Equal(t, []string{"8053332893", "BTTW Main", "4"}, rows[4])
	assert.Empty(t, rows[5])
	assert.Equal(t, []string{"BIG BRAND TIRE GROUP", "1 accounts", "10", "0", "20", "0", "21", "0"}, rows[6])
	assert.Equal(t, []string{"8053332894", "Big Brand Tire", "10", "", "20", "", "3"}, rows[7])

	panes, err := f.GetPanes(sheet)
	require.NoError(t, err)
	assert.True(t, panes.Freeze)
	assert.Equal(t, 3, panes.YSplit)
	assert.Equal(t, "A4", panes.TopLeftCell)

	width, err := f.GetColWidth(sheet, "B")
	require.NoError(t, err)
	assert.Equal(t, 25.0, width)
	width, err = f.GetColWidth(sheet, "H")
	require.NoError(t, err)
	assert.Equal(t, 15.0, width)

	props, err := f.GetDocProps()
	require.NoError(t, err)
	assert.Equal(t, "run-1", props.Identifier)
}

func TestWrite_Styles(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleRows(), WriteOptions{SheetName: "Report"}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	headerStyleID, err := f.GetCellStyle("Report", "C3")
	require.NoError(t, err)
	headerStyle, err := f.GetStyle(headerStyleID)
	require.NoError(t, err)
	assert.True(t, headerStyle.Font.Bold)
	require.NotEmpty(t, headerStyle.Fill.Color)
	assert.Contains(t, strings.ToUpper(headerStyle.Fill.Color[0]), "4472C4")

	groupStyleID, err := f.GetCellStyle("Report", "A4")
	require.NoError(t, err)
	groupStyle, err := f.GetStyle(groupStyleID)
	require.NoError(t, err)
	assert.True(t, groupStyle.Font.Bold)
	require.NotEmpty(t, groupStyle.Fill.Color)
	assert.Contains(t, strings.ToUpper(groupStyle.Fill.Color[0]), "E6E6FA")
}

func TestReportTitle(t *testing.T) {
	assert.Equal(t, "Usage - January 2027", ReportTitle("Usage", time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC)))
}
