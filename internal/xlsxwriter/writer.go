// =============================================================================
// Client Billing Consolidator - XLSX Report Writer
// =============================================================================
//
// This module renders the assembled report rows into a workbook.
//
// SHEET LAYOUT:
//
//   Row 1 | Client Billing Report - October 2026       (merged A1:H1)
//   Row 2 | GLOBAL TOTALS | 120 accounts | 4512 | ...  (group style)
//   Row 3 | Account | Account Name | Calls Total | ... (header style)
//   Row 4 | BTTW GROUP | 3 accounts | 300 | ...        (group style)
//   Row 5 | 8053332893 | Some Client | 120 | ...
//   ...   | (blank row after each group)
//
//   Rows 1-3 are frozen. Column A is 15 wide, B is 25, C-H are 15.
//
// CUSTOMIZATION:
//   - Colours and widths live in DefaultWriteOptions.
//   - The title prefix and sheet name come from the main configuration.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"io"
	"time"

	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// WRITE OPTIONS
// =============================================================================

// WriteOptions controls how the workbook looks.
type WriteOptions struct {
	// Title prefixes the month in the merged title row.
	// Default: "Client Billing Report"
	Title string

	// SheetName is the worksheet name. Default: "Billing Report"
	SheetName string

	// Period is the billing month shown in the title. Default: now.
	Period time.Time

	// RunID is stored in the workbook properties as its identifier.
	RunID string

	// HeaderFill and HeaderFont are the column header colours (hex, no #).
	HeaderFill string
	HeaderFont string

	// GroupFill is the background of global and subtotal rows.
	GroupFill string

	// AccountWidth, NameWidth and MetricWidth are column widths.
	AccountWidth float64
	NameWidth    float64
	MetricWidth  float64
}

// DefaultWriteOptions returns the standard report styling.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Title:        "Client Billing Report",
		SheetName:    "Billing Report",
		HeaderFill:   "4472C4",
		HeaderFont:   "FFFFFF",
		GroupFill:    "E6E6FA",
		AccountWidth: 15,
		NameWidth:    25,
		MetricWidth:  15,
	}
}

// withDefaults fills any unset option from DefaultWriteOptions.
func (o WriteOptions) withDefaults() WriteOptions {
	d := DefaultWriteOptions()
	if o.Title == "" {
		o.Title = d.Title
	}
	if o.SheetName == "" {
		o.SheetName = d.SheetName
	}
	if o.Period.IsZero() {
		o.Period = time.Now()
	}
	if o.HeaderFill == "" {
		o.HeaderFill = d.HeaderFill
	}
	if o.HeaderFont == "" {
		o.HeaderFont = d.HeaderFont
	}
	if o.GroupFill == "" {
		o.GroupFill = d.GroupFill
	}
	if o.AccountWidth == 0 {
		o.AccountWidth = d.AccountWidth
	}
	if o.NameWidth == 0 {
		o.NameWidth = d.NameWidth
	}
	if o.MetricWidth == 0 {
		o.MetricWidth = d.MetricWidth
	}
	return o
}

// ReportTitle returns the text of the merged title row.
func ReportTitle(prefix string, period time.Time) string {
	return fmt.Sprintf("%s - %s", prefix, period.Format("January 2006"))
}

// =============================================================================
// WRITER FUNCTIONS
// =============================================================================

// lastColumn is the rightmost report column (8 columns, A-H).
const lastColumn = "H"

// titleRows is the number of rows above the report rows.
const titleRows = 1

// frozenRows is title + global totals + column headers.
const frozenRows = 3

// WriteFile renders rows into a workbook at path.
//
// PARAMETERS:
//   - path: Destination file. An existing file is overwritten.
//   - rows: Assembled report rows.
//   - opts: Presentation options; zero fields take defaults.
//
// RETURNS:
//   - An error if the workbook cannot be built or saved.
func WriteFile(path string, rows []types.ReportRow, opts WriteOptions) error {
	f, err := Build(rows, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Write renders rows into a workbook and streams it to w.
func Write(w io.Writer, rows []types.ReportRow, opts WriteOptions) error {
	f, err := Build(rows, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Build renders rows into an in-memory workbook. The caller closes it.
func Build(rows []types.ReportRow, opts WriteOptions) (*excelize.File, error) {
	opts = opts.withDefaults()

	f := excelize.NewFile()
	sheet := opts.SheetName
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := renderSheet(f, sheet, rows, opts); err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetDocProps(&excelize.DocProperties{
		Title:      ReportTitle(opts.Title, opts.Period),
		Creator:    "client-billing-consolidator",
		Identifier: opts.RunID,
		Created:    time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to set document properties: %w", err)
	}

	return f, nil
}

// renderSheet writes the title, rows, styles, widths and panes.
func renderSheet(f *excelize.File, sheet string, rows []types.ReportRow, opts WriteOptions) error {
	styles, err := newStyles(f, opts)
	if err != nil {
		return err
	}

	// Title row.
	if err := f.SetCellValue(sheet, "A1", ReportTitle(opts.Title, opts.Period)); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}
	if err := f.MergeCell(sheet, "A1", lastColumn+"1"); err != nil {
		return fmt.Errorf("failed to merge title: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastColumn+"1", styles.title); err != nil {
		return fmt.Errorf("failed to style title: %w", err)
	}

	for i, row := range rows {
		excelRow := i + titleRows + 1
		if err := writeRow(f, sheet, excelRow, row, styles); err != nil {
			return fmt.Errorf("failed to write row %d: %w", excelRow, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "A", opts.AccountWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", opts.NameWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}
	if err := f.SetColWidth(sheet, "C", lastColumn, opts.MetricWidth); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	topLeft, err := excelize.CoordinatesToCellName(1, frozenRows+1)
	if err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      frozenRows,
		TopLeftCell: topLeft,
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header rows: %w", err)
	}

	return nil
}

// writeRow writes a single report row at excelRow (1-indexed).
func writeRow(f *excelize.File, sheet string, excelRow int, row types.ReportRow, styles sheetStyles) error {
	first, err := excelize.CoordinatesToCellName(1, excelRow)
	if err != nil {
		return err
	}
	last := fmt.Sprintf("%s%d", lastColumn, excelRow)

	switch row.Kind {
	case types.RowBlankSeparator:
		return nil

	case types.RowColumnHeader:
		values := make([]interface{}, len(row.Headers))
		for i, h := range row.Headers {
			values[i] = h
		}
		if err := f.SetSheetRow(sheet, first, &values); err != nil {
			return err
		}
		return f.SetCellStyle(sheet, first, last, styles.header)
	}

	values := make([]interface{}, 0, 2+len(row.Values))
	values = append(values, row.Label, row.Name)
	for _, c := range row.Values {
		if c.Blank {
			values = append(values, nil)
			continue
		}
		values = append(values, c.Value)
	}
	if err := f.SetSheetRow(sheet, first, &values); err != nil {
		return err
	}

	if row.Kind == types.RowGlobalTotals || row.Kind == types.RowGroupSubtotal {
		return f.SetCellStyle(sheet, first, last, styles.group)
	}
	return nil
}

// =============================================================================
// STYLES
// =============================================================================

type sheetStyles struct {
	title  int
	header int
	group  int
}

func newStyles(f *excelize.File, opts WriteOptions) (sheetStyles, error) {
	var s sheetStyles
	var err error

	s.title, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create title style: %w", err)
	}

	s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: opts.HeaderFont},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{opts.HeaderFill}},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create header style: %w", err)
	}

	s.group, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{opts.GroupFill}},
	})
	if err != nil {
		return s, fmt.Errorf("failed to create group style: %w", err)
	}

	return s, nil
}
