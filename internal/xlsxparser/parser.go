// =============================================================================
// Client Billing Consolidator - XLSX Usage Export Parser
// =============================================================================
//
// This module reads the monthly usage export when it arrives as a workbook
// instead of delimited text. The first worksheet is read; row 1 is the header
// row and everything below it is data.
//
// Cells are read with their raw values so that a numeric account id stored as
// a number (8053332894) is not reformatted by the cell's number format. Ids
// that still come through as "8053332894.0" are canonicalised later by the
// schema package.
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads an XLSX usage export and returns the raw table.
//
// PARAMETERS:
//   - filePath: The path to the workbook.
//
// RETURNS:
//   - The parsed table from the first worksheet.
//   - An error if the file cannot be opened or has no header row.
func Parse(filePath string) (*types.Table, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	table, err := parseFile(f)
	if err != nil {
		return nil, err
	}

	table.SourceFile = filePath
	return table, nil
}

// ParseReader reads a workbook from any reader (an upload body, for example).
func ParseReader(r io.Reader) (*types.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return parseFile(f)
}

// parseFile extracts the table from the first sheet of an open workbook.
func parseFile(f *excelize.File) (*types.Table, error) {
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %q: %w", sheetName, err)
	}

	// Leading blank rows are common in hand-edited exports.
	start := 0
	for start < len(rows) && isRowEmpty(rows[start]) {
		start++
	}
	if start == len(rows) {
		return nil, fmt.Errorf("sheet %q is empty", sheetName)
	}

	headers := cleanHeaders(rows[start])
	table := &types.Table{
		Headers: headers,
		Rows:    make([][]string, 0, len(rows)-start-1),
	}

	for _, row := range rows[start+1:] {
		if isRowEmpty(row) {
			continue
		}

		// GetRows trims trailing empty cells, so rows are usually short.
		out := make([]string, len(headers))
		for i := 0; i < len(headers) && i < len(row); i++ {
			out[i] = strings.TrimSpace(row[i])
		}
		table.Rows = append(table.Rows, out)
	}

	return table, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// cleanHeaders trims header values and names blank ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
}

// isRowEmpty checks if a row contains only empty cells.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
