// =============================================================================
// Client Billing Consolidator - CSV Parser Module
// =============================================================================
//
// This module reads the monthly usage export when it arrives as delimited
// text. It produces a raw types.Table: the header row exactly as exported
// (duplicates and inconsistent names included) plus the data rows. Column
// name normalisation happens later, in the schema package.
//
// FEATURES:
//   - Configurable delimiter (comma, pipe, tab, semicolon)
//   - Charset handling: UTF-8 (BOM stripped), UTF-16 with BOM, and a Latin-1
//     fallback when the bytes are not valid UTF-8
//   - Ragged rows are padded or truncated to the header width
//   - Fully empty rows are skipped
//
// =============================================================================

package csvparser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ginjaninja78/client-billing-consolidator/internal/config"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// =============================================================================
// BYTE ORDER MARKS
// =============================================================================

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV file and returns the raw table.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: Delimiter and charset settings from the main configuration.
//
// RETURNS:
//   - The parsed table. A file with a header row but no data rows is not an
//     error here; the normaliser rejects it.
//   - An error if the file cannot be read or has no header row at all.
func Parse(filePath string, settings config.CSVSettings) (*types.Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	table, err := ParseReader(file, settings)
	if err != nil {
		return nil, err
	}

	table.SourceFile = filePath
	return table, nil
}

// ParseReader parses CSV content from any reader.
func ParseReader(r io.Reader, settings config.CSVSettings) (*types.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	decoded, err := Decode(raw, settings.Encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CSV: %w", err)
	}

	csvReader := csv.NewReader(bytes.NewReader(decoded))
	configureReader(csvReader, settings)

	allRows, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	if len(allRows) == 0 {
		return nil, fmt.Errorf("CSV file is empty")
	}

	headers := cleanHeaders(allRows[0])

	return &types.Table{
		Headers: headers,
		Rows:    extractDataRows(allRows[1:], len(headers)),
	}, nil
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch settings.Delimiter {
	case "\\t", "\t", "tab", "TAB":
		reader.Comma = '\t'
	case "|", "pipe", "PIPE":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Exports from the usage portal are not always rectangular.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
}

// =============================================================================
// CHARSET HANDLING
// =============================================================================

// Decode converts raw file bytes to UTF-8.
//
// ENCODING VALUES:
//   - "" or "auto": strip a UTF-8 BOM, honour a UTF-16 BOM, otherwise keep
//     valid UTF-8 as-is and fall back to Latin-1 for anything else.
//   - Any WHATWG label ("windows-1252", "iso-8859-1", "utf-16le", ...).
func Decode(data []byte, encoding string) ([]byte, error) {
	name := strings.ToLower(strings.TrimSpace(encoding))

	if name == "" || name == "auto" {
		return decodeAuto(data)
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode as %s: %w", encoding, err)
	}

	return bytes.TrimPrefix(decoded, bomUTF8), nil
}

func decodeAuto(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, bomUTF8) {
		return data[len(bomUTF8):], nil
	}

	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
	}

	if utf8.Valid(data) {
		return data, nil
	}

	return charmap.ISO8859_1.NewDecoder().Bytes(data)
}

// =============================================================================
// ROW HELPERS
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

// extractDataRows trims cell values and squares every row to width columns.
func extractDataRows(rows [][]string, width int) [][]string {
	dataRows := make([][]string, 0, len(rows))

	for _, row := range rows {
		if isRowEmpty(row) {
			continue
		}

		out := make([]string, width)
		for i := 0; i < width && i < len(row); i++ {
			out[i] = strings.TrimSpace(row[i])
		}

		dataRows = append(dataRows, out)
	}

	return dataRows
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
