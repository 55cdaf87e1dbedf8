// =============================================================================
// Client Billing Consolidator - Schema Normalizer
// =============================================================================
//
// Usage exports do not agree on column names. One month the calls column is
// "Calls Total", the next it is "calls quantity"; spreadsheet exports turn
// account ids into floats. This module maps whatever arrives onto the
// canonical column set before any value is read.
//
// NORMALISATION STEPS (in order):
//   1. Rename: a header matching a synonym (case-insensitive) is renamed to
//      its canonical column, unless that canonical column is already present
//      in the original headers. An existing canonical column is never
//      overwritten by a synonym.
//   2. De-duplicate: any name still occurring more than once is suffixed
//      _1, _2, ... on later occurrences. The first occurrence keeps its name.
//   3. Resolve messages: "Messages Total" wins over "Messages quantity" when
//      both exist. This is decided once for the whole table.
//   4. Fill: canonical columns still missing get their default (0, or
//      "$0.00" for the cost column).
//   5. Validate: no account column, or no usable rows, is a ValidationError.
//
// =============================================================================

package schema

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
)

// =============================================================================
// ERRORS
// =============================================================================

// ValidationError means the table cannot produce a report at all. The run
// for this input stops; nothing partial is written.
type ValidationError struct {
	Reason  string
	Columns []string
}

func (e *ValidationError) Error() string {
	if len(e.Columns) == 0 {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s (columns: %s)", e.Reason, strings.Join(e.Columns, ", "))
}

// =============================================================================
// NORMALISED OUTPUT
// =============================================================================

// Field indexes the canonical values carried by a RawRecord.
type Field int

const (
	FieldAccountNumber Field = iota
	FieldAccountName
	FieldCalls
	FieldMinutes
	FieldMessages
	FieldTranscriptionsQuantity
	FieldTranscriptionsCost
	FieldAskAI
	FieldNumbers
	fieldCount
)

// UnknownAccountName is used when an export row has no name.
const UnknownAccountName = "Unknown"

// RawRecord is one data row reduced to its canonical cell texts.
type RawRecord struct {
	// Row is the 1-indexed data row in the source table.
	Row    int
	Fields [fieldCount]string
}

// Get returns the cell text for a field.
func (r RawRecord) Get(f Field) string {
	return r.Fields[f]
}

// Normalized is the result of Normalize.
type Normalized struct {
	// Columns are the final column names after rename, de-duplication and
	// default fill, in table order.
	Columns []string

	Records []RawRecord

	// Renamed maps original header -> canonical name for every rename made.
	Renamed map[string]string

	// Added lists canonical columns that were filled with defaults.
	Added []string

	// MessagesSource is the column the messages metric is read from.
	MessagesSource string

	// CostReported is false when the cost column was default-filled.
	CostReported bool

	// SkippedRows are 1-indexed data rows dropped for having no account id.
	SkippedRows []int

	SourceFile string
}

// =============================================================================
// NORMALIZE
// =============================================================================

// Normalize maps a raw table onto the canonical column set.
//
// PARAMETERS:
//   - table: The parsed export.
//   - synonyms: The synonym table; nil means the built-in table.
//
// RETURNS:
//   - The normalised records.
//   - A *ValidationError if the account column is missing after renaming or
//     the table holds no rows with an account id.
func Normalize(table *types.Table, synonyms *SynonymTable) (*Normalized, error) {
	if table == nil {
		return nil, &ValidationError{Reason: "no input table"}
	}
	if synonyms == nil {
		synonyms = DefaultSynonymTable()
	}

	columns, renamed := renameColumns(table.Headers, synonyms)
	columns = dedupeColumns(columns)

	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}

	if _, ok := index[ColAccountNumber]; !ok {
		return nil, &ValidationError{
			Reason:  "required column \"Account Number\" (or \"Account\") not found",
			Columns: append([]string(nil), table.Headers...),
		}
	}

	if len(table.Rows) == 0 {
		return nil, &ValidationError{Reason: "input has no data rows"}
	}

	out := &Normalized{
		Renamed:    renamed,
		SourceFile: table.SourceFile,
	}

	// Messages Total wins when present; the choice holds for every row.
	out.MessagesSource = ColMessagesQuantity
	if _, ok := index[ColMessagesTotal]; ok {
		out.MessagesSource = ColMessagesTotal
	}

	_, out.CostReported = index[ColTranscriptionsCost]

	sources := [fieldCount]string{
		FieldAccountNumber:          ColAccountNumber,
		FieldAccountName:            ColAccountName,
		FieldCalls:                  ColCallsTotal,
		FieldMinutes:                ColMinutesQuantity,
		FieldMessages:               out.MessagesSource,
		FieldTranscriptionsQuantity: ColTranscriptionsQuantity,
		FieldTranscriptionsCost:     ColTranscriptionsCost,
		FieldAskAI:                  ColAskAIQuantity,
		FieldNumbers:                ColNumbersQuantity,
	}

	var cols [fieldCount]int
	var defaults [fieldCount]string
	for f, name := range sources {
		if i, ok := index[name]; ok {
			cols[f] = i
			continue
		}

		cols[f] = -1
		switch Field(f) {
		case FieldAccountName:
			defaults[f] = UnknownAccountName
		case FieldTranscriptionsCost:
			defaults[f] = DefaultCost
		default:
			defaults[f] = "0"
		}
		out.Added = append(out.Added, name)
		columns = append(columns, name)
	}
	out.Columns = columns

	out.Records = make([]RawRecord, 0, len(table.Rows))
	for r, row := range table.Rows {
		rec := RawRecord{Row: r + 1}

		for f := range rec.Fields {
			if cols[f] < 0 {
				rec.Fields[f] = defaults[f]
				continue
			}
			if cols[f] < len(row) {
				rec.Fields[f] = strings.TrimSpace(row[cols[f]])
			}
		}

		rec.Fields[FieldAccountNumber] = CanonicalAccountID(rec.Fields[FieldAccountNumber])
		if rec.Fields[FieldAccountNumber] == "" {
			out.SkippedRows = append(out.SkippedRows, rec.Row)
			continue
		}
		if rec.Fields[FieldAccountName] == "" {
			rec.Fields[FieldAccountName] = UnknownAccountName
		}

		out.Records = append(out.Records, rec)
	}

	if len(out.Records) == 0 {
		return nil, &ValidationError{Reason: "no rows with an account number"}
	}

	return out, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// renameColumns applies the synonym table to the original headers.
func renameColumns(headers []string, synonyms *SynonymTable) ([]string, map[string]string) {
	original := make(map[string]bool, len(headers))
	lower := make(map[string]string, len(headers))
	for _, h := range headers {
		original[h] = true
		// Later headers win, matching a dictionary built left to right.
		lower[strings.ToLower(h)] = h
	}

	renamed := make(map[string]string)
	for _, s := range synonyms.entries {
		header, ok := lower[s.spelling]
		if !ok || original[s.canonical] {
			continue
		}
		if _, done := renamed[header]; done {
			continue
		}
		renamed[header] = s.canonical
	}

	columns := make([]string, len(headers))
	for i, h := range headers {
		if target, ok := renamed[h]; ok {
			columns[i] = target
		} else {
			columns[i] = h
		}
	}

	return columns, renamed
}

// dedupeColumns suffixes later occurrences of a repeated name with _1, _2, ...
func dedupeColumns(columns []string) []string {
	counts := make(map[string]int, len(columns))
	for _, c := range columns {
		counts[c]++
	}

	out := make([]string, len(columns))
	seen := make(map[string]int, len(columns))
	for i, c := range columns {
		if counts[c] == 1 {
			out[i] = c
			continue
		}

		n := seen[c]
		seen[c] = n + 1
		if n == 0 {
			out[i] = c
		} else {
			out[i] = fmt.Sprintf("%s_%d", c, n)
		}
	}

	return out
}

// CanonicalAccountID trims an account id and drops a float-style zero
// fraction ("8053332894.0" -> "8053332894") left by spreadsheet sources.
func CanonicalAccountID(raw string) string {
	id := strings.TrimSpace(raw)

	dot := strings.IndexByte(id, '.')
	if dot <= 0 || !isDigits(id[:dot]) {
		return id
	}

	frac := id[dot+1:]
	if frac == "" || strings.Trim(frac, "0") == "" {
		return id[:dot]
	}
	return id
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
