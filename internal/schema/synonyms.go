package schema

import (
	"fmt"
	"strings"

	"github.com/ginjaninja78/client-billing-consolidator/internal/config"
)

// =============================================================================
// CANONICAL COLUMNS
// =============================================================================

// Canonical column names. These are the headers the rest of the pipeline
// reads; anything else in the export is carried along but ignored.
const (
	ColAccountNumber          = "Account Number"
	ColAccountName            = "Account Name"
	ColCallsTotal             = "Calls Total"
	ColMinutesQuantity        = "Minutes quantity"
	ColMessagesQuantity       = "Messages quantity"
	ColMessagesTotal          = "Messages Total"
	ColTranscriptionsQuantity = "Transcriptions quantity"
	ColTranscriptionsCost     = "Transcriptions cost"
	ColAskAIQuantity          = "AskAI quantity"
	ColNumbersQuantity        = "Numbers quantity"
)

// DefaultCost is the fill value for a missing cost column.
const DefaultCost = "$0.00"

var canonicalColumns = map[string]bool{
	ColAccountNumber:          true,
	ColAccountName:            true,
	ColCallsTotal:             true,
	ColMinutesQuantity:        true,
	ColMessagesQuantity:       true,
	ColMessagesTotal:          true,
	ColTranscriptionsQuantity: true,
	ColTranscriptionsCost:     true,
	ColAskAIQuantity:          true,
	ColNumbersQuantity:        true,
}

// IsCanonical reports whether name is one of the canonical columns.
func IsCanonical(name string) bool {
	return canonicalColumns[name]
}

// =============================================================================
// SYNONYM TABLE
// =============================================================================

// DefaultSynonyms returns the built-in synonym rules. Spellings are matched
// case-insensitively.
func DefaultSynonyms() []config.SynonymRule {
	return []config.SynonymRule{
		{Canonical: ColAccountNumber, Synonyms: []string{"account", "account number", "account id", "account #", "acct"}},
		{Canonical: ColAccountName, Synonyms: []string{"account name", "name", "client name", "customer name"}},
		{Canonical: ColCallsTotal, Synonyms: []string{
			"calls quantity", "call quantity", "calls", "call", "calls total", "call total", "total calls",
		}},
		{Canonical: ColMinutesQuantity, Synonyms: []string{"minutes", "minute", "call minutes", "call minute", "minutes quantity"}},
		{Canonical: ColMessagesQuantity, Synonyms: []string{"messages", "message", "sms quantity", "sms", "messages quantity"}},
		{Canonical: ColMessagesTotal, Synonyms: []string{"messages total", "message total"}},
		{Canonical: ColTranscriptionsQuantity, Synonyms: []string{
			"transcription", "transcriptions", "transcription minutes", "transcriptions minutes",
			"transcription minute", "transcriptions minute", "transcriptions quantity",
		}},
		{Canonical: ColTranscriptionsCost, Synonyms: []string{"transcriptions cost", "transcription cost"}},
		{Canonical: ColAskAIQuantity, Synonyms: []string{"askai", "ask ai", "ai quantity", "ai", "askai quantity"}},
		{Canonical: ColNumbersQuantity, Synonyms: []string{"numbers", "number", "phone numbers", "phone number", "numbers quantity"}},
	}
}

// synonym is one compiled lookup entry.
type synonym struct {
	spelling  string // lower-cased
	canonical string
}

// SynonymTable is a validated, ordered synonym lookup.
type SynonymTable struct {
	entries []synonym
}

// NewSynonymTable compiles rules into a lookup table.
//
// RETURNS:
//   - An error if a rule names an unknown canonical column, has a blank
//     spelling, or if one spelling is bound to two different canonicals.
func NewSynonymTable(rules []config.SynonymRule) (*SynonymTable, error) {
	table := &SynonymTable{}
	seen := make(map[string]string)

	for _, rule := range rules {
		if !IsCanonical(rule.Canonical) {
			return nil, fmt.Errorf("synonym rule targets unknown column %q", rule.Canonical)
		}

		for _, s := range rule.Synonyms {
			spelling := strings.ToLower(strings.TrimSpace(s))
			if spelling == "" {
				return nil, fmt.Errorf("blank synonym for column %q", rule.Canonical)
			}

			if prev, ok := seen[spelling]; ok {
				if prev != rule.Canonical {
					return nil, fmt.Errorf("synonym %q is bound to both %q and %q", spelling, prev, rule.Canonical)
				}
				continue
			}

			seen[spelling] = rule.Canonical
			table.entries = append(table.entries, synonym{spelling: spelling, canonical: rule.Canonical})
		}
	}

	return table, nil
}

// DefaultSynonymTable compiles DefaultSynonyms. The built-in rules are known
// to be conflict free, so a failure here is a programming error.
func DefaultSynonymTable() *SynonymTable {
	table, err := NewSynonymTable(DefaultSynonyms())
	if err != nil {
		panic(err)
	}
	return table
}

// Len returns the number of spellings in the table.
func (t *SynonymTable) Len() int {
	return len(t.entries)
}
