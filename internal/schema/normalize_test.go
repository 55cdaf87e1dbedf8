package schema

import (
	"errors"
	"testing"

	"github.com/ginjaninja78/client-billing-consolidator/internal/config"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RenamesSynonymsCaseInsensitively(t *testing.T) {
	table := &types.Table{
		Headers: []string{"ACCOUNT", "Name", "Total Calls", "SMS", "Ask AI", "Phone Numbers"},
		Rows: [][]string{
			{"8053332894", "Big Brand Tire", "10", "20", "3", "2"},
		},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"ACCOUNT":       ColAccountNumber,
		"Name":          ColAccountName,
		"Total Calls":   ColCallsTotal,
		"SMS":           ColMessagesQuantity,
		"Ask AI":        ColAskAIQuantity,
		"Phone Numbers": ColNumbersQuantity,
	}, n.Renamed)

	require.Len(t, n.Records, 1)
	rec := n.Records[0]
	assert.Equal(t, "8053332894", rec.Get(FieldAccountNumber))
	assert.Equal(t, "Big Brand Tire", rec.Get(FieldAccountName))
	assert.Equal(t, "10", rec.Get(FieldCalls))
	assert.Equal(t, "20", rec.Get(FieldMessages))
	assert.Equal(t, "3", rec.Get(FieldAskAI))
	assert.Equal(t, "2", rec.Get(FieldNumbers))
}

func TestNormalize_NeverOverwritesExistingCanonical(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Account Number", "Account", "Calls Total", "calls"},
		Rows:    [][]string{{"1", "legacy", "4", "99"}},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	assert.Empty(t, n.Renamed)
	assert.Equal(t, "1", n.Records[0].Get(FieldAccountNumber))
	assert.Equal(t, "4", n.Records[0].Get(FieldCalls))
	assert.Contains(t, n.Columns, "Account")
	assert.Contains(t, n.Columns, "calls")
}

func TestNormalize_DeduplicatesCollisions(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Account", "calls", "total calls", "Notes", "Notes"},
		Rows:    [][]string{{"1", "5", "6", "a", "b"}},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		ColAccountNumber, ColCallsTotal, ColCallsTotal + "_1", "Notes", "Notes_1",
	}, n.Columns[:5])
	// The first occurrence keeps the canonical name and supplies the value.
	assert.Equal(t, "5", n.Records[0].Get(FieldCalls))
}

func TestNormalize_FillsDefaults(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Account"},
		Rows:    [][]string{{"42"}},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	assert.False(t, n.CostReported)
	assert.Equal(t, ColMessagesQuantity, n.MessagesSource)
	assert.ElementsMatch(t, []string{
		ColAccountName, ColCallsTotal, ColMinutesQuantity, ColMessagesQuantity,
		ColTranscriptionsQuantity, ColTranscriptionsCost, ColAskAIQuantity, ColNumbersQuantity,
	}, n.Added)

	rec := n.Records[0]
	assert.Equal(t, UnknownAccountName, rec.Get(FieldAccountName))
	assert.Equal(t, "0", rec.Get(FieldCalls))
	assert.Equal(t, DefaultCost, rec.Get(FieldTranscriptionsCost))
}

func TestNormalize_PrefersMessagesTotal(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Account", "Messages quantity", "Messages Total", "Transcriptions cost"},
		Rows:    [][]string{{"1", "3", "30", "$1.00"}},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	assert.Equal(t, ColMessagesTotal, n.MessagesSource)
	assert.True(t, n.CostReported)
	assert.Equal(t, "30", n.Records[0].Get(FieldMessages))
	assert.NotContains(t, n.Added, ColMessagesQuantity)
}

func TestNormalize_AccountIDs(t *testing.T) {
	table := &types.Table{
		Headers: []string{"Account", "Account Name"},
		Rows: [][]string{
			{"8053332894.0", "Spreadsheet float"},
			{"  ", "no id"},
			{"ACC-7", ""},
		},
	}

	n, err := Normalize(table, nil)
	require.NoError(t, err)

	require.Len(t, n.Records, 2)
	assert.Equal(t, "8053332894", n.Records[0].Get(FieldAccountNumber))
	assert.Equal(t, "ACC-7", n.Records[1].Get(FieldAccountNumber))
	assert.Equal(t, UnknownAccountName, n.Records[1].Get(FieldAccountName))
	assert.Equal(t, 3, n.Records[1].Row)
	assert.Equal(t, []int{2}, n.SkippedRows)
}

func TestNormalize_ValidationErrors(t *testing.T) {
	tests := []struct {
		name  string
		table *types.Table
	}{
		{"missing account column", &types.Table{Headers: []string{"Calls"}, Rows: [][]string{{"1"}}}},
		{"no data rows", &types.Table{Headers: []string{"Account"}}},
		{"only blank ids", &types.Table{Headers: []string{"Account"}, Rows: [][]string{{""}}}},
		{"nil table", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.table, nil)
			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %v", err)
		})
	}
}

func TestCanonicalAccountID(t *testing.T) {
	tests := map[string]string{
		"8053332894":    "8053332894",
		"8053332894.0":  "8053332894",
		"8053332894.00": "8053332894",
		"12.5":          "12.5",
		" 77 ":          "77",
		"A.0":           "A.0",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CanonicalAccountID(in), in)
	}
}

func TestNewSynonymTable(t *testing.T) {
	table, err := NewSynonymTable(DefaultSynonyms())
	require.NoError(t, err)
	assert.Greater(t, table.Len(), 30)

	_, err = NewSynonymTable([]config.SynonymRule{{Canonical: "Fax quantity", Synonyms: []string{"fax"}}})
	assert.Error(t, err)

	_, err = NewSynonymTable([]config.SynonymRule{
		{Canonical: ColCallsTotal, Synonyms: []string{"calls"}},
		{Canonical: ColMinutesQuantity, Synonyms: []string{"CALLS"}},
	})
	assert.ErrorContains(t, err, "bound to both")

	_, err = NewSynonymTable([]config.SynonymRule{{Canonical: ColCallsTotal, Synonyms: []string{"  "}}})
	assert.Error(t, err)
}

func TestNormalize_CustomSynonyms(t *testing.T) {
	synonyms, err := NewSynonymTable([]config.SynonymRule{
		{Canonical: ColAccountNumber, Synonyms: []string{"client ref"}},
	})
	require.NoError(t, err)

	n, err := Normalize(&types.Table{
		Headers: []string{"Client Ref", "Calls"},
		Rows:    [][]string{{"9", "1"}},
	}, synonyms)
	require.NoError(t, err)

	assert.Equal(t, "9", n.Records[0].Get(FieldAccountNumber))
	// "Calls" is not in the custom table, so the default is used.
	assert.Equal(t, "0", n.Records[0].Get(FieldCalls))
}
