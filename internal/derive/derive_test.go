package derive

import (
	"testing"

	"github.com/ginjaninja78/client-billing-consolidator/internal/schema"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumericOrDefault(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"10", 10, true},
		{" 1,234.5 ", 1234.5, true},
		{"$7", 7, true},
		{"", 0, true},
		{"n/a", 0, false},
		{"NaN", 0, false},
		{"+Inf", 0, false},
		{"-3", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumericOrDefault(tt.in, 0)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}

	got, ok := ParseNumericOrDefault("bad", 5)
	assert.Equal(t, 5.0, got)
	assert.False(t, ok)
}

func TestParseCurrency(t *testing.T) {
	d, ok := ParseCurrency("$1,234.56")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("1234.56")))

	_, ok = ParseCurrency("")
	assert.False(t, ok)

	_, ok = ParseCurrency("twelve dollars")
	assert.False(t, ok)
}

func TestTranscriptionMinutes(t *testing.T) {
	tests := []struct {
		name     string
		cost     string
		reported bool
		quantity float64
		want     float64
	}{
		{"cost divided by rate", "$1.00", true, 3, 50},
		{"thousands separator", "$1,000.00", true, 0, 50000},
		{"zero cost beats quantity", "$0.00", true, 9, 0},
		{"absent cost column uses quantity", "$0.00", false, 7, 7},
		{"unparseable cost uses quantity", "pending", true, 4, 4},
		{"blank cost uses quantity", "", true, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranscriptionMinutes(tt.cost, tt.reported, tt.quantity, DefaultRate)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestNew_FallsBackToDefaultRate(t *testing.T) {
	assert.True(t, New(decimal.Zero).Rate.Equal(DefaultRate))
	assert.True(t, New(decimal.RequireFromString("0.05")).Rate.Equal(decimal.RequireFromString("0.05")))
}

func TestBuild(t *testing.T) {
	n, err := schema.Normalize(&types.Table{
		Headers: []string{"Account", "Account Name", "Calls Total", "Messages Total", "Messages quantity", "Transcriptions quantity", "Transcriptions cost", "AskAI quantity"},
		Rows: [][]string{
			{"8053332894", "Big Brand Tire", "10", "20", "2", "1", "$1.00", "3"},
			{"999", "", "oops", "", "", "7", "n/a", ""},
		},
	}, nil)
	require.NoError(t, err)

	records, warnings := New(DefaultRate).Build(n)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "8053332894", first.AccountID)
	assert.Equal(t, 10.0, first.CallsTotal)
	assert.Equal(t, 20.0, first.MessagesQuantity)
	assert.InDelta(t, 50.0, first.TranscriptionMinutes, 1e-9)
	assert.Equal(t, 3.0, first.AskAIQuantity)
	assert.Equal(t, 1, first.SourceRow)

	second := records[1]
	assert.Equal(t, schema.UnknownAccountName, second.AccountName)
	assert.Equal(t, 0.0, second.CallsTotal)
	assert.Equal(t, 7.0, second.TranscriptionMinutes)

	require.Len(t, warnings, 2)
	assert.Equal(t, ParseWarning{Row: 2, Column: schema.ColCallsTotal, Value: "oops", Default: "0"}, warnings[0])
	assert.Equal(t, schema.ColTranscriptionsCost, warnings[1].Column)
	assert.Contains(t, warnings[0].String(), "row 2")
}

func TestBuild_NoCostColumn(t *testing.T) {
	n, err := schema.Normalize(&types.Table{
		Headers: []string{"Account", "Transcriptions quantity"},
		Rows:    [][]string{{"1", "7"}},
	}, nil)
	require.NoError(t, err)

	records, warnings := New(DefaultRate).Build(n)
	assert.Empty(t, warnings)
	assert.Equal(t, 7.0, records[0].TranscriptionMinutes)
	assert.Equal(t, schema.DefaultCost, records[0].TranscriptionsCost)
}
