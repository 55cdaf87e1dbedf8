package classifier

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(id, name string) types.UsageRecord {
	return types.UsageRecord{AccountID: id, AccountName: name}
}

func TestClassify_ConcreteScenario(t *testing.T) {
	records := []types.UsageRecord{
		{AccountID: "8053332894", CallsTotal: 10, MessagesQuantity: 20, AskAIQuantity: 3},
		{AccountID: "999", CallsTotal: 5},
	}

	result := Classify(records, mapping.DefaultSeeds())
	assert.Equal(t, []string{"8053332894"}, result.Mapped)
	assert.Equal(t, []string{"999"}, result.Unmapped)
}

func TestClassify_Idempotent(t *testing.T) {
	records := []types.UsageRecord{rec("3", "c"), rec("1", "a"), rec("3", "c again"), rec("2", "b")}
	snapshot := mapping.Snapshot{"1": types.GroupSylvan}

	first := Classify(records, snapshot)
	second := Classify(records, snapshot)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"3", "2"}, first.Unmapped)
}

func TestAssign_CompletesMapping(t *testing.T) {
	records := []types.UsageRecord{rec("10", "x"), rec("11", "y"), rec("8053332895", "z")}
	store := mapping.NewFileStore(filepath.Join(t.TempDir(), "maps.json"), nil)
	c := New(store, nil)

	unmapped := c.Classify(records).Unmapped
	require.Len(t, unmapped, 2)

	for _, id := range unmapped {
		require.NoError(t, c.Assign(id, types.GroupIndependents))
	}
	assert.Empty(t, c.Classify(records).Unmapped)

	// A fresh classifier sees the persisted assignments.
	reloaded := New(store, nil)
	assert.Empty(t, reloaded.Classify(records).Unmapped)
	assert.Equal(t, types.GroupIndependents, reloaded.Mapping()["10"])
}

func TestAssign_IdempotentDoesNotSave(t *testing.T) {
	store := mapping.NewMemoryStore(nil)
	c := New(store, nil)

	require.NoError(t, c.Assign("42", types.GroupTruckfitters))
	require.NoError(t, c.Assign("42", types.GroupTruckfitters))
	assert.Equal(t, 1, store.Saves())

	require.NoError(t, c.Assign("42", types.GroupSylvan))
	assert.Equal(t, 2, store.Saves())
	assert.Equal(t, types.GroupSylvan, c.Mapping()["42"])
}

func TestAssign_PersistenceFailureKeepsInMemory(t *testing.T) {
	store := mapping.NewMemoryStore(nil)
	store.FailSaves = true
	c := New(store, nil)

	err := c.Assign("77", types.GroupBTTW)
	var warning *mapping.PersistenceWarning
	require.True(t, errors.As(err, &warning))

	assert.Equal(t, types.GroupBTTW, c.Mapping()["77"])
	assert.Empty(t, c.Classify([]types.UsageRecord{rec("77", "kept")}).Unmapped)
}

func TestAssign_InvalidInput(t *testing.T) {
	c := New(mapping.NewMemoryStore(nil), nil)

	assert.Error(t, c.Assign("", types.GroupBTTW))
	assert.Error(t, c.Assign("1", types.BillingGroup("Moon Base")))
	assert.NotContains(t, c.Mapping(), "1")
}

func TestPending(t *testing.T) {
	var records []types.UsageRecord
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, rec(id, "Name "+id))
	}
	records = append(records, rec("a", "Second name"))

	page := Pending(records, mapping.Snapshot{}, 5)
	require.Len(t, page.Accounts, 5)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 2, page.Remaining())
	assert.Equal(t, "a - Name a", page.Accounts[0].Display())

	all := Pending(records, mapping.Snapshot{}, 0)
	assert.Len(t, all.Accounts, 7)
	assert.Zero(t, all.Remaining())
}

func TestGroupCounts(t *testing.T) {
	records := []types.UsageRecord{rec("1", ""), rec("2", ""), rec("2", ""), rec("3", ""), rec("4", "")}
	snapshot := mapping.Snapshot{"1": types.GroupSylvan, "2": types.GroupSylvan, "3": types.GroupBTTW}

	counts := GroupCounts(records, snapshot)
	assert.Equal(t, map[types.BillingGroup]int{types.GroupSylvan: 2, types.GroupBTTW: 1}, counts)
}
