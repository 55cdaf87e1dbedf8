// =============================================================================
// Client Billing Consolidator - Account Classifier
// =============================================================================
//
// This module splits the accounts of a usage export into those that already
// have a billing group and those that need one. It also owns assignment: the
// only way the mapping changes.
//
// The report for a file is only produced once every account in it is mapped,
// so the unmapped list is what the operator works through with
// `assign <account> <group>`. Callers show it a page at a time
// (AssignmentPageSize, 5 by default); Classify itself always returns the
// full list.
//
// =============================================================================

package classifier

import (
	"errors"
	"fmt"

	"github.com/ginjaninja78/client-billing-consolidator/internal/mapping"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Result is the mapped/unmapped split of one export.
type Result struct {
	// Mapped holds account ids that have a group, in first-appearance order.
	Mapped []string

	// Unmapped holds account ids without a group, in first-appearance order.
	Unmapped []string
}

// Classify partitions the distinct account ids in records by whether the
// mapping knows them. The same inputs always give the same result.
func Classify(records []types.UsageRecord, snapshot mapping.Snapshot) Result {
	ids := lo.Uniq(lo.Map(records, func(r types.UsageRecord, _ int) string {
		return r.AccountID
	}))

	mapped, unmapped := lo.FilterReject(ids, func(id string, _ int) bool {
		_, ok := snapshot[id]
		return ok
	})

	return Result{Mapped: mapped, Unmapped: unmapped}
}

// GroupCounts returns how many distinct accounts of records fall into each
// billing group. Unmapped accounts are not counted.
func GroupCounts(records []types.UsageRecord, snapshot mapping.Snapshot) map[types.BillingGroup]int {
	counts := make(map[types.BillingGroup]int)
	for _, id := range Classify(records, snapshot).Mapped {
		counts[snapshot[id]]++
	}
	return counts
}

// =============================================================================
// PENDING ASSIGNMENTS
// =============================================================================

// PendingAccount is an unmapped account as shown to the operator.
type PendingAccount struct {
	ID   string
	Name string
}

// Display formats the account as "<id> - <name>".
func (p PendingAccount) Display() string {
	return fmt.Sprintf("%s - %s", p.ID, p.Name)
}

// Page is one screenful of pending accounts.
type Page struct {
	Accounts []PendingAccount

	// Total is the number of unmapped accounts in the export.
	Total int
}

// Remaining is the number of unmapped accounts not on this page.
func (p Page) Remaining() int {
	return p.Total - len(p.Accounts)
}

// Pending returns the first pageSize unmapped accounts with their names.
// A pageSize of zero or less returns every unmapped account.
func Pending(records []types.UsageRecord, snapshot mapping.Snapshot, pageSize int) Page {
	unmapped := Classify(records, snapshot).Unmapped

	shown := unmapped
	if pageSize > 0 && len(shown) > pageSize {
		shown = shown[:pageSize]
	}

	// The first row for an id supplies its name.
	names := make(map[string]string, len(records))
	for _, r := range records {
		if _, ok := names[r.AccountID]; !ok {
			names[r.AccountID] = r.AccountName
		}
	}

	page := Page{Total: len(unmapped), Accounts: make([]PendingAccount, 0, len(shown))}
	for _, id := range shown {
		page.Accounts = append(page.Accounts, PendingAccount{ID: id, Name: names[id]})
	}
	return page
}

// =============================================================================
// CLASSIFIER (STATEFUL)
// =============================================================================

// Classifier keeps the current mapping for a session and applies
// assignments through a Store.
type Classifier struct {
	store   mapping.Store
	current mapping.Snapshot
	logger  *zap.SugaredLogger

	// unsaved holds assignments whose save failed. They are re-applied on
	// top of every reload until a save succeeds.
	unsaved mapping.Snapshot
}

// New loads the mapping from store. A load error (a corrupt file, say) is
// logged and the seed mapping the store returned is used.
func New(store mapping.Store, logger *zap.SugaredLogger) *Classifier {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	snapshot, err := store.Load()
	if err != nil {
		logger.Warnw("mapping load failed, continuing with defaults", "error", err)
	}
	if snapshot == nil {
		snapshot = mapping.DefaultSeeds()
	}

	return &Classifier{store: store, current: snapshot, logger: logger, unsaved: mapping.Snapshot{}}
}

// Mapping returns a copy of the current mapping.
func (c *Classifier) Mapping() mapping.Snapshot {
	return c.current.Clone()
}

// Classify splits records against the current mapping.
func (c *Classifier) Classify(records []types.UsageRecord) Result {
	return Classify(records, c.current)
}

// Assign maps accountID to group and saves the whole mapping.
//
// The stored mapping is re-read first, the one key is changed and the
// result is written back. Assigning a pair that is already stored does not
// write anything.
//
// RETURNS:
//   - nil on success.
//   - A *mapping.PersistenceWarning when the save failed; the assignment
//     is still applied in memory.
//   - Any other error when the input is invalid; nothing changes.
func (c *Classifier) Assign(accountID string, group types.BillingGroup) error {
	if accountID == "" {
		return errors.New("account id is required")
	}
	if !group.Valid() {
		return fmt.Errorf("unknown billing group %q", group)
	}

	latest, err := c.store.Load()
	if err != nil || latest == nil {
		c.logger.Warnw("mapping reload failed, assigning against session copy", "error", err)
		latest = c.current
	}
	for id, g := range c.unsaved {
		latest = latest.With(id, g)
	}

	if existing, ok := latest[accountID]; ok && existing == group {
		c.current = latest
		return nil
	}

	next := latest.With(accountID, group)
	c.current = next

	if err := c.store.Save(next); err != nil {
		var warning *mapping.PersistenceWarning
		if !errors.As(err, &warning) {
			warning = &mapping.PersistenceWarning{Path: "mapping store", Err: err}
		}
		c.unsaved[accountID] = group
		c.logger.Warnw("assignment kept in memory only", "account", accountID, "group", string(group), "error", warning.Err)
		return warning
	}

	c.unsaved = mapping.Snapshot{}

	c.logger.Infow("account assigned", "account", accountID, "group", string(group))
	return nil
}
