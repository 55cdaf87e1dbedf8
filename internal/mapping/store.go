// =============================================================================
// Client Billing Consolidator - Account Mapping Store
// =============================================================================
//
// The account -> billing group mapping is the one piece of durable state. It
// is loaded wholesale and written back wholesale; the store hands out
// snapshots so no caller shares a map with another.
//
// FILE FORMAT (account_group_mappings.json):
//   {
//     "8053332893": "BTTW GROUP",
//     "8053332894": "BIG BRAND TIRE GROUP"
//   }
//
// LOAD RULES:
//   - The five seed accounts are always present unless the file overrides
//     them with another group.
//   - A missing file yields the seeds only.
//   - A corrupt file yields the seeds only, plus an error for the caller to
//     report. The returned snapshot is usable either way.
//   - Entries naming an unknown group are dropped.
//
// CONCURRENCY:
//   Single writer. Two processes assigning at the same moment can overwrite
//   each other's change.
//
// =============================================================================

package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ginjaninja78/client-billing-consolidator/internal/schema"
	"github.com/ginjaninja78/client-billing-consolidator/internal/types"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is an account id -> billing group table. Treat it as immutable;
// use With to derive a changed copy.
type Snapshot map[string]types.BillingGroup

// Clone returns an independent copy.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// With returns a copy with id assigned to group.
func (s Snapshot) With(id string, group types.BillingGroup) Snapshot {
	out := s.Clone()
	out[id] = group
	return out
}

// Lookup returns the group for an account id.
func (s Snapshot) Lookup(id string) (types.BillingGroup, bool) {
	g, ok := s[id]
	return g, ok
}

// IDs returns the account ids sorted by group order, then id.
func (s Snapshot) IDs() []string {
	ids := lo.Keys(map[string]types.BillingGroup(s))
	sort.Slice(ids, func(i, j int) bool {
		gi, gj := s[ids[i]].Index(), s[ids[j]].Index()
		if gi != gj {
			return gi < gj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// DefaultSeeds returns the built-in seed mapping.
func DefaultSeeds() Snapshot {
	return Snapshot{
		"8053332893": types.GroupBTTW,
		"8053332894": types.GroupBigBrandTire,
		"8053332895": types.GroupSylvan,
		"8053332896": types.GroupTruckfitters,
		"8053332897": types.GroupIndependents,
	}
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store loads and saves whole mapping snapshots.
type Store interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// PersistenceWarning reports a failed save. The assignment that triggered it
// still holds in memory for the rest of the run.
type PersistenceWarning struct {
	Path string
	Err  error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("mapping not saved to %s: %v", w.Path, w.Err)
}

func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

// =============================================================================
// JSON FILE STORE
// =============================================================================

// FileStore keeps the mapping in a JSON document on disk.
type FileStore struct {
	Path   string
	Logger *zap.SugaredLogger
}

// NewFileStore creates a store for path. A nil logger discards output.
func NewFileStore(path string, logger *zap.SugaredLogger) *FileStore {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &FileStore{Path: path, Logger: logger}
}

// Load reads the mapping file and merges it over the seeds.
func (s *FileStore) Load() (Snapshot, error) {
	snapshot := DefaultSeeds()

	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Logger.Debugw("mapping file not found, using seed accounts", "path", s.Path)
		return snapshot, nil
	}
	if err != nil {
		return snapshot, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return snapshot, fmt.Errorf("mapping file %s is corrupt: %w", s.Path, err)
	}

	for id, name := range raw {
		key := schema.CanonicalAccountID(id)
		group, ok := types.ParseBillingGroup(name)
		if key == "" || !ok {
			s.Logger.Warnw("dropping invalid mapping entry", "account", id, "group", name)
			continue
		}
		snapshot[key] = group
	}

	return snapshot, nil
}

// Save writes the whole snapshot. The file is replaced through a temporary
// file in the same directory so a failed write leaves the old file intact.
func (s *FileStore) Save(snapshot Snapshot) error {
	raw := make(map[string]string, len(snapshot))
	for id, group := range snapshot {
		raw[id] = string(group)
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return &PersistenceWarning{Path: s.Path, Err: err}
	}

	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".mappings-*.json")
	if err != nil {
		return &PersistenceWarning{Path: s.Path, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceWarning{Path: s.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceWarning{Path: s.Path, Err: err}
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return &PersistenceWarning{Path: s.Path, Err: err}
	}

	s.Logger.Debugw("mapping saved", "path", s.Path, "accounts", len(snapshot))
	return nil
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore holds the mapping in memory, for callers that must not touch
// the mapping file.
type MemoryStore struct {
	mu       sync.Mutex
	snapshot Snapshot
	saves    int

	// FailSaves makes every Save return a PersistenceWarning.
	FailSaves bool
}

// NewMemoryStore creates a store holding a copy of initial.
func NewMemoryStore(initial Snapshot) *MemoryStore {
	if initial == nil {
		initial = DefaultSeeds()
	}
	return &MemoryStore{snapshot: initial.Clone()}
}

func (m *MemoryStore) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Clone(), nil
}

func (m *MemoryStore) Save(snapshot Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return &PersistenceWarning{Path: "memory", Err: errors.New("saves disabled")}
	}
	m.snapshot = snapshot.Clone()
	m.saves++
	return nil
}

// Saves returns how many successful saves the store has taken.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
