// internal/storage/memory/memory.go
package memory

import (
	"cmp"
	"slices"
	"sync"

	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// Backend keeps catalog entries in memory and exports them to JSON on close
type Backend struct {
	cfg     config.MemoryConfig
	entries map[uuid.UUID]core.CatalogEntry

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		entries: make(map[uuid.UUID]core.CatalogEntry),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports the catalog when an output directory is configured
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" || len(b.entries) == 0 {
		return nil
	}
	return b.exportJSON("")
}

// Upsert stores the entry, replacing any entry with the same record id
func (b *Backend) Upsert(e *core.CatalogEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e.PersonalBest {
		for id, other := range b.entries {
			if other.TrackID == e.TrackID && other.PersonalBest && id != e.RecordID {
				other.PersonalBest = false
				b.entries[id] = other
			}
		}
	}

	entry := *e
	entry.LapTimes = slices.Clone(e.LapTimes)
	entry.SectorTimes = slices.Clone(e.SectorTimes)
	b.entries[e.RecordID] = entry
	return nil
}

// Remove deletes the entry for id
func (b *Backend) Remove(id uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.entries, id)
	return nil
}

// ByTrack returns the entries for a track, fastest first
func (b *Backend) ByTrack(trackID string) ([]core.CatalogEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.CatalogEntry, 0)
	for _, e := range b.entries {
		if e.TrackID == trackID {
			out = append(out, e)
		}
	}
	sortEntries(out)
	return out, nil
}

// All returns every entry ordered by track, then ranking time
func (b *Backend) All() ([]core.CatalogEntry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.CatalogEntry, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e)
	}
	sortEntries(out)
	return out, nil
}

// Len returns the number of entries
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// LastExportPath returns the path of the most recent export
func (b *Backend) LastExportPath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

func sortEntries(entries []core.CatalogEntry) {
	slices.SortFunc(entries, func(a, b core.CatalogEntry) int {
		return cmp.Or(
			cmp.Compare(a.TrackID, b.TrackID),
			cmp.Compare(a.RankingTime(), b.RankingTime()),
			a.RecordedDate.Compare(b.RecordedDate),
			cmp.Compare(a.RecordID.String(), b.RecordID.String()),
		)
	})
}
