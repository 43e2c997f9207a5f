package cache

import (
	"sync"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// RecordCache holds finalized records by id to avoid repeated disk reads and
// decodes. Records are immutable once cached, so the same pointer is handed to
// every caller.
type RecordCache struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*core.Record
}

// NewRecordCache creates an empty RecordCache
func NewRecordCache() *RecordCache {
	return &RecordCache{
		records: make(map[uuid.UUID]*core.Record),
	}
}

// Get retrieves a record by id
func (c *RecordCache) Get(id uuid.UUID) (*core.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[id]
	return rec, ok
}

// Put stores rec under its own id. Nil records are ignored.
func (c *RecordCache) Put(rec *core.Record) {
	if rec == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[rec.ID] = rec
}

// Delete removes a record by id
func (c *RecordCache) Delete(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.records, id)
}

// Len returns the number of cached records
func (c *RecordCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Reset clears all records from the cache
func (c *RecordCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[uuid.UUID]*core.Record)
}
