// internal/storage/storage.go
package storage

import (
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// Catalog is a queryable mirror of record metadata. The ghost files and the
// index stay authoritative; a catalog can always be rebuilt from them.
type Catalog interface {
	// Lifecycle
	Init() error
	Close() error

	Upsert(e *core.CatalogEntry) error
	Remove(id uuid.UUID) error

	// Queries, ordered by ranking time
	ByTrack(trackID string) ([]core.CatalogEntry, error)
	All() ([]core.CatalogEntry, error)
}

// Exportable is an optional interface for catalogs that can write their
// contents to a file.
type Exportable interface {
	Export(path string) error
}
