// Package gormstorage implements the storage.Catalog interface on top of GORM.
// The sqlite and postgres catalogs embed it and only add connection setup.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNoDB is returned by queries when the backend has no connection.
var ErrNoDB = errors.New("catalog database not initialized")

// Dependencies holds all dependencies for the GORM catalog backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores catalog entries in a relational database.
type Backend struct {
	deps Dependencies
}

// New creates a new GORM catalog backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{deps: deps}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SetDB injects a connection opened after construction.
func (b *Backend) SetDB(db *gorm.DB) {
	b.deps.DB = db
}

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return ErrNoDB
	}

	b.deps.Logger.Info("Migrating catalog schema", "dialect", b.deps.DB.Name())
	if err := b.deps.DB.AutoMigrate(DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close is a no-op; the connection belongs to whoever opened it.
func (b *Backend) Close() error {
	return nil
}

// Upsert inserts the entry or updates the row with the same record id.
// Catalog writes are low volume, so they are synchronous.
func (b *Backend) Upsert(e *core.CatalogEntry) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}

	row := toModel(*e)
	err := b.deps.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "record_id"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", e.RecordID, err)
	}

	// Only one personal best per track.
	if e.PersonalBest {
		err = b.deps.DB.Model(&GhostRecord{}).
			Where("track_id = ? AND record_id <> ?", e.TrackID, row.RecordID).
			Update("personal_best", false).Error
		if err != nil {
			return fmt.Errorf("failed to clear previous personal best: %w", err)
		}
	}
	return nil
}

// Remove deletes the row for id. Removing an unknown id is not an error.
func (b *Backend) Remove(id uuid.UUID) error {
	if b.deps.DB == nil {
		return ErrNoDB
	}
	if err := b.deps.DB.Where("record_id = ?", id.String()).Delete(&GhostRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove record %s: %w", id, err)
	}
	return nil
}

// ByTrack returns every entry on a track, fastest first.
func (b *Backend) ByTrack(trackID string) ([]core.CatalogEntry, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	var rows []GhostRecord
	err := b.deps.DB.Where("track_id = ?", trackID).
		Order("ranking_time ASC").Order("recorded_date ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query track %q: %w", trackID, err)
	}
	return toCoreSlice(rows), nil
}

// All returns every entry ordered by track, then ranking time.
func (b *Backend) All() ([]core.CatalogEntry, error) {
	if b.deps.DB == nil {
		return nil, ErrNoDB
	}
	var rows []GhostRecord
	err := b.deps.DB.Order("track_id ASC").Order("ranking_time ASC").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	return toCoreSlice(rows), nil
}

func toCoreSlice(rows []GhostRecord) []core.CatalogEntry {
	out := make([]core.CatalogEntry, len(rows))
	for i, r := range rows {
		out[i] = toCore(r)
	}
	return out
}
