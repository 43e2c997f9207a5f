// Package sqlitestorage implements the storage.Catalog interface using an
// in-memory SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend via composition; the only SQLite-specific concerns
// are creating the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MidnightGrind/ghost/internal/database"
	gormstorage "github.com/MidnightGrind/ghost/internal/storage/gorm"
	"github.com/google/uuid"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite catalog backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db        *gorm.DB
	cfg       Config
	log       *slog.Logger
	stopChan  chan struct{}
	closeOnce sync.Once
}

// New creates a new SQLite catalog backend. Each backend gets its own named
// in-memory database.
func New(cfg Config, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:ghostcat_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := database.GetSqliteDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	gormBackend := gormstorage.New(gormstorage.Dependencies{
		DB:     db,
		Logger: logger,
	})

	return &Backend{
		Backend:  gormBackend,
		db:       db,
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stopChan)
		if b.cfg.DumpPath != "" {
			if dumpErr := b.Export(b.cfg.DumpPath); dumpErr != nil {
				err = dumpErr
			}
		}
		if sqlDB, dbErr := b.db.DB(); dbErr == nil {
			sqlDB.Close()
		}
	})
	return err
}

// Export writes a point-in-time snapshot of the catalog to path.
func (b *Backend) Export(path string) error {
	return database.DumpMemoryDBToDisk(b.db, path)
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Export(b.cfg.DumpPath); err != nil {
				b.log.Error("Error dumping catalog to disk", "error", err)
			} else {
				b.log.Debug("Dumped catalog to disk", "duration", time.Since(start))
			}
		}
	}
}
