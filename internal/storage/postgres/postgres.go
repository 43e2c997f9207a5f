// Package postgres implements the storage.Catalog interface on PostgreSQL.
// Upserts are queued and written by a background goroutine; reads flush the
// queue first so callers always see their own writes.
package postgres

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/database"
	"github.com/MidnightGrind/ghost/internal/queue"
	gormstorage "github.com/MidnightGrind/ghost/internal/storage/gorm"
	"github.com/MidnightGrind/ghost/pkg/core"

	"gorm.io/gorm"
)

const flushInterval = 2 * time.Second

// Dependencies holds all dependencies for the Postgres catalog backend.
type Dependencies struct {
	DB     *gorm.DB // optional; a connection is opened from Config when nil
	Config config.PostgresConfig
	Logger *slog.Logger
}

// Backend wraps the GORM backend with a connection to Postgres and a write queue.
type Backend struct {
	*gormstorage.Backend
	deps    Dependencies
	pending *queue.Queue[core.CatalogEntry]

	flushMu   sync.Mutex
	stopChan  chan struct{}
	closeOnce sync.Once
}

// New creates a new Postgres catalog backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: deps.DB, Logger: deps.Logger}),
		deps:    deps,
		pending: queue.New[core.CatalogEntry](),
	}
}

// Init connects if needed, migrates the schema and starts the writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, err := database.GetPostgresDB(b.deps.Config)
		if err != nil {
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("failed to access sql interface: %w", err)
		}
		if err = sqlDB.Ping(); err != nil {
			return fmt.Errorf("failed to validate connection: %w", err)
		}
		sqlDB.SetMaxOpenConns(10)
		b.deps.DB = db
		b.Backend.SetDB(db)
	}

	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	go b.writerLoop()
	return nil
}

// Close stops the writer and flushes anything still queued.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		if b.stopChan != nil {
			close(b.stopChan)
		}
		err = b.flush()
	})
	return err
}

// Upsert queues the entry for the writer goroutine.
func (b *Backend) Upsert(e *core.CatalogEntry) error {
	b.pending.Push(*e)
	return nil
}

// Pending returns the number of queued, unwritten entries.
func (b *Backend) Pending() int {
	return b.pending.Len()
}

// ByTrack flushes queued writes and queries the track.
func (b *Backend) ByTrack(trackID string) ([]core.CatalogEntry, error) {
	if err := b.flush(); err != nil {
		return nil, err
	}
	return b.Backend.ByTrack(trackID)
}

// All flushes queued writes and returns every entry.
func (b *Backend) All() ([]core.CatalogEntry, error) {
	if err := b.flush(); err != nil {
		return nil, err
	}
	return b.Backend.All()
}

// flush writes queued entries in order. On failure the unwritten entries are
// put back for the next attempt.
func (b *Backend) flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	if b.Backend.DB() == nil {
		return nil
	}

	items := b.pending.GetAndEmpty()
	for i := range items {
		if err := b.Backend.Upsert(&items[i]); err != nil {
			b.pending.Push(items[i:]...)
			return err
		}
	}
	return nil
}

// writerLoop periodically drains the queue into the database.
func (b *Backend) writerLoop() {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.flush(); err != nil {
				b.deps.Logger.Error("Error writing catalog entries", "error", err, "pending", b.pending.Len())
			}
		}
	}
}
