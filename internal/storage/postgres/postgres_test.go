package postgres

import (
	"testing"

	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Compile-time interface check
var _ storage.Catalog = (*Backend)(nil)

// newTestDB creates an in-memory SQLite DB standing in for Postgres.
// MaxOpenConns=1 ensures all operations use the same connection (in-memory
// SQLite databases are per-connection, so multiple connections would each
// see an empty database).
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestNew(t *testing.T) {
	b := New(Dependencies{})
	require.NotNil(t, b)
	assert.Equal(t, 0, b.Pending())
}

func TestInitClose(t *testing.T) {
	b := New(Dependencies{DB: newTestDB(t)})

	require.NoError(t, b.Init())
	require.NotNil(t, b.stopChan)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestUpsert_QueuedUntilRead(t *testing.T) {
	b := New(Dependencies{DB: newTestDB(t)})
	require.NoError(t, b.Init())
	defer func() { require.NoError(t, b.Close()) }()

	e := core.CatalogEntry{RecordID: uuid.New(), TrackID: "harbor_loop", TotalTime: 60}
	require.NoError(t, b.Upsert(&e))
	assert.Equal(t, 1, b.Pending())

	got, err := b.ByTrack("harbor_loop")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, e.RecordID, got[0].RecordID)
	assert.Equal(t, 0, b.Pending())
}

func TestClose_FlushesPending(t *testing.T) {
	db := newTestDB(t)
	b := New(Dependencies{DB: db})
	require.NoError(t, b.Init())

	for i := 0; i < 3; i++ {
		e := core.CatalogEntry{RecordID: uuid.New(), TrackID: "canyon_run", TotalTime: float32(50 + i)}
		require.NoError(t, b.Upsert(&e))
	}
	require.NoError(t, b.Close())

	var count int64
	require.NoError(t, db.Table("ghost_records").Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestRemove_AfterFlush(t *testing.T) {
	b := New(Dependencies{DB: newTestDB(t)})
	require.NoError(t, b.Init())
	defer func() { require.NoError(t, b.Close()) }()

	e := core.CatalogEntry{RecordID: uuid.New(), TrackID: "harbor_loop", TotalTime: 60}
	require.NoError(t, b.Upsert(&e))
	_, err := b.All()
	require.NoError(t, err)

	require.NoError(t, b.Remove(e.RecordID))
	all, err := b.All()
	require.NoError(t, err)
	assert.Empty(t, all)
}
