package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Compile-time interface checks
var (
	_ storage.Catalog    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

func TestBackends_AreIsolated(t *testing.T) {
	a, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, a.Init())
	t.Cleanup(func() { a.Close() })

	b, err := New(Config{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { b.Close() })

	e := core.CatalogEntry{RecordID: uuid.New(), TrackID: "harbor_loop", TotalTime: 60}
	require.NoError(t, a.Upsert(&e))

	got, err := b.ByTrack("harbor_loop")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExportAndCloseDump(t *testing.T) {
	dir := t.TempDir()
	dump := filepath.Join(dir, "catalog.db")

	b, err := New(Config{DumpPath: dump, DumpInterval: time.Hour}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())

	e := core.CatalogEntry{RecordID: uuid.New(), TrackID: "harbor_loop", TotalTime: 60}
	require.NoError(t, b.Upsert(&e))

	snapshot := filepath.Join(dir, "snapshot.db")
	require.NoError(t, b.Export(snapshot))
	info, err := os.Stat(snapshot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "second close is a no-op")

	_, err = os.Stat(dump)
	assert.NoError(t, err, "close writes a final dump")
}
