package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MidnightGrind/ghost/internal/codec"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	entries map[uuid.UUID]core.CatalogEntry
	failing bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{entries: make(map[uuid.UUID]core.CatalogEntry)}
}

func (c *fakeCatalog) Init() error  { return nil }
func (c *fakeCatalog) Close() error { return nil }

func (c *fakeCatalog) Upsert(e *core.CatalogEntry) error {
	if c.failing {
		return errors.New("catalog down")
	}
	c.entries[e.RecordID] = *e
	return nil
}

func (c *fakeCatalog) Remove(id uuid.UUID) error {
	delete(c.entries, id)
	return nil
}

func (c *fakeCatalog) ByTrack(trackID string) ([]core.CatalogEntry, error) {
	var out []core.CatalogEntry
	for _, e := range c.entries {
		if e.TrackID == trackID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (c *fakeCatalog) All() ([]core.CatalogEntry, error) {
	var out []core.CatalogEntry
	for _, e := range c.entries {
		out = append(out, e)
	}
	return out, nil
}

func newRecord(track string, total float32) *core.Record {
	return &core.Record{
		ID:         uuid.New(),
		TrackID:    track,
		VehicleID:  "kaze_gt",
		PlayerID:   "p-1",
		PlayerName: "Nightrunner",
		Frames: []core.Frame{
			{Timestamp: 0, Position: core.Vec3{X: 0}},
			{Timestamp: total, Position: core.Vec3{X: 100}},
		},
		TotalTime:     total,
		RecordedDate:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
		GameVersion:   "1.0.0",
		FormatVersion: codec.CurrentVersion,
		Validated:     true,
	}
}

func openStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(dir, opts...)
	require.NoError(t, err)
	return s
}

func TestOpen_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "ghosts")
	s := openStore(t, dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Empty(t, s.IDs())
}

func TestOpen_CorruptIndex(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexName), []byte{1, 0, 0, 0, 5}, 0o644))

	_, err := Open(dir)
	assert.ErrorIs(t, err, codec.ErrTruncated)
}

func TestSaveAndLoad_FromCache(t *testing.T) {
	s := openStore(t, t.TempDir())
	rec := newRecord("harbor_loop", 62.5)

	require.NoError(t, s.Save(rec))

	got, err := s.Load(rec.ID)
	require.NoError(t, err)
	assert.Same(t, rec, got)
	assert.True(t, s.Has(rec.ID))
}

func TestSaveAndLoad_FromDisk(t *testing.T) {
	dir := t.TempDir()
	rec := newRecord("harbor_loop", 62.5)
	require.NoError(t, openStore(t, dir).Save(rec))

	reopened := openStore(t, dir)
	assert.True(t, reopened.Has(rec.ID), "index survives reopen")

	got, err := reopened.Load(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.NotSame(t, rec, got)

	again, err := reopened.Load(rec.ID)
	require.NoError(t, err)
	assert.Same(t, got, again, "second load is served from the cache")
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	require.NoError(t, s.Save(newRecord("harbor_loop", 60), AsPersonalBest()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
	assert.Len(t, entries, 2, "one record file and the index")
}

func TestLoad_NotFound(t *testing.T) {
	s := openStore(t, t.TempDir())
	_, err := s.Load(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_VersionMismatch(t *testing.T) {
	dir := t.TempDir()
	rec := newRecord("harbor_loop", 60)
	require.NoError(t, openStore(t, dir, WithCodec(codec.New(1))).Save(rec))

	// Reading the same files with a newer codec fails at the index first.
	_, err := Open(dir, WithCodec(codec.New(2)))
	assert.ErrorIs(t, err, codec.ErrVersionMismatch)

	require.NoError(t, os.Remove(filepath.Join(dir, indexName)))
	s := openStore(t, dir, WithCodec(codec.New(2)))
	_, err = s.Load(rec.ID)
	assert.ErrorIs(t, err, codec.ErrVersionMismatch)
}

func TestLoad_Truncated(t *testing.T) {
	dir := t.TempDir()
	rec := newRecord("harbor_loop", 60)
	require.NoError(t, openStore(t, dir).Save(rec))

	path := filepath.Join(dir, rec.ID.String()+recordExt)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-10], 0o644))

	_, err = openStore(t, dir).Load(rec.ID)
	assert.ErrorIs(t, err, codec.ErrTruncated)
}

func TestPersonalBest(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)

	_, err := s.PersonalBest("harbor_loop")
	assert.ErrorIs(t, err, ErrNotFound)

	rec := newRecord("harbor_loop", 60)
	rec.BestLapTime = 20
	require.NoError(t, s.Save(rec, AsPersonalBest()))

	pb, ok := s.PersonalBestEntry("harbor_loop")
	require.True(t, ok)
	assert.Equal(t, rec.ID, pb.RecordID)
	assert.Equal(t, float32(20), pb.BestTime)

	got, err := openStore(t, dir).PersonalBest("harbor_loop")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
}

func TestSave_WithoutPersonalBestKeepsEntry(t *testing.T) {
	s := openStore(t, t.TempDir())
	best := newRecord("harbor_loop", 60)
	require.NoError(t, s.Save(best, AsPersonalBest()))
	require.NoError(t, s.Save(newRecord("harbor_loop", 50)))

	pb, ok := s.PersonalBestEntry("harbor_loop")
	require.True(t, ok)
	assert.Equal(t, best.ID, pb.RecordID)
}

func TestSave_IndexFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	best := newRecord("harbor_loop", 60)
	require.NoError(t, s.Save(best, AsPersonalBest()))

	// A directory at the index path makes the rename into place fail.
	require.NoError(t, os.Remove(filepath.Join(dir, indexName)))
	require.NoError(t, os.Mkdir(filepath.Join(dir, indexName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexName, "keep"), nil, 0o644))

	faster := newRecord("harbor_loop", 50)
	assert.Error(t, s.Save(faster, AsPersonalBest()))

	assert.False(t, s.Has(faster.ID))
	pb, ok := s.PersonalBestEntry("harbor_loop")
	require.True(t, ok)
	assert.Equal(t, best.ID, pb.RecordID)
	_, err := os.Stat(filepath.Join(dir, faster.ID.String()+recordExt))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	fresh := newRecord("canyon_run", 40)
	assert.Error(t, s.Save(fresh, AsPersonalBest()))
	_, ok = s.PersonalBestEntry("canyon_run")
	assert.False(t, ok)
}

func TestImport_NeverSetsPersonalBest(t *testing.T) {
	s := openStore(t, t.TempDir())
	rec := newRecord("harbor_loop", 40)
	rec.Kind = core.KindWorldRecord

	require.NoError(t, s.Import(rec))

	_, ok := s.PersonalBestEntry("harbor_loop")
	assert.False(t, ok)
	assert.True(t, s.Has(rec.ID))
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	rec := newRecord("harbor_loop", 60)
	require.NoError(t, s.Save(rec, AsPersonalBest()))

	require.NoError(t, s.Delete(rec.ID))

	assert.False(t, s.Has(rec.ID))
	_, ok := s.PersonalBestEntry("harbor_loop")
	assert.False(t, ok, "personal best pointing at the record is dropped")
	_, err := s.Load(rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	reopened := openStore(t, dir)
	assert.False(t, reopened.Has(rec.ID))

	assert.ErrorIs(t, s.Delete(uuid.New()), ErrNotFound)
}

func TestDelete_MissingFileIsBestEffort(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	rec := newRecord("harbor_loop", 60)
	require.NoError(t, s.Save(rec))
	require.NoError(t, os.Remove(filepath.Join(dir, rec.ID.String()+recordExt)))

	assert.NoError(t, s.Delete(rec.ID))
	assert.False(t, s.Has(rec.ID))
}

func TestListByTrack(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)

	slow := newRecord("harbor_loop", 70)
	fast := newRecord("harbor_loop", 55)
	other := newRecord("canyon_run", 30)
	broken := newRecord("harbor_loop", 10)
	for _, r := range []*core.Record{slow, fast, other, broken} {
		require.NoError(t, s.Save(r))
	}

	path := filepath.Join(dir, broken.ID.String()+recordExt)
	require.NoError(t, os.WriteFile(path, []byte{1, 0}, 0o644))

	list, err := openStore(t, dir).ListByTrack("harbor_loop")
	require.NoError(t, err)
	require.Len(t, list, 2, "corrupt record is skipped")
	assert.Equal(t, fast.ID, list[0].ID)
	assert.Equal(t, slow.ID, list[1].ID)
}

func TestCatalogMirror(t *testing.T) {
	cat := newFakeCatalog()
	s := openStore(t, t.TempDir(), WithCatalog(cat))

	rec := newRecord("harbor_loop", 60)
	require.NoError(t, s.Save(rec, AsPersonalBest()))

	entry, ok := cat.entries[rec.ID]
	require.True(t, ok)
	assert.True(t, entry.PersonalBest)
	assert.Equal(t, 2, entry.FrameCount)
	assert.InDelta(t, 100, entry.PathLength, 1e-9)
	assert.NotEmpty(t, entry.Trajectory)

	require.NoError(t, s.Delete(rec.ID))
	assert.Empty(t, cat.entries)
}

func TestCatalogFailureDoesNotFailSave(t *testing.T) {
	cat := newFakeCatalog()
	cat.failing = true
	s := openStore(t, t.TempDir(), WithCatalog(cat))

	assert.NoError(t, s.Save(newRecord("harbor_loop", 60)))
}

func TestSyncCatalog(t *testing.T) {
	dir := t.TempDir()
	s := openStore(t, dir)
	require.NoError(t, s.Save(newRecord("harbor_loop", 60)))
	require.NoError(t, s.Save(newRecord("canyon_run", 80), AsPersonalBest()))

	_, err := s.SyncCatalog()
	assert.Error(t, err, "no catalog configured")

	cat := newFakeCatalog()
	n, err := openStore(t, dir, WithCatalog(cat)).SyncCatalog()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	canyon, err := cat.ByTrack("canyon_run")
	require.NoError(t, err)
	require.Len(t, canyon, 1)
	assert.True(t, canyon[0].PersonalBest)
}
