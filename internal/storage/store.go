package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/MidnightGrind/ghost/internal/cache"
	"github.com/MidnightGrind/ghost/internal/codec"
	"github.com/MidnightGrind/ghost/internal/geo"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

// ErrNotFound is returned when a record has neither a cached copy nor a file.
var ErrNotFound = errors.New("record not found")

const (
	recordExt = ".ghost"
	indexName = "ghosts.idx"
)

// Option configures a Store.
type Option func(*Store)

// WithCodec replaces the default codec.
func WithCodec(c *codec.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithCache shares an existing record cache.
func WithCache(c *cache.RecordCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithCatalog mirrors every save and delete into c.
func WithCatalog(c Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// SaveOption configures a single Save.
type SaveOption func(*saveConfig)

type saveConfig struct {
	personalBest bool
}

// AsPersonalBest makes the saved record the personal best for its track.
func AsPersonalBest() SaveOption {
	return func(c *saveConfig) { c.personalBest = true }
}

// Store persists records as one file per record plus an index of known ids and
// per-track personal bests. Loaded records are cached and shared.
type Store struct {
	dir     string
	codec   *codec.Codec
	cache   *cache.RecordCache
	catalog Catalog
	log     *slog.Logger

	mu    sync.Mutex
	ids   map[uuid.UUID]struct{}
	bests map[string]core.PersonalBest

	cacheHits   metric.Int64Counter
	cacheMisses metric.Int64Counter
	saved       metric.Int64Counter
}

// Open creates dir if needed and loads the index. A missing index is an empty
// store; an unreadable one is an error.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:   dir,
		ids:   make(map[uuid.UUID]struct{}),
		bests: make(map[string]core.PersonalBest),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codec == nil {
		s.codec = codec.Default()
	}
	if s.cache == nil {
		s.cache = cache.NewRecordCache()
	}
	if s.log == nil {
		s.log = slog.Default()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	if err := s.initMetrics(); err != nil {
		return nil, err
	}

	if err := s.loadIndex(); err != nil {
		return nil, err
	}

	s.log.Debug("Record store opened", "dir", dir, "records", len(s.ids), "personalBests", len(s.bests))
	return s, nil
}

func (s *Store) initMetrics() error {
	m := meter()

	var err error
	s.cacheHits, err = m.Int64Counter(
		"ghost.store.cache.hits",
		metric.WithDescription("Record loads served from the cache"),
	)
	if err != nil {
		return fmt.Errorf("creating cache hit counter: %w", err)
	}

	s.cacheMisses, err = m.Int64Counter(
		"ghost.store.cache.misses",
		metric.WithDescription("Record loads that read the record file"),
	)
	if err != nil {
		return fmt.Errorf("creating cache miss counter: %w", err)
	}

	s.saved, err = m.Int64Counter(
		"ghost.store.records.saved",
		metric.WithDescription("Records written to disk"),
	)
	if err != nil {
		return fmt.Errorf("creating saved counter: %w", err)
	}
	return nil
}

// Dir returns the directory the store writes to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes rec to its own file and records its id in the index. With
// AsPersonalBest it also becomes its track's personal best.
func (s *Store) Save(rec *core.Record, opts ...SaveOption) error {
	if rec == nil {
		return errors.New("save: nil record")
	}
	cfg := &saveConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	data, err := s.codec.Encode(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}
	if err := writeFileAtomic(s.recordPath(rec.ID), data); err != nil {
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	s.saved.Add(context.Background(), 1)

	s.mu.Lock()
	_, known := s.ids[rec.ID]
	prevBest, hadBest := s.bests[rec.TrackID]
	changed := !known
	s.ids[rec.ID] = struct{}{}
	if cfg.personalBest {
		s.bests[rec.TrackID] = core.PersonalBest{
			TrackID:  rec.TrackID,
			RecordID: rec.ID,
			BestTime: rec.RankingTime(),
		}
		changed = true
	}
	var indexErr error
	if changed {
		indexErr = s.writeIndexLocked()
	}
	if indexErr != nil {
		// Keep memory in step with the index still on disk.
		if !known {
			delete(s.ids, rec.ID)
		}
		if cfg.personalBest {
			if hadBest {
				s.bests[rec.TrackID] = prevBest
			} else {
				delete(s.bests, rec.TrackID)
			}
		}
	}
	isBest := s.bests[rec.TrackID].RecordID == rec.ID
	s.mu.Unlock()

	if indexErr != nil {
		if known {
			s.cache.Delete(rec.ID)
		} else if err := os.Remove(s.recordPath(rec.ID)); err != nil {
			s.log.Warn("Failed to remove unindexed record file", "record", rec.ID, "error", err)
		}
		return fmt.Errorf("failed to write index: %w", indexErr)
	}

	s.cache.Put(rec)
	s.mirror(rec, isBest)
	return nil
}

// Import stores a record obtained elsewhere, such as a download. It never
// touches the personal best table.
func (s *Store) Import(rec *core.Record) error {
	return s.Save(rec)
}

// Load returns the cached record, or reads and decodes its file. A missing
// file yields ErrNotFound; decode failures wrap the codec errors.
func (s *Store) Load(id uuid.UUID) (*core.Record, error) {
	if rec, ok := s.cache.Get(id); ok {
		s.cacheHits.Add(context.Background(), 1)
		return rec, nil
	}
	s.cacheMisses.Add(context.Background(), 1)

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	rec, err := s.codec.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", id, err)
	}

	s.cache.Put(rec)
	return rec, nil
}

// Delete forgets a record: it leaves the cache, the index and any personal
// best entry pointing at it. Removing the file is best effort.
func (s *Store) Delete(id uuid.UUID) error {
	s.cache.Delete(id)

	s.mu.Lock()
	_, known := s.ids[id]
	delete(s.ids, id)
	changed := known
	for track, pb := range s.bests {
		if pb.RecordID == id {
			delete(s.bests, track)
			changed = true
		}
	}
	var indexErr error
	if changed {
		indexErr = s.writeIndexLocked()
	}
	s.mu.Unlock()

	err := os.Remove(s.recordPath(id))
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		if !known {
			return fmt.Errorf("record %s: %w", id, ErrNotFound)
		}
	default:
		s.log.Warn("Failed to remove record file", "record", id, "error", err)
	}

	if s.catalog != nil {
		if err := s.catalog.Remove(id); err != nil {
			s.log.Warn("Failed to remove record from catalog", "record", id, "error", err)
		}
	}

	if indexErr != nil {
		return fmt.Errorf("failed to write index: %w", indexErr)
	}
	return nil
}

// PersonalBestEntry returns the index entry for a track without loading the
// record.
func (s *Store) PersonalBestEntry(trackID string) (core.PersonalBest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.bests[trackID]
	return pb, ok
}

// PersonalBest loads the personal best record for a track.
func (s *Store) PersonalBest(trackID string) (*core.Record, error) {
	pb, ok := s.PersonalBestEntry(trackID)
	if !ok {
		return nil, fmt.Errorf("personal best for %q: %w", trackID, ErrNotFound)
	}
	return s.Load(pb.RecordID)
}

// PersonalBests returns every personal best entry ordered by track.
func (s *Store) PersonalBests() []core.PersonalBest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.PersonalBest, 0, len(s.bests))
	for _, pb := range s.bests {
		out = append(out, pb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TrackID < out[j].TrackID })
	return out
}

// ListByTrack loads every known record on a track, fastest first. Records
// that fail to load are logged and skipped.
func (s *Store) ListByTrack(trackID string) ([]*core.Record, error) {
	var out []*core.Record
	for _, id := range s.IDs() {
		rec, err := s.Load(id)
		if err != nil {
			s.log.Warn("Skipping unreadable record", "record", id, "error", err)
			continue
		}
		if rec.TrackID == trackID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RankingTime() < out[j].RankingTime()
	})
	return out, nil
}

// IDs returns all indexed record ids in a stable order.
func (s *Store) IDs() []uuid.UUID {
	s.mu.Lock()
	ids := make([]uuid.UUID, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Has reports whether id is in the index.
func (s *Store) Has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// SyncCatalog rewrites every loadable record into the catalog and returns how
// many were mirrored.
func (s *Store) SyncCatalog() (int, error) {
	if s.catalog == nil {
		return 0, errors.New("no catalog configured")
	}
	n := 0
	for _, id := range s.IDs() {
		rec, err := s.Load(id)
		if err != nil {
			s.log.Warn("Skipping unreadable record", "record", id, "error", err)
			continue
		}
		pb, _ := s.PersonalBestEntry(rec.TrackID)
		entry := EntryFor(rec, pb.RecordID == rec.ID)
		if err := s.catalog.Upsert(&entry); err != nil {
			return n, fmt.Errorf("failed to mirror record %s: %w", id, err)
		}
		n++
	}
	return n, nil
}

// EntryFor builds the catalog summary of rec.
func EntryFor(rec *core.Record, personalBest bool) core.CatalogEntry {
	return core.CatalogEntry{
		RecordID:     rec.ID,
		TrackID:      rec.TrackID,
		VehicleID:    rec.VehicleID,
		PlayerID:     rec.PlayerID,
		PlayerName:   rec.PlayerName,
		Kind:         rec.Kind,
		TotalTime:    rec.TotalTime,
		BestLapTime:  rec.BestLapTime,
		LapTimes:     rec.LapTimes,
		SectorTimes:  rec.SectorTimes,
		FrameCount:   len(rec.Frames),
		RecordedDate: rec.RecordedDate,
		GameVersion:  rec.GameVersion,
		PersonalBest: personalBest,
		PathLength:   geo.PlanarLength(rec.Frames),
		Trajectory:   geo.TrajectoryWKT(rec),
	}
}

func (s *Store) mirror(rec *core.Record, personalBest bool) {
	if s.catalog == nil {
		return
	}
	entry := EntryFor(rec, personalBest)
	if err := s.catalog.Upsert(&entry); err != nil {
		s.log.Warn("Failed to mirror record into catalog", "record", rec.ID, "error", err)
	}
}

func (s *Store) recordPath(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+recordExt)
}

func (s *Store) indexPath() string {
	return filepath.Join(s.dir, indexName)
}

func (s *Store) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read index: %w", err)
	}

	idx, err := s.codec.DecodeIndex(data)
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}
	for _, id := range idx.IDs {
		s.ids[id] = struct{}{}
	}
	for _, pb := range idx.PersonalBests {
		s.bests[pb.TrackID] = pb
	}
	return nil
}

// writeIndexLocked rewrites the index file. s.mu must be held.
func (s *Store) writeIndexLocked() error {
	idx := codec.Index{
		IDs:           make([]uuid.UUID, 0, len(s.ids)),
		PersonalBests: make([]core.PersonalBest, 0, len(s.bests)),
	}
	for id := range s.ids {
		idx.IDs = append(idx.IDs, id)
	}
	sort.Slice(idx.IDs, func(i, j int) bool { return idx.IDs[i].String() < idx.IDs[j].String() })
	for _, pb := range s.bests {
		idx.PersonalBests = append(idx.PersonalBests, pb)
	}

	data, err := s.codec.EncodeIndex(idx)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.indexPath(), data)
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
