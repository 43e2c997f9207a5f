// Package recorder turns a stream of vehicle samples into finalized ghost
// records. A session is opened per run, fed frames on the tick, and ended or
// cancelled; ending compresses, persists and indexes the record.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/MidnightGrind/ghost/internal/codec"
	"github.com/MidnightGrind/ghost/internal/compress"
	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/events"
	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrSessionUnknown = errors.New("recording session not found")
	ErrInvalidSector  = errors.New("sector index must not be negative")
)

// Store is the part of the record store the recorder needs.
type Store interface {
	Save(rec *core.Record, opts ...storage.SaveOption) error
	PersonalBestEntry(trackID string) (core.PersonalBest, bool)
}

// Emitter receives recorder events. *events.Bus satisfies it.
type Emitter interface {
	Emit(e events.Event)
}

// Dependencies holds all dependencies for the recorder.
type Dependencies struct {
	Store         Store
	Events        Emitter // optional
	Logger        *slog.Logger
	Compressor    compress.Compressor
	FormatVersion uint32
}

// BeginOption sets optional metadata on a new recording.
type BeginOption func(*core.Record)

// WithPlayerName sets the display name stored with the record.
func WithPlayerName(name string) BeginOption {
	return func(r *core.Record) { r.PlayerName = name }
}

type session struct {
	record *core.Record
}

// Recorder owns the in-progress recording sessions.
type Recorder struct {
	deps        Dependencies
	cfg         config.RecorderConfig
	minInterval float32

	mu       sync.Mutex
	sessions map[uuid.UUID]*session

	kept    metric.Int64Counter
	dropped metric.Int64Counter
}

// New creates a recorder. A zero Compressor uses the default thresholds.
func New(cfg config.RecorderConfig, deps Dependencies) (*Recorder, error) {
	if deps.Store == nil {
		return nil, errors.New("recorder: store is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Compressor == (compress.Compressor{}) {
		deps.Compressor = compress.Default()
	}
	if deps.FormatVersion == 0 {
		deps.FormatVersion = codec.CurrentVersion
	}

	r := &Recorder{
		deps:        deps,
		cfg:         cfg,
		minInterval: float32(cfg.MinSampleInterval.Seconds()),
		sessions:    make(map[uuid.UUID]*session),
	}

	m := meter()
	var err error
	r.kept, err = m.Int64Counter(
		"ghost.recorder.frames.kept",
		metric.WithDescription("Frames appended to a recording"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating kept counter: %w", err)
	}
	r.dropped, err = m.Int64Counter(
		"ghost.recorder.frames.throttled",
		metric.WithDescription("Frames skipped by the sample interval"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating throttled counter: %w", err)
	}

	return r, nil
}

// Begin opens a new session and returns its id. The session id is not the
// record id.
func (r *Recorder) Begin(trackID, vehicleID, playerID string, opts ...BeginOption) uuid.UUID {
	rec := &core.Record{
		ID:           uuid.New(),
		TrackID:      trackID,
		VehicleID:    vehicleID,
		PlayerID:     playerID,
		Kind:         core.KindPersonal,
		RecordedDate: time.Now().UTC(),
		GameVersion:  r.cfg.GameVersion,
	}
	for _, opt := range opts {
		opt(rec)
	}

	sessionID := uuid.New()
	r.mu.Lock()
	r.sessions[sessionID] = &session{record: rec}
	r.mu.Unlock()

	r.deps.Logger.Debug("Recording started", "session", sessionID, "record", rec.ID, "track", trackID, "vehicle", vehicleID)
	r.emit(events.Event{
		Kind:      events.RecordingStarted,
		SessionID: sessionID,
		RecordID:  rec.ID,
		TrackID:   trackID,
	})
	return sessionID
}

// Ingest appends frame when it is the first one, or strictly later than the
// last kept frame and at least the minimum sample interval after it. Unknown
// sessions are ignored.
// It reports whether the frame was kept.
func (r *Recorder) Ingest(sessionID uuid.UUID, frame core.Frame) bool {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	frames := s.record.Frames
	keep := len(frames) == 0
	if !keep {
		last := frames[len(frames)-1].Timestamp
		keep = frame.Timestamp > last && frame.Timestamp-last >= r.minInterval
	}
	if keep {
		s.record.Frames = append(frames, frame)
	}
	r.mu.Unlock()

	if keep {
		r.kept.Add(context.Background(), 1)
	} else {
		r.dropped.Add(context.Background(), 1)
	}
	return keep
}

// MarkLap appends a completed lap time.
func (r *Recorder) MarkLap(sessionID uuid.UUID, lapTime float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("mark lap %s: %w", sessionID, ErrSessionUnknown)
	}
	rec := s.record
	rec.LapTimes = append(rec.LapTimes, lapTime)
	if rec.BestLapTime == 0 || lapTime < rec.BestLapTime {
		rec.BestLapTime = lapTime
	}
	return nil
}

// MarkSector sets the split for sector index, growing the list with zeros
// when sectors are skipped.
func (r *Recorder) MarkSector(sessionID uuid.UUID, index int, sectorTime float32) error {
	if index < 0 {
		return fmt.Errorf("mark sector %d: %w", index, ErrInvalidSector)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("mark sector %s: %w", sessionID, ErrSessionUnknown)
	}
	rec := s.record
	if len(rec.SectorTimes) <= index {
		rec.SectorTimes = append(rec.SectorTimes, make([]float32, index+1-len(rec.SectorTimes))...)
	}
	rec.SectorTimes[index] = sectorTime
	return nil
}

// End finalizes the session's record, persists it and closes the session.
// When persisting fails the session is still closed and the finalized record
// is returned together with the error.
func (r *Recorder) End(sessionID uuid.UUID) (*core.Record, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("end %s: %w", sessionID, ErrSessionUnknown)
	}

	rec := s.record
	if last, ok := rec.LastFrame(); ok {
		rec.TotalTime = last.Timestamp
	} else {
		rec.TotalTime = 0
	}
	if r.cfg.Compress {
		rec.Frames = r.deps.Compressor.Compress(rec.Frames)
		rec.CompressedFrameCount = uint32(len(rec.Frames))
	}
	rec.Validated = true
	rec.FormatVersion = r.deps.FormatVersion

	promote := r.cfg.AutoPersonalBest && r.beatsPersonalBest(rec)
	var opts []storage.SaveOption
	if promote {
		opts = append(opts, storage.AsPersonalBest())
	}

	if err := r.deps.Store.Save(rec, opts...); err != nil {
		r.deps.Logger.Error("Failed to persist recording", "session", sessionID, "record", rec.ID, "error", err)
		err = fmt.Errorf("failed to persist record %s: %w", rec.ID, err)
		r.emit(events.Event{
			Kind:      events.RecordingCompleted,
			SessionID: sessionID,
			RecordID:  rec.ID,
			TrackID:   rec.TrackID,
			Record:    rec,
			Err:       err,
		})
		return rec, err
	}

	r.deps.Logger.Info("Recording completed",
		"record", rec.ID,
		"track", rec.TrackID,
		"frames", len(rec.Frames),
		"totalTime", rec.TotalTime,
		"personalBest", promote,
	)

	if promote {
		r.emit(events.Event{
			Kind:      events.NewPersonalBest,
			SessionID: sessionID,
			RecordID:  rec.ID,
			TrackID:   rec.TrackID,
			Record:    rec,
		})
	}
	r.emit(events.Event{
		Kind:      events.RecordingCompleted,
		SessionID: sessionID,
		RecordID:  rec.ID,
		TrackID:   rec.TrackID,
		Record:    rec,
		Payload:   promote,
	})
	return rec, nil
}

// Cancel discards the session without persisting anything.
func (r *Recorder) Cancel(sessionID uuid.UUID) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel %s: %w", sessionID, ErrSessionUnknown)
	}

	r.deps.Logger.Debug("Recording cancelled", "session", sessionID, "record", s.record.ID)
	r.emit(events.Event{
		Kind:      events.RecordingCancelled,
		SessionID: sessionID,
		RecordID:  s.record.ID,
		TrackID:   s.record.TrackID,
	})
	return nil
}

// Active returns the ids of all open sessions.
func (r *Recorder) Active() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return ids
}

// IsRecording reports whether any session is open.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions) > 0
}

// FrameCount returns the number of frames kept so far in a session.
func (r *Recorder) FrameCount(sessionID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, fmt.Errorf("frame count %s: %w", sessionID, ErrSessionUnknown)
	}
	return len(s.record.Frames), nil
}

// beatsPersonalBest reports whether rec is eligible and strictly faster than
// the indexed personal best for its track.
func (r *Recorder) beatsPersonalBest(rec *core.Record) bool {
	if !rec.EligibleForPersonalBest() {
		return false
	}
	best, ok := r.deps.Store.PersonalBestEntry(rec.TrackID)
	if !ok {
		return true
	}
	return rec.RankingTime() < best.BestTime
}

func (r *Recorder) emit(e events.Event) {
	if r.deps.Events == nil {
		return
	}
	r.deps.Events.Emit(e)
}
