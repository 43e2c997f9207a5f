// Package ghost ties recording, storage, playback, comparison and the remote
// leaderboard together behind one tick-driven Subsystem. Every method except
// LogContext must be called from the goroutine that calls Tick.
package ghost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MidnightGrind/ghost/internal/compare"
	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/events"
	"github.com/MidnightGrind/ghost/internal/livefeed"
	"github.com/MidnightGrind/ghost/internal/playback"
	"github.com/MidnightGrind/ghost/internal/recorder"
	"github.com/MidnightGrind/ghost/internal/remote"
	"github.com/MidnightGrind/ghost/internal/storage"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/MidnightGrind/ghost/pkg/streaming"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
)

var (
	// ErrTooManyGhosts is returned when MaxGhostsOnTrack cursors are already active.
	ErrTooManyGhosts = errors.New("too many ghosts on track")
	// ErrRemoteDisabled is returned by remote operations when no exchange is configured.
	ErrRemoteDisabled = errors.New("remote leaderboard not configured")
	// ErrNoRival is returned when a leaderboard has no entry at the requested rank.
	ErrNoRival = errors.New("no leaderboard entry at rank")
)

// Dependencies holds all dependencies for the subsystem. Exchange, Feed and
// Events are optional.
type Dependencies struct {
	Recorder *recorder.Recorder
	Store    *storage.Store
	Engine   *playback.Engine
	Events   *events.Bus
	Exchange *remote.Exchange
	Feed     *livefeed.Feed
	Logger   *slog.Logger
}

type comparison struct {
	player uuid.UUID // uuid.Nil compares the live feed
	rival  uuid.UUID
	result compare.Result
	valid  bool
}

// Subsystem is the ghost replay front end.
type Subsystem struct {
	cfg  config.PlaybackConfig
	deps Dependencies
	log  *slog.Logger

	leaderboards map[string][]core.LeaderboardEntry
	worldRecords map[string]*core.Record

	comparing bool
	comp      comparison

	liveSession uuid.UUID
	lastLive    *compare.LiveSample

	tickDuration metric.Float64Histogram
}

// New creates a subsystem. Recorder, Store and Engine are required.
func New(cfg config.PlaybackConfig, deps Dependencies) (*Subsystem, error) {
	if deps.Recorder == nil || deps.Store == nil || deps.Engine == nil {
		return nil, errors.New("ghost: recorder, store and engine are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	s := &Subsystem{
		cfg:          cfg,
		deps:         deps,
		log:          deps.Logger,
		leaderboards: make(map[string][]core.LeaderboardEntry),
		worldRecords: make(map[string]*core.Record),
	}

	var err error
	s.tickDuration, err = meter().Float64Histogram(
		"ghost.tick.duration",
		metric.WithDescription("Time spent in one subsystem tick"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick histogram: %w", err)
	}
	return s, nil
}

// Recording

// BeginRecording opens a recording session.
func (s *Subsystem) BeginRecording(trackID, vehicleID, playerID string, opts ...recorder.BeginOption) uuid.UUID {
	return s.deps.Recorder.Begin(trackID, vehicleID, playerID, opts...)
}

// RecordFrame offers a frame to a session. It reports whether the frame was kept.
func (s *Subsystem) RecordFrame(sessionID uuid.UUID, frame core.Frame) bool {
	return s.deps.Recorder.Ingest(sessionID, frame)
}

// MarkLap records a completed lap time.
func (s *Subsystem) MarkLap(sessionID uuid.UUID, lapTime float32) error {
	return s.deps.Recorder.MarkLap(sessionID, lapTime)
}

// MarkSector records a sector split.
func (s *Subsystem) MarkSector(sessionID uuid.UUID, index int, sectorTime float32) error {
	return s.deps.Recorder.MarkSector(sessionID, index, sectorTime)
}

// StopRecording finalizes and persists a session. A session bound to the
// live feed is unbound.
func (s *Subsystem) StopRecording(sessionID uuid.UUID) (*core.Record, error) {
	if s.liveSession == sessionID {
		s.liveSession = uuid.Nil
	}
	return s.deps.Recorder.End(sessionID)
}

// CancelRecording discards a session.
func (s *Subsystem) CancelRecording(sessionID uuid.UUID) error {
	if s.liveSession == sessionID {
		s.liveSession = uuid.Nil
	}
	return s.deps.Recorder.Cancel(sessionID)
}

// IsRecording reports whether any session is open.
func (s *Subsystem) IsRecording() bool {
	return s.deps.Recorder.IsRecording()
}

// BindLiveSession routes live feed samples into a recording session on each
// tick. uuid.Nil unbinds.
func (s *Subsystem) BindLiveSession(sessionID uuid.UUID) {
	s.liveSession = sessionID
}

// Playback

// StartPlayback creates a cursor for rec. Looping is on when the config
// says so unless opts override it.
func (s *Subsystem) StartPlayback(rec *core.Record, opts ...playback.Option) (uuid.UUID, error) {
	if s.cfg.MaxGhostsOnTrack > 0 && s.deps.Engine.Len() >= s.cfg.MaxGhostsOnTrack {
		return uuid.Nil, fmt.Errorf("%w: limit %d", ErrTooManyGhosts, s.cfg.MaxGhostsOnTrack)
	}
	if s.cfg.DefaultLooping {
		opts = append([]playback.Option{playback.Looping()}, opts...)
	}
	c, err := s.deps.Engine.Create(rec, opts...)
	if err != nil {
		return uuid.Nil, err
	}
	return c.ID(), nil
}

// StopPlayback removes a cursor.
func (s *Subsystem) StopPlayback(id uuid.UUID) error {
	return s.deps.Engine.Remove(id)
}

// PausePlayback freezes a cursor.
func (s *Subsystem) PausePlayback(id uuid.UUID) error {
	return s.withCursor(id, (*playback.Cursor).Pause)
}

// ResumePlayback resumes a paused cursor.
func (s *Subsystem) ResumePlayback(id uuid.UUID) error {
	return s.withCursor(id, (*playback.Cursor).Resume)
}

// SeekPlayback moves a cursor to t, clamped to the record.
func (s *Subsystem) SeekPlayback(id uuid.UUID, t float32) error {
	return s.withCursor(id, func(c *playback.Cursor) { c.Seek(t) })
}

// SetPlaybackSpeed sets a cursor's speed, clamped to [MinSpeed, MaxSpeed].
func (s *Subsystem) SetPlaybackSpeed(id uuid.UUID, speed float32) error {
	return s.withCursor(id, func(c *playback.Cursor) { c.SetSpeed(speed) })
}

// SetLooping turns looping on or off for a cursor.
func (s *Subsystem) SetLooping(id uuid.UUID, loop bool) error {
	return s.withCursor(id, func(c *playback.Cursor) { c.SetLooping(loop) })
}

// CurrentFrame returns the interpolated frame at a cursor's current time.
func (s *Subsystem) CurrentFrame(id uuid.UUID) (core.Frame, error) {
	c, err := s.deps.Engine.Get(id)
	if err != nil {
		return core.Frame{}, err
	}
	return c.Sample(), nil
}

// ActiveGhosts returns the live cursors in creation order.
func (s *Subsystem) ActiveGhosts() []*playback.Cursor {
	return s.deps.Engine.Cursors()
}

// ClearActiveGhosts removes every cursor and stops the comparison.
func (s *Subsystem) ClearActiveGhosts() {
	s.deps.Engine.Clear()
	s.StopComparison()
}

func (s *Subsystem) withCursor(id uuid.UUID, fn func(*playback.Cursor)) error {
	c, err := s.deps.Engine.Get(id)
	if err != nil {
		return err
	}
	fn(c)
	return nil
}

// Comparison

// StartComparison compares two cursors on every tick, player against rival.
func (s *Subsystem) StartComparison(player, rival uuid.UUID) {
	s.comparing = true
	s.comp = comparison{player: player, rival: rival}
}

// StartLiveComparison compares the live feed against a rival cursor on every tick.
func (s *Subsystem) StartLiveComparison(rival uuid.UUID) {
	s.StartComparison(uuid.Nil, rival)
}

// StopComparison ends the active comparison.
func (s *Subsystem) StopComparison() {
	s.comparing = false
	s.comp = comparison{}
}

// Comparison returns the latest result. ok is false until a tick has
// compared both sides.
func (s *Subsystem) Comparison() (compare.Result, bool) {
	if !s.comparing || !s.comp.valid {
		return compare.Result{}, false
	}
	return s.comp.result, true
}

func (s *Subsystem) updateComparison() {
	rival, err := s.deps.Engine.Get(s.comp.rival)
	if err != nil {
		return
	}

	var result compare.Result
	if s.comp.player == uuid.Nil {
		if s.lastLive == nil {
			return
		}
		result = compare.CompareLive(*s.lastLive, rival)
	} else {
		player, err := s.deps.Engine.Get(s.comp.player)
		if err != nil {
			return
		}
		result = compare.Compare(player, rival)
	}

	s.comp.result = result
	s.comp.valid = true
	s.emit(events.Event{
		Kind:     events.ComparisonUpdated,
		CursorID: s.comp.rival,
		RecordID: rival.Record().ID,
		TrackID:  rival.Record().TrackID,
		Payload:  result,
	})
}

// Racing

// RacePersonalBest starts playback of the stored personal best for a track.
func (s *Subsystem) RacePersonalBest(trackID string) (uuid.UUID, error) {
	rec, err := s.deps.Store.PersonalBest(trackID)
	if err != nil {
		return uuid.Nil, err
	}
	return s.StartPlayback(rec)
}

// RaceWorldRecord starts playback of a track's world record. A cached record
// starts immediately; otherwise the top leaderboard entry is fetched and
// downloaded first. done runs on the tick goroutine and may be nil.
func (s *Subsystem) RaceWorldRecord(trackID string, done func(uuid.UUID, error)) {
	done = orNop(done)

	if rec, ok := s.worldRecords[trackID]; ok {
		done(s.StartPlayback(rec))
		return
	}

	err := s.FetchLeaderboard(trackID, 0, 1, func(entries []core.LeaderboardEntry, err error) {
		if err != nil {
			done(uuid.Nil, err)
			return
		}
		if len(entries) == 0 {
			done(uuid.Nil, fmt.Errorf("%w: track %q rank 0", ErrNoRival, trackID))
			return
		}
		s.fetchGhost(entries[0].RecordID, func(rec *core.Record, err error) {
			if err != nil {
				done(uuid.Nil, err)
				return
			}
			wr := *rec
			wr.Kind = core.KindWorldRecord
			s.worldRecords[trackID] = &wr
			done(s.StartPlayback(&wr))
		})
	})
	if err != nil {
		done(uuid.Nil, err)
	}
}

// RaceRival starts playback of the ghost at a leaderboard rank (0 is first).
// The cached leaderboard is used when it reaches that rank; otherwise the
// page up to rank is fetched first.
func (s *Subsystem) RaceRival(trackID string, rank int, done func(uuid.UUID, error)) {
	done = orNop(done)
	if rank < 0 {
		done(uuid.Nil, fmt.Errorf("%w: %d", ErrNoRival, rank))
		return
	}

	race := func(entries []core.LeaderboardEntry) {
		if rank >= len(entries) {
			done(uuid.Nil, fmt.Errorf("%w: track %q rank %d", ErrNoRival, trackID, rank))
			return
		}
		s.fetchGhost(entries[rank].RecordID, func(rec *core.Record, err error) {
			if err != nil {
				done(uuid.Nil, err)
				return
			}
			rival := *rec
			rival.Kind = core.KindRival
			done(s.StartPlayback(&rival))
		})
	}

	if lb := s.leaderboards[trackID]; rank < len(lb) {
		race(lb)
		return
	}

	err := s.FetchLeaderboard(trackID, 0, rank+1, func(entries []core.LeaderboardEntry, err error) {
		if err != nil {
			done(uuid.Nil, err)
			return
		}
		race(entries)
	})
	if err != nil {
		done(uuid.Nil, err)
	}
}

// fetchGhost loads id from the store, downloading it when it is not there.
func (s *Subsystem) fetchGhost(id uuid.UUID, cb func(*core.Record, error)) {
	if s.deps.Store.Has(id) {
		rec, err := s.deps.Store.Load(id)
		if err == nil {
			cb(rec, nil)
			return
		}
		s.log.Warn("Stored ghost unreadable, downloading", "record", id, "error", err)
	}
	if err := s.DownloadGhost(id, cb); err != nil {
		cb(nil, err)
	}
}

// Remote

// UploadGhost sends a stored record to the leaderboard. The result arrives
// through done and a GhostUploaded event on a later tick.
func (s *Subsystem) UploadGhost(id uuid.UUID, done func(error)) error {
	if s.deps.Exchange == nil {
		return ErrRemoteDisabled
	}
	rec, err := s.deps.Store.Load(id)
	if err != nil {
		return err
	}

	s.deps.Exchange.Upload(rec, func(err error) {
		if err != nil {
			s.log.Error("Ghost upload failed", "record", id, "error", err)
		} else {
			s.log.Info("Ghost uploaded", "record", id, "track", rec.TrackID)
		}
		s.emit(events.Event{
			Kind:     events.GhostUploaded,
			RecordID: id,
			TrackID:  rec.TrackID,
			Err:      err,
		})
		if done != nil {
			done(err)
		}
	})
	return nil
}

// DownloadGhost fetches a record and imports it into the store. The result
// arrives through done and a GhostDownloaded event on a later tick.
func (s *Subsystem) DownloadGhost(id uuid.UUID, done func(*core.Record, error)) error {
	if s.deps.Exchange == nil {
		return ErrRemoteDisabled
	}

	s.deps.Exchange.Download(id, func(rec *core.Record, err error) {
		if err == nil {
			if importErr := s.deps.Store.Import(rec); importErr != nil {
				err = fmt.Errorf("failed to import downloaded ghost: %w", importErr)
				rec = nil
			}
		}
		if err != nil {
			s.log.Error("Ghost download failed", "record", id, "error", err)
		} else {
			s.markDownloaded(rec.TrackID, id)
		}

		ev := events.Event{Kind: events.GhostDownloaded, RecordID: id, Record: rec, Err: err}
		if rec != nil {
			ev.TrackID = rec.TrackID
		}
		s.emit(ev)
		if done != nil {
			done(rec, err)
		}
	})
	return nil
}

// FetchLeaderboard requests a leaderboard page and caches it for the track.
// The page arrives through done and a LeaderboardFetched event on a later tick.
func (s *Subsystem) FetchLeaderboard(trackID string, start, count int, done func([]core.LeaderboardEntry, error)) error {
	if s.deps.Exchange == nil {
		return ErrRemoteDisabled
	}

	s.deps.Exchange.FetchLeaderboard(trackID, start, count, func(entries []core.LeaderboardEntry, err error) {
		if err != nil {
			s.log.Error("Leaderboard fetch failed", "track", trackID, "error", err)
		} else {
			for i := range entries {
				entries[i].Downloaded = s.deps.Store.Has(entries[i].RecordID)
			}
			s.leaderboards[trackID] = entries
		}
		s.emit(events.Event{
			Kind:    events.LeaderboardFetched,
			TrackID: trackID,
			Err:     err,
			Payload: entries,
		})
		if done != nil {
			done(entries, err)
		}
	})
	return nil
}

// Leaderboard returns the cached leaderboard for a track.
func (s *Subsystem) Leaderboard(trackID string) []core.LeaderboardEntry {
	return slices.Clone(s.leaderboards[trackID])
}

// WorldRecord returns the cached world record for a track.
func (s *Subsystem) WorldRecord(trackID string) (*core.Record, bool) {
	rec, ok := s.worldRecords[trackID]
	return rec, ok
}

func (s *Subsystem) markDownloaded(trackID string, id uuid.UUID) {
	lb := s.leaderboards[trackID]
	for i := range lb {
		if lb[i].RecordID == id {
			lb[i].Downloaded = true
		}
	}
}

// Tick

// Tick runs one frame of the subsystem: remote completions, live samples,
// cursor advance, ghost state publishing and the comparison, in that order.
func (s *Subsystem) Tick(dt float32) {
	start := time.Now()

	if s.deps.Exchange != nil {
		s.deps.Exchange.Drain()
	}

	if s.deps.Feed != nil {
		s.deps.Feed.Drain(s.handleLiveSample)
	}

	s.deps.Engine.Advance(dt)

	if s.deps.Feed != nil && s.deps.Feed.Connected() {
		for _, c := range s.deps.Engine.Cursors() {
			err := s.deps.Feed.PublishGhost(streaming.GhostStatePayload{
				CursorID: c.ID(),
				RecordID: c.Record().ID,
				Time:     c.CurrentTime(),
				Frame:    c.Sample(),
			})
			if err != nil {
				s.log.Debug("Failed to publish ghost state", "cursor", c.ID(), "error", err)
			}
		}
	}

	if s.comparing {
		s.updateComparison()
	}

	s.tickDuration.Record(context.Background(), float64(time.Since(start).Microseconds())/1000)
}

func (s *Subsystem) handleLiveSample(sample streaming.LiveSample) {
	s.lastLive = &compare.LiveSample{Time: sample.Time, Frame: sample.Frame}
	if s.liveSession == uuid.Nil {
		return
	}
	s.deps.Recorder.Ingest(s.liveSession, sample.Frame)
}

// Run calls Tick every interval with the measured elapsed time until ctx is
// done.
func (s *Subsystem) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(float32(now.Sub(last).Seconds()))
			last = now
		}
	}
}

// Close stops remote calls, runs their callbacks once more and disconnects
// the live feed.
func (s *Subsystem) Close() error {
	if s.deps.Exchange != nil {
		s.deps.Exchange.Close()
		s.deps.Exchange.Drain()
	}
	if s.deps.Feed != nil {
		return s.deps.Feed.Close()
	}
	return nil
}

// LogContext returns attributes for logging.SlogManager.Bind. Safe from any
// goroutine.
func (s *Subsystem) LogContext() []slog.Attr {
	return []slog.Attr{slog.Int("activeSessions", len(s.deps.Recorder.Active()))}
}

func (s *Subsystem) emit(e events.Event) {
	if s.deps.Events == nil {
		return
	}
	s.deps.Events.Emit(e)
}

func orNop(fn func(uuid.UUID, error)) func(uuid.UUID, error) {
	if fn != nil {
		return fn
	}
	return func(uuid.UUID, error) {}
}
