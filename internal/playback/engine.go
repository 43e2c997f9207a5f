// Package playback replays ghost records with time-accurate interpolation.
// The engine and its cursors are driven from a single tick goroutine.
package playback

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MidnightGrind/ghost/internal/events"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

var ErrUnknownCursor = errors.New("playback cursor not found")

// Emitter receives playback events. *events.Bus satisfies it.
type Emitter interface {
	Emit(e events.Event)
}

// Dependencies holds all dependencies for the engine.
type Dependencies struct {
	Events Emitter // optional
	Logger *slog.Logger
}

// Engine owns the live cursors in creation order.
type Engine struct {
	deps    Dependencies
	cursors []*Cursor
}

// New creates an engine with no cursors.
func New(deps Dependencies) *Engine {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Engine{deps: deps}
}

// Create starts a new cursor over rec.
func (e *Engine) Create(rec *core.Record, opts ...Option) (*Cursor, error) {
	if rec == nil {
		return nil, errors.New("create cursor: nil record")
	}
	c := newCursor(rec, opts...)
	e.cursors = append(e.cursors, c)

	e.deps.Logger.Debug("Playback started", "cursor", c.id, "record", rec.ID, "speed", c.speed, "looping", c.looping)
	e.emit(events.Event{
		Kind:     events.PlaybackStarted,
		CursorID: c.id,
		RecordID: rec.ID,
		TrackID:  rec.TrackID,
	})
	return c, nil
}

// Get returns the cursor with id.
func (e *Engine) Get(id uuid.UUID) (*Cursor, error) {
	for _, c := range e.cursors {
		if c.id == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("cursor %s: %w", id, ErrUnknownCursor)
}

// Remove drops the cursor with id.
func (e *Engine) Remove(id uuid.UUID) error {
	for i, c := range e.cursors {
		if c.id == id {
			e.cursors = append(e.cursors[:i], e.cursors[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("remove cursor %s: %w", id, ErrUnknownCursor)
}

// Clear drops every cursor.
func (e *Engine) Clear() {
	e.cursors = nil
}

// Cursors returns the live cursors in creation order.
func (e *Engine) Cursors() []*Cursor {
	out := make([]*Cursor, len(e.cursors))
	copy(out, e.cursors)
	return out
}

// Len returns the number of live cursors, finished ones included.
func (e *Engine) Len() int {
	return len(e.cursors)
}

// Advance moves every cursor by dt and returns the ones that finished on
// this tick. Each finish emits PlaybackFinished once.
func (e *Engine) Advance(dt float32) []*Cursor {
	var finished []*Cursor
	for _, c := range e.cursors {
		if !c.Advance(dt) {
			continue
		}
		finished = append(finished, c)
		e.deps.Logger.Debug("Playback finished", "cursor", c.id, "record", c.record.ID)
		e.emit(events.Event{
			Kind:     events.PlaybackFinished,
			CursorID: c.id,
			RecordID: c.record.ID,
			TrackID:  c.record.TrackID,
		})
	}
	return finished
}

func (e *Engine) emit(ev events.Event) {
	if e.deps.Events == nil {
		return
	}
	e.deps.Events.Emit(ev)
}
