package playback

import (
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

const (
	MinSpeed = 0.1
	MaxSpeed = 4.0
)

// State is where a cursor is in its playback.
type State int

const (
	Playing State = iota
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Cursor is a playback position over an immutable record. Cursors have no
// locks: they must only be touched from the tick goroutine.
type Cursor struct {
	id      uuid.UUID
	record  *core.Record
	current float32
	speed   float32
	looping bool
	state   State
}

// Option configures a new cursor.
type Option func(*Cursor)

// StartAt sets the initial playback time.
func StartAt(t float32) Option {
	return func(c *Cursor) { c.current = t }
}

// WithSpeed sets the initial speed multiplier.
func WithSpeed(s float32) Option {
	return func(c *Cursor) { c.speed = s }
}

// Looping makes the cursor wrap to the start instead of finishing.
func Looping() Option {
	return func(c *Cursor) { c.looping = true }
}

func newCursor(rec *core.Record, opts ...Option) *Cursor {
	c := &Cursor{
		id:     uuid.New(),
		record: rec,
		speed:  1,
		state:  Playing,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.speed = clampSpeed(c.speed)
	c.current = c.clampTime(c.current)
	return c
}

func (c *Cursor) ID() uuid.UUID        { return c.id }
func (c *Cursor) Record() *core.Record { return c.record }
func (c *Cursor) CurrentTime() float32 { return c.current }
func (c *Cursor) Speed() float32       { return c.speed }
func (c *Cursor) IsLooping() bool      { return c.looping }
func (c *Cursor) State() State         { return c.state }
func (c *Cursor) Sample() core.Frame   { return SampleAt(c.record, c.current) }

// Advance moves a playing cursor forward by dt scaled by its speed, never
// below 0. Past the end it wraps to 0 when looping, otherwise it stops at
// TotalTime and finishes. It returns true only on the tick the cursor finishes.
func (c *Cursor) Advance(dt float32) bool {
	if c.state != Playing {
		return false
	}

	c.current += dt * c.speed
	if c.current < 0 {
		c.current = 0
	}
	if c.current <= c.record.TotalTime {
		return false
	}
	if c.looping {
		c.current = 0
		return false
	}
	c.current = c.record.TotalTime
	c.state = Finished
	return true
}

// Seek jumps to t, clamped to the record. Seeking a finished cursor back
// before the end resumes playback.
func (c *Cursor) Seek(t float32) {
	c.current = c.clampTime(t)
	if c.state == Finished && c.current < c.record.TotalTime {
		c.state = Playing
	}
}

// SetSpeed sets the speed multiplier, clamped to [MinSpeed, MaxSpeed].
func (c *Cursor) SetSpeed(s float32) {
	c.speed = clampSpeed(s)
}

// SetLooping toggles looping.
func (c *Cursor) SetLooping(loop bool) {
	c.looping = loop
}

// Pause stops a playing cursor.
func (c *Cursor) Pause() {
	if c.state == Playing {
		c.state = Paused
	}
}

// Resume restarts a paused cursor.
func (c *Cursor) Resume() {
	if c.state == Paused {
		c.state = Playing
	}
}

func (c *Cursor) clampTime(t float32) float32 {
	if t < 0 {
		return 0
	}
	if t > c.record.TotalTime {
		return c.record.TotalTime
	}
	return t
}

func clampSpeed(s float32) float32 {
	if s < MinSpeed {
		return MinSpeed
	}
	if s > MaxSpeed {
		return MaxSpeed
	}
	return s
}
