package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Kind identifies what happened.
type Kind string

const (
	RecordingStarted   Kind = "recording_started"
	RecordingCompleted Kind = "recording_completed"
	RecordingCancelled Kind = "recording_cancelled"
	NewPersonalBest    Kind = "new_personal_best"
	PlaybackStarted    Kind = "playback_started"
	PlaybackFinished   Kind = "playback_finished"
	ComparisonUpdated  Kind = "comparison_updated"
	GhostUploaded      Kind = "ghost_uploaded"
	GhostDownloaded    Kind = "ghost_downloaded"
	LeaderboardFetched Kind = "leaderboard_fetched"
)

// Event is one notification delivered to subscribers. Only the fields that
// apply to the Kind are set.
type Event struct {
	Kind      Kind
	Timestamp time.Time
	SessionID uuid.UUID
	CursorID  uuid.UUID
	RecordID  uuid.UUID
	TrackID   string
	Record    *core.Record
	Err       error
	// Payload carries kind-specific data such as a comparison result or a
	// leaderboard page.
	Payload any
}

// Listener receives events on the emitting goroutine.
type Listener func(Event)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures a subscription.
type Option func(*config)

type config struct {
	kinds  map[Kind]bool
	logged bool
}

// Only restricts a subscription to the given kinds.
func Only(kinds ...Kind) Option {
	return func(c *config) {
		if c.kinds == nil {
			c.kinds = make(map[Kind]bool, len(kinds))
		}
		for _, k := range kinds {
			c.kinds[k] = true
		}
	}
}

// Logged adds debug logging around the listener.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type subscription struct {
	id uint64
	fn Listener
}

// Bus delivers events synchronously to every subscriber, in subscription
// order, on the goroutine that calls Emit.
type Bus struct {
	logger Logger

	mu     sync.RWMutex
	nextID uint64
	subs   []subscription

	// OTEL metrics
	emitted   metric.Int64Counter
	listeners metric.Int64ObservableGauge
}

// New creates a new Bus with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Bus, error) {
	b := &Bus{logger: logger}

	m := meter()

	var err error

	b.emitted, err = m.Int64Counter(
		"ghost.events.emitted",
		metric.WithDescription("Total events emitted by kind"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating emitted counter: %w", err)
	}

	b.listeners, err = m.Int64ObservableGauge(
		"ghost.events.listeners",
		metric.WithDescription("Current number of subscribed listeners"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating listeners gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			b.mu.RLock()
			defer b.mu.RUnlock()
			o.ObserveInt64(b.listeners, int64(len(b.subs)))
			return nil
		},
		b.listeners,
	)
	if err != nil {
		return nil, fmt.Errorf("registering listeners callback: %w", err)
	}

	return b, nil
}

// Subscribe registers fn and returns a function that removes it again.
// Calling the returned function more than once is harmless.
func (b *Bus) Subscribe(fn Listener, opts ...Option) (unsubscribe func()) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	listener := fn
	if cfg.kinds != nil {
		listener = withFilter(cfg.kinds, listener)
	}
	if cfg.logged && b.logger != nil {
		listener = b.withLogging(listener)
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: listener})
	b.mu.Unlock()

	return func() { b.remove(id) }
}

// Emit delivers e to all current subscribers before returning. A zero
// Timestamp is filled in with the current time.
func (b *Bus) Emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	b.emitted.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", string(e.Kind))))

	for _, s := range subs {
		s.fn(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func withFilter(kinds map[Kind]bool, fn Listener) Listener {
	return func(e Event) {
		if kinds[e.Kind] {
			fn(e)
		}
	}
}

func (b *Bus) withLogging(fn Listener) Listener {
	return func(e Event) {
		start := time.Now()
		b.logger.Debug("delivering event", "kind", e.Kind, "record", e.RecordID)
		fn(e)
		b.logger.Debug("event delivered", "kind", e.Kind, "duration", time.Since(start))
	}
}
