// Package livefeed receives the player's live telemetry over a WebSocket and
// hands it to the tick. Samples arrive on the read goroutine and wait in a
// bounded queue until Drain is called.
package livefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/MidnightGrind/ghost/internal/config"
	"github.com/MidnightGrind/ghost/internal/queue"
	"github.com/MidnightGrind/ghost/pkg/streaming"
)

// Feed is a live sample source.
type Feed struct {
	cfg     config.LiveFeedConfig
	conn    *connection
	samples *queue.Queue[streaming.LiveSample]
	logger  *slog.Logger
}

// New creates a feed. Nothing is dialed until Connect.
func New(cfg config.LiveFeedConfig, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Feed{
		cfg:     cfg,
		samples: queue.NewBounded[streaming.LiveSample](cfg.QueueSize),
		logger:  logger,
	}
	f.conn = newConnection(logger, f.handleEnvelope)
	return f
}

// Connect dials the feed and subscribes to one player's telemetry. The
// subscription is replayed automatically after a reconnect.
func (f *Feed) Connect(ctx context.Context, sub streaming.SubscribePayload) error {
	if err := f.conn.dial(ctx, f.cfg.URL); err != nil {
		return err
	}

	data, err := marshalEnvelope(streaming.TypeSubscribe, sub)
	if err != nil {
		return err
	}
	f.conn.mu.Lock()
	f.conn.cachedSubscribe = data
	f.conn.mu.Unlock()

	if err := f.conn.sendAndWait(ctx, data, streaming.TypeSubscribe, ackTimeout); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	f.logger.Info("Live feed subscribed", "url", f.cfg.URL, "track", sub.TrackID, "player", sub.PlayerID)
	return nil
}

// Drain hands every queued sample to fn in arrival order and returns how
// many there were. Call it from the tick.
func (f *Feed) Drain(fn func(streaming.LiveSample)) int {
	return f.samples.Drain(fn)
}

// Pending returns the number of queued samples.
func (f *Feed) Pending() int {
	return f.samples.Len()
}

// Dropped returns how many samples were discarded because the queue was full.
func (f *Feed) Dropped() int {
	return f.samples.Dropped()
}

// PublishGhost sends a ghost's current state to the server. Fire-and-forget.
func (f *Feed) PublishGhost(p streaming.GhostStatePayload) error {
	data, err := marshalEnvelope(streaming.TypeGhostState, p)
	if err != nil {
		return err
	}
	f.conn.send(data)
	return nil
}

// Connected reports whether a connection is open.
func (f *Feed) Connected() bool {
	f.conn.mu.Lock()
	defer f.conn.mu.Unlock()
	return f.conn.conn != nil && !f.conn.closed
}

// Close disconnects from the server.
func (f *Feed) Close() error {
	return f.conn.close()
}

func (f *Feed) handleEnvelope(env streaming.Envelope) {
	if env.Type != streaming.TypeLiveSample {
		f.logger.Debug("Ignoring live feed message", "type", env.Type)
		return
	}
	var s streaming.LiveSample
	if err := json.Unmarshal(env.Payload, &s); err != nil {
		f.logger.Warn("Malformed live sample", "error", err)
		return
	}
	f.samples.Push(s)
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
