package streaming

import (
	"encoding/json"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// Message type constants matching the live feed protocol.
const (
	TypeSubscribe  = "subscribe"
	TypeLiveSample = "live_sample"
	TypeGhostState = "ghost_state"
	TypeAck        = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// SubscribePayload selects which player's telemetry the server streams.
type SubscribePayload struct {
	TrackID  string `json:"trackId"`
	PlayerID string `json:"playerId"`
}

// LiveSample is the player's vehicle state at a race-clock time.
type LiveSample struct {
	Time  float32    `json:"time"`
	Frame core.Frame `json:"frame"`
}

// GhostStatePayload reports where a replaying ghost is.
type GhostStatePayload struct {
	CursorID uuid.UUID  `json:"cursorId"`
	RecordID uuid.UUID  `json:"recordId"`
	Time     float32    `json:"time"`
	Frame    core.Frame `json:"frame"`
}
