// pkg/core/record.go
package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind classifies where a ghost record came from.
type Kind uint32

const (
	KindPersonal Kind = iota
	KindRival
	KindWorldRecord
	KindFriend
	KindDeveloper
	KindChallenge
	KindTutorial
	KindAI
)

var kindNames = map[Kind]string{
	KindPersonal:    "personal",
	KindRival:       "rival",
	KindWorldRecord: "world_record",
	KindFriend:      "friend",
	KindDeveloper:   "developer",
	KindChallenge:   "challenge",
	KindTutorial:    "tutorial",
	KindAI:          "ai",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint32(k))
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseKind converts a kind name back to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown ghost kind %q", s)
}

// Record is one ghost's full frame history plus metadata.
// Once a Record has been finalized by the recorder it is never mutated again;
// the store, the cache and any number of playback cursors share the same pointer.
type Record struct {
	ID         uuid.UUID
	TrackID    string
	VehicleID  string
	PlayerID   string
	PlayerName string
	Kind       Kind

	Frames      []Frame
	LapTimes    []float32
	SectorTimes []float32

	TotalTime    float32
	BestLapTime  float32
	RecordedDate time.Time
	GameVersion  string

	FormatVersion        uint32
	Validated            bool
	IsWorldRecord        bool
	CompressedFrameCount uint32
}

// RankingTime is the time used to rank a record against others on the same
// track: the best lap when any lap was marked, otherwise the total time.
func (r *Record) RankingTime() float32 {
	if r.BestLapTime > 0 {
		return r.BestLapTime
	}
	return r.TotalTime
}

// EligibleForPersonalBest reports whether the record may be promoted to a
// personal best at all. Empty or zero-time runs never are.
func (r *Record) EligibleForPersonalBest() bool {
	return len(r.Frames) > 0 && r.RankingTime() > 0
}

// LastFrame returns the final frame, or false when the record has none.
func (r *Record) LastFrame() (Frame, bool) {
	if len(r.Frames) == 0 {
		return Frame{}, false
	}
	return r.Frames[len(r.Frames)-1], true
}

// PersonalBest is one entry of the per-track personal best index.
type PersonalBest struct {
	TrackID  string
	RecordID uuid.UUID
	BestTime float32
}

// LeaderboardEntry is one row of a remote leaderboard page.
type LeaderboardEntry struct {
	Rank         int       `json:"rank"`
	RecordID     uuid.UUID `json:"ghostId"`
	PlayerName   string    `json:"playerName"`
	Time         float32   `json:"lapTime"`
	VehicleID    string    `json:"vehicleId,omitempty"`
	RecordedDate time.Time `json:"recordedDate,omitempty"`
	Downloaded   bool      `json:"-"`
}
