// Package compare measures one run against another.
//
// Both sides must share a synchronized zero point, such as two cursors
// started on the same tick or a cursor driven by the live race clock. Nothing
// here checks that: offset inputs still produce a well-formed but meaningless
// result.
package compare

import (
	"math"

	"github.com/MidnightGrind/ghost/internal/playback"
	"github.com/MidnightGrind/ghost/pkg/core"
)

// EvenThreshold is the time gap, in seconds, below which two runs are even.
const EvenThreshold = 0.1

// Status is A's standing relative to B.
type Status int

const (
	Even Status = iota
	Ahead
	Behind
)

func (s Status) String() string {
	switch s {
	case Even:
		return "even"
	case Ahead:
		return "ahead"
	case Behind:
		return "behind"
	}
	return "unknown"
}

// Result is one comparison of A against B.
type Result struct {
	TimeDelta     float32 // A.time - B.time
	DistanceDelta float32 // A.distance - B.distance
	Status        Status
	// SectorDeltas are A's minus B's sector splits over the sectors both have.
	SectorDeltas []float32
}

// LiveSample is the player's current race time and vehicle state.
type LiveSample struct {
	Time  float32
	Frame core.Frame
}

// Compare compares two cursors. It is a pure function of their times and
// records.
func Compare(a, b *playback.Cursor) Result {
	return compute(
		a.CurrentTime(), a.Sample(), a.Record(),
		b.CurrentTime(), b.Sample(), b.Record(),
	)
}

// CompareLive compares a live sample, as side A, against a ghost cursor.
// Sector deltas need a finished record on both sides and are left empty.
func CompareLive(live LiveSample, ghost *playback.Cursor) Result {
	return compute(
		live.Time, live.Frame, nil,
		ghost.CurrentTime(), ghost.Sample(), ghost.Record(),
	)
}

// StatusFor classifies a time delta.
func StatusFor(timeDelta float32) Status {
	switch {
	case math.Abs(float64(timeDelta)) < EvenThreshold:
		return Even
	case timeDelta < 0:
		return Ahead
	default:
		return Behind
	}
}

// SectorDeltas returns a's splits minus b's over their common prefix.
func SectorDeltas(a, b *core.Record) []float32 {
	if a == nil || b == nil {
		return nil
	}
	n := min(len(a.SectorTimes), len(b.SectorTimes))
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range n {
		out[i] = a.SectorTimes[i] - b.SectorTimes[i]
	}
	return out
}

func compute(ta float32, fa core.Frame, ra *core.Record, tb float32, fb core.Frame, rb *core.Record) Result {
	dt := ta - tb
	return Result{
		TimeDelta:     dt,
		DistanceDelta: fa.DistanceAlongTrack - fb.DistanceAlongTrack,
		Status:        StatusFor(dt),
		SectorDeltas:  SectorDeltas(ra, rb),
	}
}
