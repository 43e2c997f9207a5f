package playback

import (
	"sort"

	"github.com/MidnightGrind/ghost/pkg/core"
)

// SampleAt returns the record's state at time t, clamped to [0, TotalTime].
// A t that hits a frame timestamp exactly returns that frame unchanged.
// Between frames, continuous fields are interpolated linearly; discrete
// fields (gear, nitro, drift, lap, sector) switch from the lower to the upper
// frame at the midpoint, so they can flicker right at a transition.
func SampleAt(rec *core.Record, t float32) core.Frame {
	if rec == nil || len(rec.Frames) == 0 {
		return core.Frame{}
	}
	frames := rec.Frames

	if t < 0 {
		t = 0
	}
	if t > rec.TotalTime {
		t = rec.TotalTime
	}

	first, last := frames[0], frames[len(frames)-1]
	if t <= first.Timestamp {
		return first
	}
	if t >= last.Timestamp {
		return last
	}

	// First frame strictly after t; the one before it is the lower bracket.
	upper := sort.Search(len(frames), func(i int) bool {
		return frames[i].Timestamp > t
	})
	lo, hi := frames[upper-1], frames[upper]
	if lo.Timestamp == t {
		return lo
	}

	alpha := (t - lo.Timestamp) / (hi.Timestamp - lo.Timestamp)
	return Interpolate(lo, hi, alpha)
}

// Interpolate blends two frames at alpha in [0, 1]. The result carries the
// interpolated timestamp.
func Interpolate(lo, hi core.Frame, alpha float32) core.Frame {
	discrete := lo
	if alpha >= 0.5 {
		discrete = hi
	}

	return core.Frame{
		Timestamp:          core.Lerp(lo.Timestamp, hi.Timestamp, alpha),
		Position:           lo.Position.Lerp(hi.Position, alpha),
		Rotation:           lo.Rotation.Lerp(hi.Rotation, alpha),
		Velocity:           lo.Velocity.Lerp(hi.Velocity, alpha),
		Speed:              core.Lerp(lo.Speed, hi.Speed, alpha),
		Throttle:           core.Lerp(lo.Throttle, hi.Throttle, alpha),
		Brake:              core.Lerp(lo.Brake, hi.Brake, alpha),
		Steering:           core.Lerp(lo.Steering, hi.Steering, alpha),
		Gear:               discrete.Gear,
		EngineRPM:          core.Lerp(lo.EngineRPM, hi.EngineRPM, alpha),
		NitroActive:        discrete.NitroActive,
		Drifting:           discrete.Drifting,
		WheelFL:            core.Lerp(lo.WheelFL, hi.WheelFL, alpha),
		WheelFR:            core.Lerp(lo.WheelFR, hi.WheelFR, alpha),
		WheelRL:            core.Lerp(lo.WheelRL, hi.WheelRL, alpha),
		WheelRR:            core.Lerp(lo.WheelRR, hi.WheelRR, alpha),
		DistanceAlongTrack: core.Lerp(lo.DistanceAlongTrack, hi.DistanceAlongTrack, alpha),
		LapNumber:          discrete.LapNumber,
		Sector:             discrete.Sector,
	}
}
