// Package compress thins a recorded frame sequence down to the frames that
// matter visually. Playback interpolates linearly between retained frames, so
// the thresholds bound the positional and heading error introduced.
package compress

import "github.com/MidnightGrind/ghost/pkg/core"

const (
	// DefaultDistanceThreshold is the position delta, in track units, above
	// which a frame is kept.
	DefaultDistanceThreshold = 1.0
	// DefaultAngleThreshold is the yaw delta, in degrees, above which a frame
	// is kept.
	DefaultAngleThreshold = 5.0
)

// Compressor drops frames that differ too little from the last kept frame.
type Compressor struct {
	DistanceThreshold float64
	AngleThreshold    float64
}

// New creates a Compressor. Non-positive thresholds fall back to the defaults.
func New(distance, angle float64) Compressor {
	if distance <= 0 {
		distance = DefaultDistanceThreshold
	}
	if angle <= 0 {
		angle = DefaultAngleThreshold
	}
	return Compressor{DistanceThreshold: distance, AngleThreshold: angle}
}

// Default returns a Compressor using the default thresholds.
func Default() Compressor {
	return New(DefaultDistanceThreshold, DefaultAngleThreshold)
}

// Compress returns a new slice holding the retained frames. The first and last
// frames are always retained. The input is never modified.
func (c Compressor) Compress(frames []core.Frame) []core.Frame {
	if len(frames) <= 2 {
		return append([]core.Frame(nil), frames...)
	}

	out := make([]core.Frame, 0, len(frames))
	out = append(out, frames[0])

	for i := 1; i < len(frames)-1; i++ {
		prev := out[len(out)-1]
		curr := frames[i]
		if prev.Position.Dist(curr.Position) > c.DistanceThreshold ||
			core.YawDelta(prev.Rotation, curr.Rotation) > c.AngleThreshold {
			out = append(out, curr)
		}
	}

	return append(out, frames[len(frames)-1])
}
