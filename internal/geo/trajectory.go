// Package geo turns recorded frames into simple-features geometry so a
// record's driven line can be stored and queried alongside its metadata.
package geo

import (
	"errors"

	"github.com/MidnightGrind/ghost/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrTooFewPoints is returned when a trajectory would have fewer than 2 points.
var ErrTooFewPoints = errors.New("trajectory needs at least 2 frames")

// Trajectory builds an XYZM line string from frame positions. M carries the
// frame timestamp so the line can be sampled by time as well as by distance.
func Trajectory(frames []core.Frame) (geom.LineString, error) {
	if len(frames) < 2 {
		return geom.LineString{}, ErrTooFewPoints
	}

	coords := make([]float64, 0, len(frames)*4)
	for _, f := range frames {
		coords = append(coords,
			float64(f.Position.X),
			float64(f.Position.Y),
			float64(f.Position.Z),
			float64(f.Timestamp),
		)
	}
	seq := geom.NewSequence(coords, geom.DimXYZM)
	return geom.NewLineString(seq)
}

// TrajectoryWKT renders a record's trajectory as WKT, or "" when the record is
// too short to have one.
func TrajectoryWKT(rec *core.Record) string {
	ls, err := Trajectory(rec.Frames)
	if err != nil {
		return ""
	}
	return ls.AsText()
}

// PlanarLength is the trajectory length projected onto the XY plane.
func PlanarLength(frames []core.Frame) float64 {
	ls, err := Trajectory(frames)
	if err != nil {
		return 0
	}
	return ls.Length()
}

// StartPosition returns the first vertex of a trajectory as a Vec3.
func StartPosition(ls geom.LineString) (core.Vec3, bool) {
	seq := ls.Coordinates()
	if seq.Length() == 0 {
		return core.Vec3{}, false
	}
	c := seq.Get(0)
	return core.Vec3{X: float32(c.X), Y: float32(c.Y), Z: float32(c.Z)}, true
}
