package geo

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/MidnightGrind/ghost/pkg/core"
)

func straightFrames() []core.Frame {
	return []core.Frame{
		{Timestamp: 0, Position: core.Vec3{X: 0, Y: 0, Z: 1}},
		{Timestamp: 1, Position: core.Vec3{X: 3, Y: 4, Z: 1}},
		{Timestamp: 2, Position: core.Vec3{X: 3, Y: 10, Z: 2}},
	}
}

func TestTrajectory_TooFewFrames(t *testing.T) {
	_, err := Trajectory([]core.Frame{{}})
	if !errors.Is(err, ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}
}

func TestTrajectory_Coordinates(t *testing.T) {
	ls, err := Trajectory(straightFrames())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seq := ls.Coordinates()
	if seq.Length() != 3 {
		t.Fatalf("expected 3 points, got %d", seq.Length())
	}
	last := seq.Get(2)
	if last.X != 3 || last.Y != 10 || last.Z != 2 || last.M != 2 {
		t.Errorf("unexpected last point: %+v", last)
	}
}

func TestPlanarLength(t *testing.T) {
	got := PlanarLength(straightFrames())
	if math.Abs(got-11) > 1e-9 {
		t.Errorf("expected planar length 11, got %f", got)
	}
	if PlanarLength(nil) != 0 {
		t.Error("expected 0 for empty frames")
	}
}

func TestTrajectoryWKT(t *testing.T) {
	wkt := TrajectoryWKT(&core.Record{Frames: straightFrames()})
	if !strings.HasPrefix(wkt, "LINESTRING ZM") {
		t.Errorf("unexpected WKT: %s", wkt)
	}
	if TrajectoryWKT(&core.Record{}) != "" {
		t.Error("expected empty WKT for a record without frames")
	}
}

func TestStartPosition(t *testing.T) {
	ls, err := Trajectory(straightFrames())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, ok := StartPosition(ls)
	if !ok {
		t.Fatal("expected a start position")
	}
	if p != (core.Vec3{Z: 1}) {
		t.Errorf("unexpected start: %+v", p)
	}
}
