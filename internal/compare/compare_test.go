package compare

import (
	"testing"

	"github.com/MidnightGrind/ghost/internal/playback"
	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// straightRecord drives 10 units per second for total seconds.
func straightRecord(total int, sectors ...float32) *core.Record {
	rec := &core.Record{ID: uuid.New(), TrackID: "harbor_loop", SectorTimes: sectors}
	for i := 0; i <= total; i++ {
		rec.Frames = append(rec.Frames, core.Frame{
			Timestamp:          float32(i),
			DistanceAlongTrack: float32(i) * 10,
		})
	}
	rec.TotalTime = float32(total)
	return rec
}

func cursorAt(t *testing.T, e *playback.Engine, rec *core.Record, at float32) *playback.Cursor {
	t.Helper()
	c, err := e.Create(rec, playback.StartAt(at))
	require.NoError(t, err)
	return c
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		delta float32
		want  Status
	}{
		{0, Even},
		{0.09, Even},
		{-0.09, Even},
		{-0.1, Ahead},
		{-2, Ahead},
		{0.1, Behind},
		{3, Behind},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.delta), "delta %v", tt.delta)
	}
}

func TestCompare_Formula(t *testing.T) {
	e := playback.New(playback.Dependencies{})
	a := cursorAt(t, e, straightRecord(10, 20, 21, 22), 3)
	b := cursorAt(t, e, straightRecord(10, 19, 22), 5)

	r := Compare(a, b)
	assert.InDelta(t, -2, r.TimeDelta, 1e-6)
	assert.InDelta(t, -20, r.DistanceDelta, 1e-4)
	assert.Equal(t, Ahead, r.Status)
	require.Len(t, r.SectorDeltas, 2)
	assert.InDelta(t, 1, r.SectorDeltas[0], 1e-6)
	assert.InDelta(t, -1, r.SectorDeltas[1], 1e-6)
}

func TestCompare_IsPure(t *testing.T) {
	e := playback.New(playback.Dependencies{})
	a := cursorAt(t, e, straightRecord(10), 4.3)
	b := cursorAt(t, e, straightRecord(10), 4.1)

	first := Compare(a, b)
	second := Compare(a, b)
	assert.Equal(t, first, second)
	assert.Equal(t, Behind, first.Status)
}

// Two cursors on one record, the second started two seconds of ticks later,
// produce exactly what the formula says even though the comparison is not a
// meaningful race.
func TestCompare_UnsynchronizedCursors(t *testing.T) {
	e := playback.New(playback.Dependencies{})
	rec := straightRecord(10)
	a := cursorAt(t, e, rec, 0)

	e.Advance(1)
	e.Advance(1)
	b := cursorAt(t, e, rec, 0)
	e.Advance(1)

	r := Compare(a, b)
	assert.InDelta(t, 2, r.TimeDelta, 1e-6)
	assert.InDelta(t, 20, r.DistanceDelta, 1e-4)
	assert.Equal(t, Behind, r.Status)
}

func TestCompareLive(t *testing.T) {
	e := playback.New(playback.Dependencies{})
	ghost := cursorAt(t, e, straightRecord(10, 20), 5)

	live := LiveSample{Time: 5.05, Frame: core.Frame{DistanceAlongTrack: 52}}
	r := CompareLive(live, ghost)
	assert.InDelta(t, 0.05, r.TimeDelta, 1e-5)
	assert.InDelta(t, 2, r.DistanceDelta, 1e-4)
	assert.Equal(t, Even, r.Status)
	assert.Nil(t, r.SectorDeltas)
}

func TestSectorDeltas(t *testing.T) {
	a := &core.Record{SectorTimes: []float32{10, 11}}
	b := &core.Record{SectorTimes: []float32{9, 12, 13}}

	assert.Equal(t, []float32{1, -1}, SectorDeltas(a, b))
	assert.Nil(t, SectorDeltas(a, &core.Record{}))
	assert.Nil(t, SectorDeltas(nil, b))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "even", Even.String())
	assert.Equal(t, "ahead", Ahead.String())
	assert.Equal(t, "behind", Behind.String())
}
