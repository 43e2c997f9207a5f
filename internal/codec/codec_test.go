package codec

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *core.Record {
	frames := make([]core.Frame, 5)
	for i := range frames {
		ts := float32(i) * 0.5
		frames[i] = core.Frame{
			Timestamp:          ts,
			Position:           core.Vec3{X: ts * 10, Y: -3.25, Z: 1},
			Rotation:           core.Rotator{Pitch: 1, Yaw: float32(i) * 12.5, Roll: -0.5},
			Velocity:           core.Vec3{X: 20, Y: 0.1, Z: 0},
			Speed:              72.5,
			Throttle:           0.9,
			Brake:              0,
			Steering:           -0.2,
			Gear:               int32(2 + i%3),
			EngineRPM:          6500,
			NitroActive:        i%2 == 0,
			Drifting:           i == 3,
			WheelFL:            0.25,
			WheelFR:            0.25,
			WheelRL:            0.3,
			WheelRR:            0.2,
			DistanceAlongTrack: ts * 10,
			LapNumber:          1,
			Sector:             int32(i / 2),
		}
	}
	return &core.Record{
		ID:                   uuid.MustParse("6f1b3e0c-6d0c-4b52-9f43-1a2b3c4d5e6f"),
		TrackID:              "harbor_loop",
		VehicleID:            "kaze_gt",
		PlayerID:             "p-1001",
		PlayerName:           "Nightrunner",
		Kind:                 core.KindRival,
		Frames:               frames,
		LapTimes:             []float32{61.25, 60.5},
		SectorTimes:          []float32{20.1, 0, 19.8},
		TotalTime:            2,
		BestLapTime:          60.5,
		RecordedDate:         time.Date(2026, 3, 14, 21, 5, 9, 123456789, time.UTC),
		GameVersion:          "1.0.0",
		FormatVersion:        CurrentVersion,
		Validated:            true,
		IsWorldRecord:        true,
		CompressedFrameCount: 5,
	}
}

func TestRoundTrip(t *testing.T) {
	c := Default()
	rec := sampleRecord()

	data, err := c.Encode(rec)
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestRoundTrip_EmptyRecord(t *testing.T) {
	c := Default()
	rec := &core.Record{ID: uuid.New(), FormatVersion: CurrentVersion}

	data, err := c.Encode(rec)
	require.NoError(t, err)

	got, err := c.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.Empty(t, got.Frames)
}

func TestEncode_FrameSize(t *testing.T) {
	c := Default()
	rec := sampleRecord()

	full, err := c.Encode(rec)
	require.NoError(t, err)

	rec.Frames = rec.Frames[:4]
	shorter, err := c.Encode(rec)
	require.NoError(t, err)

	assert.Equal(t, FrameSize, len(full)-len(shorter))
}

func TestEncode_WritesCodecVersion(t *testing.T) {
	rec := sampleRecord()
	rec.FormatVersion = 9

	data, err := New(3).Encode(rec)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(data))
}

func TestEncode_NilRecord(t *testing.T) {
	_, err := Default().Encode(nil)
	assert.Error(t, err)
}

func TestDecode_VersionMismatch(t *testing.T) {
	data, err := New(1).Encode(sampleRecord())
	require.NoError(t, err)

	got, err := New(2).Decode(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.Nil(t, got)
}

func TestDecode_VersionMismatchIgnoresBody(t *testing.T) {
	data := binary.LittleEndian.AppendUint32(nil, 7)
	_, err := Default().Decode(data)
	assert.ErrorIs(t, err, ErrVersionMismatch)
	assert.NotErrorIs(t, err, ErrTruncated)
}

func TestDecode_EveryPrefixIsTruncated(t *testing.T) {
	c := Default()
	data, err := c.Encode(sampleRecord())
	require.NoError(t, err)

	for n := 0; n < len(data); n++ {
		got, err := c.Decode(data[:n])
		require.ErrorIs(t, err, ErrTruncated, "prefix of %d bytes", n)
		require.Nil(t, got)
	}
}

func TestDecode_TrailingBytes(t *testing.T) {
	c := Default()
	data, err := c.Encode(sampleRecord())
	require.NoError(t, err)

	_, err = c.Decode(append(data, 0))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_BadBool(t *testing.T) {
	c := Default()
	rec := &core.Record{ID: uuid.New()}
	data, err := c.Encode(rec)
	require.NoError(t, err)

	// version, id, four empty strings, kind, two times, date, empty game version.
	validatedAt := 4 + 16 + 4*4 + 4 + 4 + 4 + 8 + 4
	data[validatedAt] = 2

	_, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_UnknownKind(t *testing.T) {
	c := Default()
	data, err := c.Encode(&core.Record{ID: uuid.New()})
	require.NoError(t, err)

	kindAt := 4 + 16 + 4*4
	binary.LittleEndian.PutUint32(data[kindAt:], 42)

	_, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_NonIncreasingTimestamps(t *testing.T) {
	c := Default()
	rec := sampleRecord()
	data, err := c.Encode(rec)
	require.NoError(t, err)

	// Frame 2's timestamp is the first field of its fixed-width block.
	frame2At := len(data) - (len(rec.Frames)-2)*FrameSize
	binary.LittleEndian.PutUint32(data[frame2At:], math.Float32bits(rec.Frames[1].Timestamp))

	_, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncode_RejectsNonIncreasingTimestamps(t *testing.T) {
	c := Default()

	dup := sampleRecord()
	dup.Frames[2].Timestamp = dup.Frames[1].Timestamp
	_, err := c.Encode(dup)
	assert.ErrorIs(t, err, ErrMalformed)

	back := sampleRecord()
	back.Frames[3].Timestamp = 0.1
	_, err = c.Encode(back)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestEncode_RejectsUnknownKind(t *testing.T) {
	_, err := Default().Encode(&core.Record{ID: uuid.New(), Kind: core.Kind(42)})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_HugeFrameCount(t *testing.T) {
	c := Default()
	data, err := c.Encode(&core.Record{ID: uuid.New()})
	require.NoError(t, err)

	binary.LittleEndian.PutUint32(data[len(data)-4:], 0xFFFFFFFF)

	_, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecode_FrameCountBeyondData(t *testing.T) {
	c := Default()
	data, err := c.Encode(&core.Record{ID: uuid.New()})
	require.NoError(t, err)

	binary.LittleEndian.PutUint32(data[len(data)-4:], 3)

	_, err = c.Decode(data)
	assert.ErrorIs(t, err, ErrTruncated)
}
