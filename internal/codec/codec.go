// Package codec reads and writes ghost records and the store index in a
// versioned, little-endian, fixed-width binary format.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/MidnightGrind/ghost/pkg/core"
	"github.com/google/uuid"
)

// CurrentVersion is the format version written by Default().
const CurrentVersion uint32 = 1

// FrameSize is the encoded size of one frame in bytes.
const FrameSize = 94

const (
	maxStringLen = 1 << 16
	maxFrames    = 1 << 24
	maxTimes     = 1 << 16
)

var (
	ErrVersionMismatch = errors.New("format version mismatch")
	ErrTruncated       = errors.New("truncated data")
	ErrMalformed       = errors.New("malformed data")
)

// Codec encodes and decodes exactly one format version.
type Codec struct {
	version uint32
}

// New creates a codec that understands only the given version.
func New(version uint32) *Codec {
	return &Codec{version: version}
}

// Default returns a codec for CurrentVersion.
func Default() *Codec {
	return New(CurrentVersion)
}

// Version returns the format version this codec reads and writes.
func (c *Codec) Version() uint32 {
	return c.version
}

// Encode serializes rec. The written format version is always the codec's
// own version, regardless of rec.FormatVersion. Records Decode would reject
// for their kind or frame order are refused with ErrMalformed.
func (c *Codec) Encode(rec *core.Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("encode: nil record")
	}
	if !rec.Kind.Valid() {
		return nil, fmt.Errorf("encode: unknown kind %d: %w", uint32(rec.Kind), ErrMalformed)
	}
	for i := 1; i < len(rec.Frames); i++ {
		if rec.Frames[i].Timestamp <= rec.Frames[i-1].Timestamp {
			return nil, fmt.Errorf("encode: frame %d timestamp not increasing: %w", i, ErrMalformed)
		}
	}

	w := writer{buf: make([]byte, 0, 256+len(rec.Frames)*FrameSize)}
	w.u32(c.version)
	w.raw(rec.ID[:])
	for _, s := range []string{rec.TrackID, rec.VehicleID, rec.PlayerID, rec.PlayerName} {
		if err := w.str(s); err != nil {
			return nil, err
		}
	}
	w.u32(uint32(rec.Kind))
	w.f32(rec.TotalTime)
	w.f32(rec.BestLapTime)
	w.i64(unixNano(rec.RecordedDate))
	if err := w.str(rec.GameVersion); err != nil {
		return nil, err
	}
	w.bool(rec.Validated)
	w.bool(rec.IsWorldRecord)
	w.u32(rec.CompressedFrameCount)

	w.f32s(rec.LapTimes)
	w.f32s(rec.SectorTimes)

	w.u32(uint32(len(rec.Frames)))
	for i := range rec.Frames {
		w.frame(&rec.Frames[i])
	}
	return w.buf, nil
}

// Decode parses a record. Either a fully formed record or an error is
// returned; the error wraps ErrVersionMismatch, ErrTruncated or ErrMalformed.
func (c *Codec) Decode(data []byte) (*core.Record, error) {
	r := reader{buf: data}

	version := r.u32()
	if r.err != nil {
		return nil, fmt.Errorf("decode record: %w", r.err)
	}
	if version != c.version {
		return nil, fmt.Errorf("decode record: got version %d, want %d: %w", version, c.version, ErrVersionMismatch)
	}

	rec := &core.Record{FormatVersion: version}
	r.read(rec.ID[:])
	rec.TrackID = r.str()
	rec.VehicleID = r.str()
	rec.PlayerID = r.str()
	rec.PlayerName = r.str()

	kind := core.Kind(r.u32())
	if r.err == nil && !kind.Valid() {
		r.fail(fmt.Errorf("unknown kind %d: %w", uint32(kind), ErrMalformed))
	}
	rec.Kind = kind
	rec.TotalTime = r.f32()
	rec.BestLapTime = r.f32()
	rec.RecordedDate = fromUnixNano(r.i64())
	rec.GameVersion = r.str()
	rec.Validated = r.bool()
	rec.IsWorldRecord = r.bool()
	rec.CompressedFrameCount = r.u32()

	rec.LapTimes = r.f32s()
	rec.SectorTimes = r.f32s()

	n := r.count(maxFrames, FrameSize)
	if n > 0 {
		rec.Frames = make([]core.Frame, n)
		for i := range rec.Frames {
			r.frame(&rec.Frames[i])
			if i > 0 && r.err == nil && rec.Frames[i].Timestamp <= rec.Frames[i-1].Timestamp {
				r.fail(fmt.Errorf("frame %d timestamp not increasing: %w", i, ErrMalformed))
			}
		}
	}

	if r.err == nil && r.off != len(r.buf) {
		r.fail(fmt.Errorf("%d trailing bytes: %w", len(r.buf)-r.off, ErrMalformed))
	}
	if r.err != nil {
		return nil, fmt.Errorf("decode record: %w", r.err)
	}
	return rec, nil
}

// Zero times are stored as 0 so they survive a round trip.
func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

type writer struct {
	buf []byte
}

func (w *writer) raw(b []byte) { w.buf = append(w.buf, b...) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }
func (w *writer) i32(v int32)  { w.u32(uint32(v)) }
func (w *writer) i64(v int64)  { w.buf = binary.LittleEndian.AppendUint64(w.buf, uint64(v)) }
func (w *writer) f32(v float32) {
	w.u32(math.Float32bits(v))
}

func (w *writer) bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *writer) str(s string) error {
	if len(s) > maxStringLen {
		return fmt.Errorf("encode: string of %d bytes exceeds %d", len(s), maxStringLen)
	}
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

func (w *writer) f32s(vs []float32) {
	w.u32(uint32(len(vs)))
	for _, v := range vs {
		w.f32(v)
	}
}

func (w *writer) vec(v core.Vec3) {
	w.f32(v.X)
	w.f32(v.Y)
	w.f32(v.Z)
}

func (w *writer) frame(f *core.Frame) {
	w.f32(f.Timestamp)
	w.vec(f.Position)
	w.f32(f.Rotation.Pitch)
	w.f32(f.Rotation.Yaw)
	w.f32(f.Rotation.Roll)
	w.vec(f.Velocity)
	w.f32(f.Speed)
	w.f32(f.Throttle)
	w.f32(f.Brake)
	w.f32(f.Steering)
	w.i32(f.Gear)
	w.f32(f.EngineRPM)
	w.bool(f.NitroActive)
	w.bool(f.Drifting)
	w.f32(f.WheelFL)
	w.f32(f.WheelFR)
	w.f32(f.WheelRL)
	w.f32(f.WheelRR)
	w.f32(f.DistanceAlongTrack)
	w.i32(f.LapNumber)
	w.i32(f.Sector)
}

// reader records the first error and turns every later read into a no-op.
type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n > len(r.buf)-r.off {
		r.fail(fmt.Errorf("need %d bytes at offset %d, have %d: %w", n, r.off, len(r.buf)-r.off, ErrTruncated))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) read(dst []byte) {
	if b := r.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) i32() int32   { return int32(r.u32()) }
func (r *reader) f32() float32 { return math.Float32frombits(r.u32()) }

func (r *reader) i64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(b))
}

func (r *reader) bool() bool {
	b := r.take(1)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail(fmt.Errorf("bool byte 0x%02x at offset %d: %w", b[0], r.off-1, ErrMalformed))
		return false
	}
}

// count reads a u32 element count. Counts above limit are malformed; counts
// whose elements cannot fit in the remaining bytes are truncated.
func (r *reader) count(limit, elemSize int) int {
	n := r.u32()
	if r.err != nil {
		return 0
	}
	if uint64(n) > uint64(limit) {
		r.fail(fmt.Errorf("count %d exceeds %d: %w", n, limit, ErrMalformed))
		return 0
	}
	if int(n)*elemSize > len(r.buf)-r.off {
		r.fail(fmt.Errorf("count %d needs %d bytes, have %d: %w", n, int(n)*elemSize, len(r.buf)-r.off, ErrTruncated))
		return 0
	}
	return int(n)
}

func (r *reader) str() string {
	n := r.count(maxStringLen, 1)
	if n == 0 {
		return ""
	}
	return string(r.take(n))
}

func (r *reader) f32s() []float32 {
	n := r.count(maxTimes, 4)
	if n == 0 {
		return nil
	}
	vs := make([]float32, n)
	for i := range vs {
		vs[i] = r.f32()
	}
	return vs
}

func (r *reader) vec() core.Vec3 {
	return core.Vec3{X: r.f32(), Y: r.f32(), Z: r.f32()}
}

func (r *reader) uuid() uuid.UUID {
	var id uuid.UUID
	r.read(id[:])
	return id
}

func (r *reader) frame(f *core.Frame) {
	f.Timestamp = r.f32()
	f.Position = r.vec()
	f.Rotation = core.Rotator{Pitch: r.f32(), Yaw: r.f32(), Roll: r.f32()}
	f.Velocity = r.vec()
	f.Speed = r.f32()
	f.Throttle = r.f32()
	f.Brake = r.f32()
	f.Steering = r.f32()
	f.Gear = r.i32()
	f.EngineRPM = r.f32()
	f.NitroActive = r.bool()
	f.Drifting = r.bool()
	f.WheelFL = r.f32()
	f.WheelFR = r.f32()
	f.WheelRL = r.f32()
	f.WheelRR = r.f32()
	f.DistanceAlongTrack = r.f32()
	f.LapNumber = r.i32()
	f.Sector = r.i32()
}
