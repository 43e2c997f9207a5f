// pkg/core/frame.go
package core

import "math"

// Vec3 is a position or velocity in track units.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Dist returns the euclidean distance between two points.
func (v Vec3) Dist(o Vec3) float64 {
	dx := float64(v.X) - float64(o.X)
	dy := float64(v.Y) - float64(o.Y)
	dz := float64(v.Z) - float64(o.Z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Lerp interpolates componentwise between v and o.
func (v Vec3) Lerp(o Vec3, alpha float32) Vec3 {
	return Vec3{
		X: Lerp(v.X, o.X, alpha),
		Y: Lerp(v.Y, o.Y, alpha),
		Z: Lerp(v.Z, o.Z, alpha),
	}
}

// Rotator is an orientation in degrees.
type Rotator struct {
	Pitch float32 `json:"pitch"`
	Yaw   float32 `json:"yaw"`
	Roll  float32 `json:"roll"`
}

// Lerp interpolates componentwise between r and o. Angles are not unwrapped,
// so a yaw crossing ±180 between two samples sweeps the long way round.
func (r Rotator) Lerp(o Rotator, alpha float32) Rotator {
	return Rotator{
		Pitch: Lerp(r.Pitch, o.Pitch, alpha),
		Yaw:   Lerp(r.Yaw, o.Yaw, alpha),
		Roll:  Lerp(r.Roll, o.Roll, alpha),
	}
}

// YawDelta returns the absolute heading difference between two rotators,
// wrapped into [0, 180].
func YawDelta(a, b Rotator) float64 {
	d := math.Mod(float64(a.Yaw)-float64(b.Yaw), 360)
	if d < -180 {
		d += 360
	} else if d > 180 {
		d -= 360
	}
	return math.Abs(d)
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b, alpha float32) float32 {
	return a + (b-a)*alpha
}

// Frame is one time-stamped vehicle sample within a Record.
// Field order matches the on-disk layout.
type Frame struct {
	Timestamp          float32 `json:"timestamp"` // seconds since recording start
	Position           Vec3    `json:"position"`
	Rotation           Rotator `json:"rotation"`
	Velocity           Vec3    `json:"velocity"`
	Speed              float32 `json:"speed"`
	Throttle           float32 `json:"throttle"`
	Brake              float32 `json:"brake"`
	Steering           float32 `json:"steering"`
	Gear               int32   `json:"gear"`
	EngineRPM          float32 `json:"engineRpm"`
	NitroActive        bool    `json:"nitroActive"`
	Drifting           bool    `json:"drifting"`
	WheelFL            float32 `json:"wheelFL"`
	WheelFR            float32 `json:"wheelFR"`
	WheelRL            float32 `json:"wheelRL"`
	WheelRR            float32 `json:"wheelRR"`
	DistanceAlongTrack float32 `json:"distanceAlongTrack"`
	LapNumber          int32   `json:"lapNumber"`
	Sector             int32   `json:"sector"`
}
