// Package world holds the live simulated environment that playbacks are shown in:
// observers watching a playback and the stand-in entities tracks move around.
package world

import "math"

// Location is a position plus facing inside a named world.
// It is a value type; assigning or returning it copies it.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// Clone returns a copy of the location
func (l Location) Clone() Location {
	return l
}

// Add offsets the location by a relative pose. Facing is taken from the offset,
// since recorded orientation is absolute.
func (l Location) Add(offset Location) Location {
	return Location{
		World: l.World,
		X:     l.X + offset.X,
		Y:     l.Y + offset.Y,
		Z:     l.Z + offset.Z,
		Yaw:   offset.Yaw,
		Pitch: offset.Pitch,
	}
}

// DistanceSquared returns the squared distance to other, ignoring facing
func (l Location) DistanceSquared(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// LookAt returns the location turned to face target
func (l Location) LookAt(target Location) Location {
	dx := target.X - l.X
	dy := target.Y - l.Y
	dz := target.Z - l.Z

	horizontal := math.Sqrt(dx*dx + dz*dz)
	yaw := math.Atan2(-dx, dz) * 180 / math.Pi
	pitch := -math.Atan2(dy, horizontal) * 180 / math.Pi

	l.Yaw = float32(yaw)
	l.Pitch = float32(pitch)
	return l
}
