// Package timeline describes recorded multi-track timelines and the contract
// a playback engine uses to drive them one tick at a time.
//
// A Timeline is shared and read-only: several engines may replay the same one
// concurrently, so any per-playback state a track keeps must be keyed by the
// Player it is handed.
package timeline

import (
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/world"
)

// PlayMode selects which tracks play and whether the timeline loops
type PlayMode string

const (
	// ModeAllPlay plays every track once
	ModeAllPlay PlayMode = "ALL_PLAY"

	// ModeTrackDataOnly plays every track except cameras
	ModeTrackDataOnly PlayMode = "TRACK_DATA_ONLY"

	// ModeCameraOnly plays camera tracks only
	ModeCameraOnly PlayMode = "CAMERA_ONLY"

	// ModeLoop plays every track and jumps back to the loop-back tick at the end
	ModeLoop PlayMode = "LOOP"
)

// Valid reports whether m is a known play mode
func (m PlayMode) Valid() bool {
	switch m {
	case ModeAllPlay, ModeTrackDataOnly, ModeCameraOnly, ModeLoop:
		return true
	}
	return false
}

// Player is the view of a running playback that tracks receive
type Player interface {
	ID() int
	BaseLocation() world.Location
	Audiences() []uuid.UUID
	Mode() PlayMode
}

// Track is one recorded lane of a timeline
type Track interface {
	// EndTick is the last tick this track has data for
	EndTick() int

	// PlayInitialize sets up per-playback state. It runs on the main thread.
	PlayInitialize(p Player)

	// Play applies the track's recorded state for tick
	Play(p Player, tick int) error

	// PlayEnd tears down per-playback state
	PlayEnd(p Player)
}

// OrientationTrack is implemented by tracks that can update orientation alone,
// which is what they do while a playback is parked on a spike tick
type OrientationTrack interface {
	Track
	PlayOrientationOnly(p Player, tick int)
}

// Timeline is an ordered collection of tracks
type Timeline interface {
	Tracks() []Track

	// LoopBackTick is where a looping playback jumps after its last tick
	LoopBackTick() int

	// Play dispatches tick to every track that the player's mode selects
	Play(p Player, tick int) error
}

// Dispatcher runs world-mutating actions on the main thread
type Dispatcher interface {
	Submit(action func())
}

// MaxEndTick returns the largest track end tick, or 0 for an empty timeline
func MaxEndTick(tl Timeline) int {
	end := 0
	for _, tr := range tl.Tracks() {
		if e := tr.EndTick(); e > end {
			end = e
		}
	}
	return end
}
