package timeline

import (
	"errors"
	"fmt"
)

// Recording is the in-memory Timeline implementation
type Recording struct {
	name         string
	tracks       []Track
	loopBackTick int
}

// NewRecording creates a recording from already decoded tracks
func NewRecording(name string, loopBackTick int, tracks ...Track) *Recording {
	return &Recording{
		name:         name,
		tracks:       append([]Track(nil), tracks...),
		loopBackTick: loopBackTick,
	}
}

// Name returns the recording's library name
func (r *Recording) Name() string {
	return r.name
}

// Tracks returns the tracks in recorded order
func (r *Recording) Tracks() []Track {
	return append([]Track(nil), r.tracks...)
}

// LoopBackTick implements Timeline
func (r *Recording) LoopBackTick() int {
	return r.loopBackTick
}

// Play implements Timeline. Every selected track is played even if an earlier
// one fails; the failures are joined.
func (r *Recording) Play(p Player, tick int) error {
	mode := p.Mode()

	var errs []error
	for i, tr := range r.tracks {
		if !selected(mode, tr) {
			continue
		}
		if err := tr.Play(p, tick); err != nil {
			errs = append(errs, fmt.Errorf("recording %s track %d tick %d: %w", r.name, i, tick, err))
		}
	}
	return errors.Join(errs...)
}

func selected(mode PlayMode, tr Track) bool {
	_, isCamera := tr.(*CameraTrack)
	switch mode {
	case ModeCameraOnly:
		return isCamera
	case ModeTrackDataOnly:
		return !isCamera
	default:
		return true
	}
}
