package playback

import (
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/timeline"
)

// Status is a point-in-time view of an engine
type Status struct {
	ID          int               `json:"id"`
	Tick        int               `json:"tick"`
	StartTick   int               `json:"start_tick"`
	EndTick     int               `json:"end_tick"`
	Mode        timeline.PlayMode `json:"mode"`
	Started     bool              `json:"started"`
	Scheduled   bool              `json:"scheduled"`
	Finished    bool              `json:"finished"`
	Parked      bool              `json:"parked"`
	SpikeTicks  map[int]bool      `json:"spike_ticks"`
	Audiences   []uuid.UUID       `json:"audiences"`
	HasNext     bool              `json:"has_next"`
	MoviePlayID int               `json:"movie_play_id"`
}

// Snapshot returns the engine's current status
func (e *Engine) Snapshot() Status {
	finished := e.Finished()

	e.mu.Lock()
	defer e.mu.Unlock()

	spikes := make(map[int]bool, len(e.spikes))
	for tick, look := range e.spikes {
		spikes[tick] = look
	}
	_, parked := e.spikes[e.tick]

	return Status{
		ID:          e.id,
		Tick:        e.tick,
		StartTick:   e.startTick,
		EndTick:     e.endTick,
		Mode:        e.mode,
		Started:     e.started,
		Scheduled:   e.handle != 0 && !finished,
		Finished:    finished,
		Parked:      parked && !finished,
		SpikeTicks:  spikes,
		Audiences:   append([]uuid.UUID(nil), e.audiences...),
		HasNext:     e.next != nil,
		MoviePlayID: e.playID,
	}
}
