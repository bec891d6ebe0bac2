package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scene is one recording played as part of a movie
type Scene struct {
	ID        uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	MovieID   uuid.UUID `json:"movie_id" gorm:"type:text;not null;column:movie_id"`
	Position  int       `json:"position" gorm:"type:integer;not null;column:position"`
	Recording string    `json:"recording" gorm:"type:text;not null;column:recording"`
	StartTick int       `json:"start_tick" gorm:"type:integer;not null;default:0;column:start_tick"`
	// StopTick of 0 plays to the end of the recording
	StopTick   int       `json:"stop_tick" gorm:"type:integer;not null;default:0;column:stop_tick"`
	SpikeTicks string    `json:"-" gorm:"type:text;not null;default:'{}';column:spike_ticks"`
	CreatedAt  time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
}

// NewScene creates a new Scene with generated UUID and timestamp
func NewScene(movieID uuid.UUID, position int, recording string, startTick, stopTick int) *Scene {
	return &Scene{
		ID:         uuid.New(),
		MovieID:    movieID,
		Position:   position,
		Recording:  recording,
		StartTick:  startTick,
		StopTick:   stopTick,
		SpikeTicks: "{}",
		CreatedAt:  time.Now().UTC(),
	}
}

// Spikes decodes the pause table: tick to whether stand-ins keep facing the audience
func (s *Scene) Spikes() (map[int]bool, error) {
	spikes := make(map[int]bool)
	if s.SpikeTicks == "" {
		return spikes, nil
	}
	if err := json.Unmarshal([]byte(s.SpikeTicks), &spikes); err != nil {
		return nil, fmt.Errorf("failed to decode spike ticks for scene %s: %w", s.ID, err)
	}
	return spikes, nil
}

// SetSpikes encodes the pause table
func (s *Scene) SetSpikes(spikes map[int]bool) error {
	if len(spikes) == 0 {
		s.SpikeTicks = "{}"
		return nil
	}
	raw, err := json.Marshal(spikes)
	if err != nil {
		return fmt.Errorf("failed to encode spike ticks: %w", err)
	}
	s.SpikeTicks = string(raw)
	return nil
}
