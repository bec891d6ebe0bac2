package models

import (
	"time"

	"github.com/google/uuid"
)

// Movie play states
const (
	PlayStatePlaying  = "playing"
	PlayStateFinished = "finished"
	PlayStateStopped  = "stopped"
)

// MoviePlay records one playback of a movie. Its integer ID is the correlation
// id carried by the movie completion notification.
type MoviePlay struct {
	ID            int        `json:"id" gorm:"primaryKey;autoIncrement;column:id"`
	MovieID       uuid.UUID  `json:"movie_id" gorm:"type:text;not null;column:movie_id"`
	State         string     `json:"state" gorm:"type:text;not null;column:state"`
	AudienceCount int        `json:"audience_count" gorm:"type:integer;not null;default:0;column:audience_count"`
	StartedAt     time.Time  `json:"started_at" gorm:"type:datetime;not null;column:started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty" gorm:"type:datetime;column:finished_at"`
}

// NewMoviePlay creates a playing session record
func NewMoviePlay(movieID uuid.UUID, audienceCount int) *MoviePlay {
	return &MoviePlay{
		MovieID:       movieID,
		State:         PlayStatePlaying,
		AudienceCount: audienceCount,
		StartedAt:     time.Now().UTC(),
	}
}
