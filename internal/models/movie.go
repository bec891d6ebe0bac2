// Package models defines the persisted movie and playback session entities.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/world"
)

// Movie is an ordered sequence of scenes played back to the same audience
type Movie struct {
	ID               uuid.UUID `json:"id" gorm:"type:text;primaryKey;column:id"`
	Name             string    `json:"name" gorm:"type:text;not null;column:name"`
	HasAfterLocation bool      `json:"has_after_location" gorm:"type:integer;not null;default:0;column:has_after_location"`
	AfterWorld       string    `json:"after_world,omitempty" gorm:"type:text;column:after_world"`
	AfterX           float64   `json:"after_x,omitempty" gorm:"type:real;column:after_x"`
	AfterY           float64   `json:"after_y,omitempty" gorm:"type:real;column:after_y"`
	AfterZ           float64   `json:"after_z,omitempty" gorm:"type:real;column:after_z"`
	AfterYaw         float32   `json:"after_yaw,omitempty" gorm:"type:real;column:after_yaw"`
	AfterPitch       float32   `json:"after_pitch,omitempty" gorm:"type:real;column:after_pitch"`
	CreatedAt        time.Time `json:"created_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:created_at"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"type:datetime;default:CURRENT_TIMESTAMP;column:updated_at"`

	// Populated by the repository, not stored in the movies table
	Scenes []*Scene `json:"scenes,omitempty" gorm:"-"`
}

// NewMovie creates a new Movie with generated UUID and timestamps
func NewMovie(name string) *Movie {
	now := time.Now().UTC()
	return &Movie{
		ID:        uuid.New(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetDestination sets where audiences are sent once the movie ends
func (m *Movie) SetDestination(loc world.Location) {
	m.HasAfterLocation = true
	m.AfterWorld = loc.World
	m.AfterX = loc.X
	m.AfterY = loc.Y
	m.AfterZ = loc.Z
	m.AfterYaw = loc.Yaw
	m.AfterPitch = loc.Pitch
}

// ClearDestination leaves audiences where the movie ends
func (m *Movie) ClearDestination() {
	m.HasAfterLocation = false
	m.AfterWorld = ""
	m.AfterX, m.AfterY, m.AfterZ = 0, 0, 0
	m.AfterYaw, m.AfterPitch = 0, 0
}

// Destination returns the post-playback location, if the movie has one
func (m *Movie) Destination() (world.Location, bool) {
	if !m.HasAfterLocation {
		return world.Location{}, false
	}
	return world.Location{
		World: m.AfterWorld,
		X:     m.AfterX,
		Y:     m.AfterY,
		Z:     m.AfterZ,
		Yaw:   m.AfterYaw,
		Pitch: m.AfterPitch,
	}, true
}
