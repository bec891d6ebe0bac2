package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cinema/internal/world"
)

func TestMovie_Destination(t *testing.T) {
	m := NewMovie("intro")

	_, ok := m.Destination()
	assert.False(t, ok)

	want := world.Location{World: "lobby", X: 1, Y: 65, Z: -3, Yaw: 180}
	m.SetDestination(want)

	got, ok := m.Destination()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestScene_Spikes(t *testing.T) {
	s := NewScene(uuid.New(), 0, "opening", 0, 0)

	spikes, err := s.Spikes()
	require.NoError(t, err)
	assert.Empty(t, spikes)

	require.NoError(t, s.SetSpikes(map[int]bool{7: true, 20: false}))
	spikes, err = s.Spikes()
	require.NoError(t, err)
	assert.Equal(t, map[int]bool{7: true, 20: false}, spikes)

	require.NoError(t, s.SetSpikes(nil))
	assert.Equal(t, "{}", s.SpikeTicks)
}

func TestScene_SpikesRejectsGarbage(t *testing.T) {
	s := NewScene(uuid.New(), 0, "opening", 0, 0)
	s.SpikeTicks = "not json"

	_, err := s.Spikes()
	assert.Error(t, err)
}

func TestNewMoviePlay(t *testing.T) {
	id := uuid.New()
	p := NewMoviePlay(id, 3)

	assert.Equal(t, id, p.MovieID)
	assert.Equal(t, PlayStatePlaying, p.State)
	assert.Equal(t, 3, p.AudienceCount)
	assert.Nil(t, p.FinishedAt)
}
