package world

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_AddKeepsWorldAndTakesOffsetFacing(t *testing.T) {
	base := Location{World: "stage", X: 10, Y: 64, Z: -5, Yaw: 90, Pitch: 10}
	got := base.Add(Location{X: 1.5, Y: 2, Z: 3, Yaw: 45, Pitch: -20})

	assert.Equal(t, "stage", got.World)
	assert.InDelta(t, 11.5, got.X, 1e-9)
	assert.InDelta(t, 66, got.Y, 1e-9)
	assert.InDelta(t, -2, got.Z, 1e-9)
	assert.Equal(t, float32(45), got.Yaw)
	assert.Equal(t, float32(-20), got.Pitch)
}

func TestLocation_CloneIsIndependent(t *testing.T) {
	base := Location{World: "stage", X: 1}
	cp := base.Clone()
	cp.X = 99

	assert.InDelta(t, 1, base.X, 1e-9)
}

func TestLocation_LookAt(t *testing.T) {
	from := Location{World: "stage"}

	south := from.LookAt(Location{Z: 10})
	assert.InDelta(t, 0, south.Yaw, 1e-4)
	assert.InDelta(t, 0, south.Pitch, 1e-4)

	up := from.LookAt(Location{Y: 10, Z: 10})
	assert.InDelta(t, -45, up.Pitch, 1e-4)
}

func TestWorld_JoinIsIdempotent(t *testing.T) {
	w := New()
	id := uuid.New()

	first := w.Join(id, "alice", Location{World: "lobby"})
	second := w.Join(id, "renamed", Location{World: "elsewhere"})

	assert.Equal(t, first, second)
	assert.Equal(t, ModeAdventure, first.Mode)
	assert.Len(t, w.Observers(), 1)
}

func TestWorld_LeaveAndListing(t *testing.T) {
	w := New()
	bob := uuid.New()
	w.Join(bob, "bob", Location{World: "lobby"})
	w.Join(uuid.New(), "alice", Location{World: "lobby"})

	observers := w.Observers()
	require.Len(t, observers, 2)
	assert.Equal(t, "alice", observers[0].Name)
	assert.Equal(t, "bob", observers[1].Name)

	assert.True(t, w.Leave(bob))
	assert.False(t, w.Leave(bob))
	_, ok := w.Observer(bob)
	assert.False(t, ok)
	assert.Len(t, w.Observers(), 1)
}

func TestWorld_TeleportAndSetMode(t *testing.T) {
	w := New()
	id := uuid.New()
	w.Join(id, "alice", Location{World: "lobby"})

	require.NoError(t, w.Teleport(id, Location{World: "stage", X: 3}))
	require.NoError(t, w.SetMode(id, ModeSpectator))

	o, ok := w.Observer(id)
	require.True(t, ok)
	assert.Equal(t, "stage", o.Location.World)
	assert.Equal(t, ModeSpectator, o.Mode)

	assert.ErrorIs(t, w.Teleport(uuid.New(), Location{}), ErrObserverNotFound)
	assert.ErrorIs(t, w.SetMode(uuid.New(), ModeAdventure), ErrObserverNotFound)
}

func TestWorld_StandInLifecycle(t *testing.T) {
	w := New()
	audience := []uuid.UUID{uuid.New()}

	id := w.Spawn("actor", Location{World: "stage"}, audience)
	audience[0] = uuid.Nil

	s, ok := w.StandIn(id)
	require.True(t, ok)
	assert.NotEqual(t, uuid.Nil, s.Audiences[0])

	require.NoError(t, w.MoveStandIn(id, Location{World: "stage", X: 4}))
	s, _ = w.StandIn(id)
	assert.InDelta(t, 4, s.Location.X, 1e-9)

	w.Despawn(id)
	assert.Equal(t, 0, w.StandInCount())
	assert.ErrorIs(t, w.MoveStandIn(id, Location{}), ErrStandInNotFound)
}

func TestWorld_Viewpoint(t *testing.T) {
	w := New()
	id := uuid.New()
	w.Join(id, "alice", Location{World: "lobby"})

	require.NoError(t, w.SetViewpoint(id, Location{World: "stage", Y: 80}))
	o, _ := w.Observer(id)
	require.NotNil(t, o.Viewpoint)
	assert.InDelta(t, 80, o.Viewpoint.Y, 1e-9)
	assert.Equal(t, "lobby", o.Location.World)

	o.Viewpoint.Y = 0
	again, _ := w.Observer(id)
	assert.InDelta(t, 80, again.Viewpoint.Y, 1e-9)

	w.ClearViewpoint(id)
	o, _ = w.Observer(id)
	assert.Nil(t, o.Viewpoint)

	assert.ErrorIs(t, w.SetViewpoint(uuid.New(), Location{}), ErrObserverNotFound)
}
