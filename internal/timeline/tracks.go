package timeline

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/world"
)

// ErrNotInitialized is returned when a track is played for a player it was
// never initialized for
var ErrNotInitialized = errors.New("track not initialized for player")

// Keyframe is a recorded pose relative to the playback's base location
type Keyframe struct {
	Tick int            `json:"tick"`
	Pose world.Location `json:"pose"`
}

// keyframes indexes recorded poses by tick
type keyframes struct {
	byTick  map[int]world.Location
	first   world.Location
	endTick int
}

func newKeyframes(frames []Keyframe) keyframes {
	k := keyframes{byTick: make(map[int]world.Location, len(frames))}
	firstTick := -1
	for _, f := range frames {
		k.byTick[f.Tick] = f.Pose
		if f.Tick > k.endTick {
			k.endTick = f.Tick
		}
		if firstTick < 0 || f.Tick < firstTick {
			firstTick = f.Tick
			k.first = f.Pose
		}
	}
	return k
}

// ActorTrack moves a stand-in through recorded poses. Ticks without a
// keyframe leave the stand-in where it is.
type ActorTrack struct {
	name   string
	world  *world.World
	frames keyframes

	mu       sync.Mutex
	standIns map[int]uuid.UUID
}

// NewActorTrack creates an actor track for the stand-in called name
func NewActorTrack(name string, w *world.World, frames []Keyframe) *ActorTrack {
	return &ActorTrack{
		name:     name,
		world:    w,
		frames:   newKeyframes(frames),
		standIns: make(map[int]uuid.UUID),
	}
}

// EndTick implements Track
func (t *ActorTrack) EndTick() int {
	return t.frames.endTick
}

// PlayInitialize spawns the stand-in at its first recorded pose
func (t *ActorTrack) PlayInitialize(p Player) {
	id := t.world.Spawn(t.name, p.BaseLocation().Add(t.frames.first), p.Audiences())

	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.standIns[p.ID()]; ok {
		t.world.Despawn(old)
	}
	t.standIns[p.ID()] = id
}

// Play moves the stand-in to the pose recorded for tick
func (t *ActorTrack) Play(p Player, tick int) error {
	pose, ok := t.frames.byTick[tick]
	if !ok {
		return nil
	}

	id, err := t.standIn(p)
	if err != nil {
		return err
	}
	if err := t.world.MoveStandIn(id, p.BaseLocation().Add(pose)); err != nil {
		return fmt.Errorf("actor %s: %w", t.name, err)
	}
	return nil
}

// PlayOrientationOnly turns the stand-in toward the closest audience member
// without moving it
func (t *ActorTrack) PlayOrientationOnly(p Player, tick int) {
	id, err := t.standIn(p)
	if err != nil {
		return
	}
	self, ok := t.world.StandIn(id)
	if !ok {
		return
	}

	var nearest *world.Location
	best := 0.0
	for _, aid := range p.Audiences() {
		o, ok := t.world.Observer(aid)
		if !ok || o.Location.World != self.Location.World {
			continue
		}
		d := self.Location.DistanceSquared(o.Location)
		if nearest == nil || d < best {
			loc := o.Location
			nearest = &loc
			best = d
		}
	}
	if nearest == nil {
		return
	}

	_ = t.world.MoveStandIn(id, self.Location.LookAt(*nearest))
}

// PlayEnd removes the stand-in
func (t *ActorTrack) PlayEnd(p Player) {
	t.mu.Lock()
	id, ok := t.standIns[p.ID()]
	delete(t.standIns, p.ID())
	t.mu.Unlock()

	if ok {
		t.world.Despawn(id)
	}
}

func (t *ActorTrack) standInFor(playerID int) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.standIns[playerID]
	return id, ok
}

func (t *ActorTrack) standIn(p Player) (uuid.UUID, error) {
	id, ok := t.standInFor(p.ID())
	if !ok {
		return uuid.Nil, fmt.Errorf("actor %s player %d: %w", t.name, p.ID(), ErrNotInitialized)
	}
	return id, nil
}

// CameraTrack drives the audience viewpoint along recorded poses
type CameraTrack struct {
	world      *world.World
	dispatcher Dispatcher
	frames     keyframes
}

// NewCameraTrack creates a camera track. Restoring audiences at the end is
// submitted through dispatcher.
func NewCameraTrack(w *world.World, dispatcher Dispatcher, frames []Keyframe) *CameraTrack {
	return &CameraTrack{
		world:      w,
		dispatcher: dispatcher,
		frames:     newKeyframes(frames),
	}
}

// EndTick implements Track
func (t *CameraTrack) EndTick() int {
	return t.frames.endTick
}

// PlayInitialize switches the audience to spectating from the first pose
func (t *CameraTrack) PlayInitialize(p Player) {
	view := p.BaseLocation().Add(t.frames.first)
	for _, id := range p.Audiences() {
		if err := t.world.SetMode(id, world.ModeSpectator); err != nil {
			continue
		}
		_ = t.world.SetViewpoint(id, view)
	}
}

// Play moves every audience member's viewpoint. Audience members that have
// left the world are skipped.
func (t *CameraTrack) Play(p Player, tick int) error {
	pose, ok := t.frames.byTick[tick]
	if !ok {
		return nil
	}

	view := p.BaseLocation().Add(pose)
	for _, id := range p.Audiences() {
		if err := t.world.SetViewpoint(id, view); err != nil && !errors.Is(err, world.ErrObserverNotFound) {
			return err
		}
	}
	return nil
}

// PlayEnd hands the audience their own view back
func (t *CameraTrack) PlayEnd(p Player) {
	audiences := p.Audiences()
	t.dispatcher.Submit(func() {
		for _, id := range audiences {
			t.world.ClearViewpoint(id)
			_ = t.world.SetMode(id, world.ModeAdventure)
		}
	})
}
