package world

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Mode controls how an observer may interact with the world
type Mode string

const (
	// ModeAdventure is the unrestricted observation-safe mode observers return to
	ModeAdventure Mode = "adventure"

	// ModeSpectator is used while a camera track drives the observer's viewpoint
	ModeSpectator Mode = "spectator"
)

var (
	// ErrObserverNotFound is returned when an observer id is unknown
	ErrObserverNotFound = errors.New("observer not found")

	// ErrStandInNotFound is returned when a stand-in id is unknown
	ErrStandInNotFound = errors.New("stand-in not found")
)

// Observer is a participant that can watch playbacks
type Observer struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Location Location  `json:"location"`
	Mode     Mode      `json:"mode"`

	// Viewpoint is set while a camera track drives what the observer sees
	Viewpoint *Location `json:"viewpoint,omitempty"`
}

func (o *Observer) snapshot() Observer {
	cp := *o
	if o.Viewpoint != nil {
		v := *o.Viewpoint
		cp.Viewpoint = &v
	}
	return cp
}

// StandIn is an entity that exists only to be moved by a track during playback.
// It is visible to the audiences of the playback that spawned it.
type StandIn struct {
	ID        uuid.UUID   `json:"id"`
	Name      string      `json:"name"`
	Location  Location    `json:"location"`
	Audiences []uuid.UUID `json:"audiences"`
}

// World is the shared live state. All methods are safe for concurrent use;
// callers outside the main dispatcher should still only mutate observers
// through it.
type World struct {
	mu        sync.RWMutex
	observers map[uuid.UUID]*Observer
	standIns  map[uuid.UUID]*StandIn
}

// New creates an empty world
func New() *World {
	return &World{
		observers: make(map[uuid.UUID]*Observer),
		standIns:  make(map[uuid.UUID]*StandIn),
	}
}

// Join adds an observer at loc, or returns the existing one with that id
func (w *World) Join(id uuid.UUID, name string, loc Location) Observer {
	w.mu.Lock()
	defer w.mu.Unlock()

	if o, ok := w.observers[id]; ok {
		return o.snapshot()
	}
	o := &Observer{ID: id, Name: name, Location: loc, Mode: ModeAdventure}
	w.observers[id] = o
	return o.snapshot()
}

// Leave removes an observer. It reports whether the observer was present.
func (w *World) Leave(id uuid.UUID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.observers[id]; !ok {
		return false
	}
	delete(w.observers, id)
	return true
}

// Observer returns a snapshot of an observer
func (w *World) Observer(id uuid.UUID) (Observer, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	o, ok := w.observers[id]
	if !ok {
		return Observer{}, false
	}
	return o.snapshot(), true
}

// Observers returns snapshots of all observers ordered by name
func (w *World) Observers() []Observer {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Observer, 0, len(w.observers))
	for _, o := range w.observers {
		out = append(out, o.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Teleport moves an observer to loc
func (w *World) Teleport(id uuid.UUID, loc Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	o, ok := w.observers[id]
	if !ok {
		return ErrObserverNotFound
	}
	o.Location = loc
	return nil
}

// SetMode changes an observer's interaction mode
func (w *World) SetMode(id uuid.UUID, mode Mode) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	o, ok := w.observers[id]
	if !ok {
		return ErrObserverNotFound
	}
	o.Mode = mode
	return nil
}

// SetViewpoint overrides what an observer sees without moving them
func (w *World) SetViewpoint(id uuid.UUID, loc Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	o, ok := w.observers[id]
	if !ok {
		return ErrObserverNotFound
	}
	o.Viewpoint = &loc
	return nil
}

// ClearViewpoint returns an observer's view to their own position
func (w *World) ClearViewpoint(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if o, ok := w.observers[id]; ok {
		o.Viewpoint = nil
	}
}

// Spawn creates a stand-in visible to audiences
func (w *World) Spawn(name string, loc Location, audiences []uuid.UUID) uuid.UUID {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := uuid.New()
	w.standIns[id] = &StandIn{
		ID:        id,
		Name:      name,
		Location:  loc,
		Audiences: append([]uuid.UUID(nil), audiences...),
	}
	return id
}

// MoveStandIn updates a stand-in's pose
func (w *World) MoveStandIn(id uuid.UUID, loc Location) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.standIns[id]
	if !ok {
		return ErrStandInNotFound
	}
	s.Location = loc
	return nil
}

// StandIn returns a snapshot of a stand-in
func (w *World) StandIn(id uuid.UUID) (StandIn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s, ok := w.standIns[id]
	if !ok {
		return StandIn{}, false
	}
	cp := *s
	cp.Audiences = append([]uuid.UUID(nil), s.Audiences...)
	return cp, true
}

// Despawn removes a stand-in
func (w *World) Despawn(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.standIns, id)
}

// StandInCount returns the number of live stand-ins
func (w *World) StandInCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.standIns)
}
