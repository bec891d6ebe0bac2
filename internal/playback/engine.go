package playback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/models"
	"github.com/stwalsh4118/cinema/internal/notify"
	"github.com/stwalsh4118/cinema/internal/scheduler"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

// ErrAlreadyStarted is returned when Start is called on an engine twice
var ErrAlreadyStarted = errors.New("playback already started")

// noMoviePlay is the correlation id of an engine without a movie attached
const noMoviePlay = -1

// Engine replays one timeline to an audience.
//
// Preconditions the engine does not check: ticks are non-negative, a non-zero
// stopTick is not below startTick, and the SetNextPlayer chain has no cycles.
// Breaking them yields a playback that never ends or chains without bound.
type Engine struct {
	id        int
	rt        Runtime
	timeline  timeline.Timeline
	base      world.Location
	startTick int

	// mu guards the mutable playback state below
	mu        sync.Mutex
	tick      int
	endTick   int
	mode      timeline.PlayMode
	spikes    map[int]bool
	audiences []uuid.UUID
	next      *Engine
	movie     *models.Movie
	playID    int
	handle    scheduler.Handle
	started   bool

	// termMu serializes termination with itself and with scheduler registration
	termMu   sync.Mutex
	finished bool

	log zerolog.Logger
}

// New creates an engine positioned at startTick. A stopTick of 0 plays to the
// largest end tick among the timeline's tracks.
func New(rt Runtime, tl timeline.Timeline, base world.Location, startTick, stopTick int) (*Engine, error) {
	if err := rt.Validate(); err != nil {
		return nil, err
	}

	endTick := stopTick
	if stopTick == 0 {
		endTick = timeline.MaxEndTick(tl)
	}

	id := rt.IDs.Next()
	e := &Engine{
		id:        id,
		rt:        rt,
		timeline:  tl,
		base:      base,
		startTick: startTick,
		tick:      startTick,
		endTick:   endTick,
		mode:      timeline.ModeAllPlay,
		spikes:    make(map[int]bool),
		audiences: make([]uuid.UUID, 0),
		playID:    noMoviePlay,
		log:       logger.With("playback").With().Int("player_id", id).Logger(),
	}
	return e, nil
}

// ID returns the engine's unique id
func (e *Engine) ID() int {
	return e.id
}

// Timeline returns the timeline being replayed
func (e *Engine) Timeline() timeline.Timeline {
	return e.timeline
}

// BaseLocation returns a copy of the anchor recorded poses are relative to
func (e *Engine) BaseLocation() world.Location {
	return e.base.Clone()
}

// Audiences returns a copy of the current audience
func (e *Engine) Audiences() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.audiences...)
}

// SetAudiences replaces the audience. Changes after Start are seen by
// termination, which reads the audience when it runs.
func (e *Engine) SetAudiences(audiences []uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audiences = append(make([]uuid.UUID, 0, len(audiences)), audiences...)
}

// AddAudience appends one observer to the audience
func (e *Engine) AddAudience(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.audiences = append(e.audiences, id)
}

// Mode returns the play mode; ModeAllPlay until Start sets it
func (e *Engine) Mode() timeline.PlayMode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// Tick returns the cursor
func (e *Engine) Tick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tick
}

// StartTick returns the tick playback started from
func (e *Engine) StartTick() int {
	return e.startTick
}

// EndTick returns the last tick played before the engine ends or loops
func (e *Engine) EndTick() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.endTick
}

// SetNextPlayer sets the engine started when this one terminates
func (e *Engine) SetNextPlayer(next *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next = next
}

// HasNextPlayer reports whether a successor is attached
func (e *Engine) HasNextPlayer() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next != nil
}

// SetMovie attaches a movie and the correlation id of this play of it
func (e *Engine) SetMovie(movie *models.Movie, playID int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.movie = movie
	e.playID = playID
}

// Movie returns the attached movie, or nil
func (e *Engine) Movie() *models.Movie {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.movie
}

// MoviePlayID returns the movie correlation id, -1 when no movie is attached
func (e *Engine) MoviePlayID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playID
}

// Handle returns the scheduler registration, zero until the engine is scheduled
func (e *Engine) Handle() scheduler.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handle
}

// SetSpikeTicks replaces the pause table. The value says whether orientation
// tracks keep facing the audience while parked.
func (e *Engine) SetSpikeTicks(spikes map[int]bool) {
	cp := make(map[int]bool, len(spikes))
	for tick, look := range spikes {
		cp[tick] = look
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.spikes = cp
}

// SpikeTicks returns a copy of the pause table
func (e *Engine) SpikeTicks() map[int]bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make(map[int]bool, len(e.spikes))
	for tick, look := range e.spikes {
		cp[tick] = look
	}
	return cp
}

// Resume lifts the pause at tick. It reports whether there was one.
func (e *Engine) Resume(tick int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.spikes[tick]; !ok {
		return false
	}
	delete(e.spikes, tick)
	e.log.Info().Int("tick", tick).Msg("Spike tick resumed")
	return true
}

// Finished reports whether termination has run
func (e *Engine) Finished() bool {
	e.termMu.Lock()
	defer e.termMu.Unlock()
	return e.finished
}

// Start records mode and, on the main thread, initializes every track and
// registers the step with the scheduler.
func (e *Engine) Start(mode timeline.PlayMode) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mode = mode
	e.mu.Unlock()

	e.log.Info().
		Str("mode", string(mode)).
		Int("start_tick", e.startTick).
		Int("end_tick", e.EndTick()).
		Msg("Starting playback")

	e.rt.Dispatcher.Submit(e.initialize)
	return nil
}

// initialize runs on the main thread
func (e *Engine) initialize() {
	e.termMu.Lock()
	defer e.termMu.Unlock()

	// Terminated before the main thread got to us
	if e.finished {
		return
	}

	for _, tr := range e.timeline.Tracks() {
		tr.PlayInitialize(e)
	}

	warmup, period := e.rt.timing()
	h, err := e.rt.Scheduler.Schedule(e.Step, warmup, period)
	if err != nil {
		e.log.Error().Err(err).Msg("Failed to schedule playback")
		return
	}

	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()

	e.log.Debug().
		Uint64("handle", uint64(h)).
		Int("warmup_ticks", warmup).
		Int("period_ticks", period).
		Msg("Playback scheduled")
}

// Step advances playback by one tick. It is called by the scheduler; calls
// must not overlap. A failing track aborts the step before the cursor moves,
// so the same tick is retried on the next step.
func (e *Engine) Step() error {
	if e.Finished() {
		return nil
	}

	e.mu.Lock()
	tick := e.tick
	look, parked := e.spikes[tick]
	e.mu.Unlock()

	if parked {
		if look {
			for _, tr := range e.timeline.Tracks() {
				if ot, ok := tr.(timeline.OrientationTrack); ok {
					ot.PlayOrientationOnly(e, tick)
				}
			}
		}
		return nil
	}

	if err := e.timeline.Play(e, tick); err != nil {
		return fmt.Errorf("player %d tick %d: %w", e.id, tick, err)
	}

	e.mu.Lock()
	if tick == e.endTick {
		if e.mode != timeline.ModeLoop {
			e.mu.Unlock()
			return e.Terminate()
		}
		e.tick = e.timeline.LoopBackTick()
		e.log.Debug().Int("loop_back_tick", e.tick).Msg("Looping playback")
	}
	// Also after a loop-back, so the next step plays loopBackTick+1
	e.tick++
	e.mu.Unlock()

	return nil
}

// Terminate ends playback. The first call publishes SceneFinished, ends every
// track, starts the successor with this engine's mode, relocates the movie
// audience and publishes MovieFinished, then cancels scheduling. Later calls
// only cancel scheduling, which fails with scheduler.ErrNotScheduled.
func (e *Engine) Terminate() error {
	e.termMu.Lock()
	defer e.termMu.Unlock()

	if e.finished {
		return e.cancel()
	}
	e.finished = true

	e.mu.Lock()
	next := e.next
	movie := e.movie
	playID := e.playID
	mode := e.mode
	tick := e.tick
	e.mu.Unlock()

	e.log.Info().Int("tick", tick).Msg("Playback finished")

	e.rt.Notifier.Publish(notify.SceneFinished{PlayerID: e.id})

	for _, tr := range e.timeline.Tracks() {
		tr.PlayEnd(e)
	}

	if next != nil {
		if err := next.Start(mode); err != nil {
			e.log.Warn().
				Err(err).
				Int("next_player_id", next.ID()).
				Msg("Failed to start next player")
		}
	}

	if movie != nil {
		if dest, ok := movie.Destination(); ok {
			e.rt.Dispatcher.Submit(func() {
				e.relocate(dest)
			})
		}
		e.rt.Notifier.Publish(notify.MovieFinished{PlayID: playID, Movie: movie})
		e.log.Info().
			Int("play_id", playID).
			Str("movie_id", movie.ID.String()).
			Msg("Movie finished")
	}

	return e.cancel()
}

// relocate runs on the main thread and reads the audience at that point
func (e *Engine) relocate(dest world.Location) {
	for _, id := range e.Audiences() {
		if err := e.rt.World.SetMode(id, world.ModeAdventure); err != nil {
			e.log.Debug().Err(err).Str("observer_id", id.String()).Msg("Skipping audience member")
			continue
		}
		if err := e.rt.World.Teleport(id, dest); err != nil {
			e.log.Debug().Err(err).Str("observer_id", id.String()).Msg("Failed to relocate audience member")
		}
	}
}

func (e *Engine) cancel() error {
	e.mu.Lock()
	h := e.handle
	e.mu.Unlock()

	if h == 0 {
		return fmt.Errorf("player %d: %w", e.id, scheduler.ErrNotScheduled)
	}
	if err := e.rt.Scheduler.Cancel(h); err != nil {
		return fmt.Errorf("player %d: %w", e.id, err)
	}
	return nil
}
