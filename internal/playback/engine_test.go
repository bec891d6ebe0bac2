package playback

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stwalsh4118/cinema/internal/dispatch"
	"github.com/stwalsh4118/cinema/internal/models"
	"github.com/stwalsh4118/cinema/internal/notify"
	"github.com/stwalsh4118/cinema/internal/scheduler"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

// spyTrack records every call the engine makes into it
type spyTrack struct {
	mu          sync.Mutex
	end         int
	initialized int
	played      []int
	oriented    []int
	ended       int
	modes       []timeline.PlayMode
	failAt      map[int]error
}

func (p *spyTrack) EndTick() int { return p.end }

func (p *spyTrack) PlayInitialize(pl timeline.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initialized++
}

func (p *spyTrack) Play(pl timeline.Player, tick int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.failAt[tick]; err != nil {
		return err
	}
	p.played = append(p.played, tick)
	p.modes = append(p.modes, pl.Mode())
	return nil
}

func (p *spyTrack) PlayEnd(pl timeline.Player) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ended++
}

func (p *spyTrack) playedTicks() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.played...)
}

// lookTrack is a spyTrack with the orientation capability
type lookTrack struct {
	spyTrack
}

func (l *lookTrack) PlayOrientationOnly(pl timeline.Player, tick int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.oriented = append(l.oriented, tick)
}

// deferredDispatcher holds actions until Flush, like a busy main thread
type deferredDispatcher struct {
	mu      sync.Mutex
	pending []func()
}

func (d *deferredDispatcher) Submit(action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, action)
}

func (d *deferredDispatcher) Flush() {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()
	for _, action := range pending {
		action()
	}
}

// eventLog collects published notifications
type eventLog struct {
	mu     sync.Mutex
	events []notify.Event
}

func (l *eventLog) handle(e notify.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) scenes() []notify.SceneFinished {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []notify.SceneFinished
	for _, e := range l.events {
		if s, ok := e.(notify.SceneFinished); ok {
			out = append(out, s)
		}
	}
	return out
}

func (l *eventLog) movies() []notify.MovieFinished {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []notify.MovieFinished
	for _, e := range l.events {
		if m, ok := e.(notify.MovieFinished); ok {
			out = append(out, m)
		}
	}
	return out
}

type harness struct {
	rt     Runtime
	sched  *scheduler.ManualScheduler
	world  *world.World
	events *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	sink := notify.NewSink()
	events := &eventLog{}
	require.NoError(t, sink.Subscribe("test", events.handle))

	h := &harness{
		sched:  scheduler.NewManualScheduler(),
		world:  world.New(),
		events: events,
	}
	h.rt = Runtime{
		IDs:        NewIDAllocator(),
		Scheduler:  h.sched,
		Dispatcher: dispatch.Inline{},
		Notifier:   sink,
		World:      h.world,
	}
	return h
}

func (h *harness) engine(t *testing.T, tl timeline.Timeline, startTick, stopTick int) *Engine {
	t.Helper()
	e, err := New(h.rt, tl, world.Location{World: "stage"}, startTick, stopTick)
	require.NoError(t, err)
	return e
}

func TestNew_ComputesEndTickFromTracks(t *testing.T) {
	h := newHarness(t)
	tl := timeline.NewRecording("r", 0, &spyTrack{end: 40}, &spyTrack{end: 55}, &spyTrack{end: 30})

	e := h.engine(t, tl, 0, 0)

	assert.Equal(t, 55, e.EndTick())
	assert.Equal(t, 0, e.Tick())
}

func TestNew_ExplicitStopTick(t *testing.T) {
	h := newHarness(t)
	tl := timeline.NewRecording("r", 0, &spyTrack{end: 40})

	e := h.engine(t, tl, 12, 20)

	assert.Equal(t, 20, e.EndTick())
	assert.Equal(t, 12, e.Tick())
	assert.Equal(t, 12, e.StartTick())
}

func TestNew_EmptyTimelineEndsAtZero(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("empty", 0), 0, 0)
	assert.Equal(t, 0, e.EndTick())
}

func TestNew_RejectsIncompleteRuntime(t *testing.T) {
	_, err := New(Runtime{}, timeline.NewRecording("r", 0), world.Location{}, 0, 0)
	assert.ErrorIs(t, err, ErrInvalidRuntime)
}

func TestNew_IDsStrictlyIncrease(t *testing.T) {
	h := newHarness(t)
	tl := timeline.NewRecording("r", 0)

	prev := -1
	for i := 0; i < 10; i++ {
		e := h.engine(t, tl, 0, 0)
		assert.Greater(t, e.ID(), prev)
		prev = e.ID()
	}
	assert.Equal(t, 10, h.engine(t, tl, 0, 0).ID())
}

func TestIDAllocator_ConcurrentUnique(t *testing.T) {
	a := NewIDAllocator()
	var mu sync.Mutex
	seen := make(map[int]bool)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := a.Next()
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.Equal(t, 50, a.Next())
}

func TestEngine_DefaultsBeforeStart(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("r", 0), 0, 0)

	assert.Equal(t, timeline.ModeAllPlay, e.Mode())
	assert.Equal(t, -1, e.MoviePlayID())
	assert.Empty(t, e.SpikeTicks())
	assert.Empty(t, e.Audiences())
	assert.False(t, e.HasNextPlayer())
	assert.False(t, e.Finished())
	assert.Nil(t, e.Movie())
}

func TestEngine_BaseLocationIsACopy(t *testing.T) {
	h := newHarness(t)
	e, err := New(h.rt, timeline.NewRecording("r", 0), world.Location{World: "stage", X: 5}, 0, 0)
	require.NoError(t, err)

	loc := e.BaseLocation()
	loc.X = 99

	assert.InDelta(t, 5, e.BaseLocation().X, 1e-9)
}

func TestEngine_AccessorsReturnCopies(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("r", 0), 0, 0)

	spikes := map[int]bool{3: true}
	e.SetSpikeTicks(spikes)
	spikes[4] = false
	got := e.SpikeTicks()
	got[5] = true
	assert.Equal(t, map[int]bool{3: true}, e.SpikeTicks())

	a := uuid.New()
	e.SetAudiences([]uuid.UUID{a})
	aud := e.Audiences()
	aud[0] = uuid.Nil
	assert.Equal(t, []uuid.UUID{a}, e.Audiences())
}

func TestEngine_StartInitializesThenWarmsUp(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	assert.Equal(t, 1, track.initialized)
	assert.Equal(t, 1, h.sched.Active())

	h.sched.Advance(DefaultWarmupTicks - 1)
	assert.Empty(t, track.playedTicks())

	h.sched.Advance(1)
	assert.Equal(t, []int{0}, track.playedTicks())
	assert.Equal(t, []timeline.PlayMode{timeline.ModeAllPlay}, track.modes)
}

func TestEngine_StartTwice(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("r", 0, &spyTrack{end: 3}), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	assert.ErrorIs(t, e.Start(timeline.ModeLoop), ErrAlreadyStarted)
	assert.Equal(t, timeline.ModeAllPlay, e.Mode())
}

func TestEngine_PlaysEveryTickThenTerminatesOnce(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 30)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, track.playedTicks())
	assert.True(t, e.Finished())
	assert.Equal(t, 1, track.ended)
	assert.Equal(t, []notify.SceneFinished{{PlayerID: e.ID()}}, h.events.scenes())
	assert.Equal(t, 0, h.sched.Active())
	assert.Empty(t, h.sched.Failures())
}

func TestEngine_StartTickOffsetsCursor(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 7, 9)

	require.NoError(t, e.Start(timeline.ModeTrackDataOnly))
	h.sched.Advance(DefaultWarmupTicks + 10)

	assert.Equal(t, []int{7, 8, 9}, track.playedTicks())
	assert.True(t, e.Finished())
}

func TestEngine_LoopJumpsToLoopBackPlusOne(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 3, track), 0, 10)

	require.NoError(t, e.Start(timeline.ModeLoop))
	h.sched.Advance(DefaultWarmupTicks + 10)
	require.Equal(t, 10, track.playedTicks()[10])

	h.sched.Advance(1)
	h.sched.Advance(1)

	played := track.playedTicks()
	assert.Equal(t, []int{8, 9, 10, 4, 5}, played[8:])
	assert.False(t, e.Finished())
	assert.Empty(t, h.events.scenes())

	// second lap wraps the same way
	h.sched.Advance(6)
	played = track.playedTicks()
	assert.Equal(t, []int{10, 4}, played[len(played)-2:])
}

func TestEngine_EmptyTimelineTerminatesOnFirstStep(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("empty", 0), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks)

	assert.True(t, e.Finished())
	assert.Len(t, h.events.scenes(), 1)
}

func TestEngine_EmptyTimelineLoops(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("empty", 0), 0, 0)

	require.NoError(t, e.Start(timeline.ModeLoop))
	h.sched.Advance(DefaultWarmupTicks)

	assert.False(t, e.Finished())
	assert.Equal(t, 1, e.Tick())
}

func TestEngine_SpikeTickParksWithOrientationUpdates(t *testing.T) {
	h := newHarness(t)
	look := &lookTrack{spyTrack{end: 20}}
	plain := &spyTrack{end: 20}
	e := h.engine(t, timeline.NewRecording("r", 0, look, plain), 0, 0)
	e.SetSpikeTicks(map[int]bool{7: true})

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 6)
	require.Equal(t, 7, e.Tick())
	assert.Empty(t, look.oriented)

	h.sched.Advance(5)

	assert.Equal(t, []int{7, 7, 7, 7, 7}, look.oriented)
	assert.Equal(t, 7, e.Tick())
	assert.NotContains(t, look.playedTicks(), 7)
	assert.NotContains(t, plain.playedTicks(), 7)
	assert.True(t, e.Snapshot().Parked)

	assert.True(t, e.Resume(7))
	assert.False(t, e.Resume(7))
	h.sched.Advance(1)

	assert.Equal(t, 8, e.Tick())
	assert.Contains(t, plain.playedTicks(), 7)
	assert.Len(t, look.oriented, 5)
}

func TestEngine_SpikeTickWithoutLookTouchesNothing(t *testing.T) {
	h := newHarness(t)
	look := &lookTrack{spyTrack{end: 20}}
	e := h.engine(t, timeline.NewRecording("r", 0, look), 0, 0)
	e.SetSpikeTicks(map[int]bool{2: false})

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 10)

	assert.Equal(t, []int{0, 1}, look.playedTicks())
	assert.Empty(t, look.oriented)
	assert.Equal(t, 2, e.Tick())
}

func TestEngine_SpikeOutsideRangeIsInert(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 5}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 2, 0)
	e.SetSpikeTicks(map[int]bool{0: true, 50: true})

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 10)

	assert.Equal(t, []int{2, 3, 4, 5}, track.playedTicks())
	assert.True(t, e.Finished())
}

func TestEngine_TrackFailureDoesNotAdvance(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("corrupt pose")
	track := &spyTrack{end: 5, failAt: map[int]error{2: boom}}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 3)

	assert.Equal(t, 2, e.Tick())
	failures := h.sched.Failures()
	require.Len(t, failures, 2)
	assert.ErrorIs(t, failures[0].Err, boom)

	delete(track.failAt, 2)
	h.sched.Advance(1)
	assert.Equal(t, 3, e.Tick())
}

func TestEngine_TerminateTwiceIsIllegalState(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 100}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)
	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks + 2)

	require.NoError(t, e.Terminate())
	err := e.Terminate()

	assert.ErrorIs(t, err, scheduler.ErrNotScheduled)
	assert.Len(t, h.events.scenes(), 1)
	assert.Equal(t, 1, track.ended)

	played := len(track.playedTicks())
	h.sched.Advance(5)
	assert.Len(t, track.playedTicks(), played, "no steps after termination")
}

func TestEngine_ConcurrentTerminateRunsEffectsOnce(t *testing.T) {
	h := newHarness(t)
	track := &spyTrack{end: 100}
	next := h.engine(t, timeline.NewRecording("next", 0, &spyTrack{end: 5}), 0, 0)
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)
	e.SetNextPlayer(next)
	movie := models.NewMovie("m")
	e.SetMovie(movie, 9)
	require.NoError(t, e.Start(timeline.ModeAllPlay))

	const callers = 16
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- e.Terminate()
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, scheduler.ErrNotScheduled)
	}

	assert.Equal(t, 1, succeeded)
	assert.Len(t, h.events.scenes(), 1)
	assert.Len(t, h.events.movies(), 1)
	assert.Equal(t, 1, track.ended)
	assert.Equal(t, 1, h.sched.Active(), "only the successor is scheduled")
}

func TestEngine_TerminateBeforeRegistration(t *testing.T) {
	h := newHarness(t)
	main := &deferredDispatcher{}
	h.rt.Dispatcher = main
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	err := e.Terminate()
	assert.ErrorIs(t, err, scheduler.ErrNotScheduled)
	assert.Len(t, h.events.scenes(), 1)

	main.Flush()
	assert.Equal(t, 0, track.initialized)
	assert.Equal(t, 0, h.sched.Active())
}

func TestEngine_ChainsSuccessorWithSameMode(t *testing.T) {
	h := newHarness(t)
	first := &spyTrack{end: 2}
	second := &spyTrack{end: 1}
	a := h.engine(t, timeline.NewRecording("a", 0, first), 0, 0)
	b := h.engine(t, timeline.NewRecording("b", 0, second), 0, 0)
	a.SetNextPlayer(b)
	require.True(t, a.HasNextPlayer())

	require.NoError(t, a.Start(timeline.ModeTrackDataOnly))
	h.sched.Advance(DefaultWarmupTicks + 2)

	require.True(t, a.Finished())
	assert.Equal(t, timeline.ModeTrackDataOnly, b.Mode())
	assert.Equal(t, 1, second.initialized)
	assert.Empty(t, second.playedTicks())
	assert.Equal(t, 1, h.sched.Active())

	h.sched.Advance(DefaultWarmupTicks + 1)
	assert.Equal(t, []int{0, 1}, second.playedTicks())
	assert.True(t, b.Finished())

	scenes := h.events.scenes()
	require.Len(t, scenes, 2)
	assert.Equal(t, a.ID(), scenes[0].PlayerID)
	assert.Equal(t, b.ID(), scenes[1].PlayerID)
}

func TestEngine_ExternalTerminateStartsSuccessorOnce(t *testing.T) {
	h := newHarness(t)
	second := &spyTrack{end: 50}
	a := h.engine(t, timeline.NewRecording("a", 0, &spyTrack{end: 50}), 0, 0)
	b := h.engine(t, timeline.NewRecording("b", 0, second), 0, 0)
	a.SetNextPlayer(b)
	require.NoError(t, a.Start(timeline.ModeLoop))
	h.sched.Advance(DefaultWarmupTicks)

	require.NoError(t, a.Terminate())
	assert.Error(t, a.Terminate())

	assert.Equal(t, timeline.ModeLoop, b.Mode())
	assert.Equal(t, 1, second.initialized)
	assert.Equal(t, 1, h.sched.Active())
}

func TestEngine_MovieRelocatesAudienceAndNotifies(t *testing.T) {
	h := newHarness(t)
	early := uuid.New()
	late := uuid.New()
	h.world.Join(early, "early", world.Location{World: "stage"})
	h.world.Join(late, "late", world.Location{World: "stage"})
	require.NoError(t, h.world.SetMode(early, world.ModeSpectator))

	movie := models.NewMovie("feature")
	dest := world.Location{World: "lobby", X: 4, Y: 70}
	movie.SetDestination(dest)

	e := h.engine(t, timeline.NewRecording("r", 0, &spyTrack{end: 1}), 0, 0)
	e.SetMovie(movie, 42)
	e.AddAudience(early)
	require.NoError(t, e.Start(timeline.ModeAllPlay))

	// audience changes after start are honored at termination
	e.AddAudience(late)
	h.sched.Advance(DefaultWarmupTicks + 1)

	require.True(t, e.Finished())
	for _, id := range []uuid.UUID{early, late} {
		o, ok := h.world.Observer(id)
		require.True(t, ok)
		assert.Equal(t, dest, o.Location)
		assert.Equal(t, world.ModeAdventure, o.Mode)
	}

	movies := h.events.movies()
	require.Len(t, movies, 1)
	assert.Equal(t, 42, movies[0].PlayID)
	assert.Same(t, movie, movies[0].Movie)
	assert.Equal(t, 42, e.MoviePlayID())
}

func TestEngine_MovieWithoutDestinationOnlyNotifies(t *testing.T) {
	h := newHarness(t)
	watcher := uuid.New()
	start := world.Location{World: "stage", Z: 9}
	h.world.Join(watcher, "w", start)

	e := h.engine(t, timeline.NewRecording("r", 0, &spyTrack{end: 0}), 0, 0)
	e.SetMovie(models.NewMovie("short"), 1)
	e.SetAudiences([]uuid.UUID{watcher})
	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks)

	o, _ := h.world.Observer(watcher)
	assert.Equal(t, start, o.Location)
	assert.Len(t, h.events.movies(), 1)
}

func TestEngine_NoMovieNoMovieNotification(t *testing.T) {
	h := newHarness(t)
	e := h.engine(t, timeline.NewRecording("r", 0, &spyTrack{end: 0}), 0, 0)
	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(DefaultWarmupTicks)

	assert.Len(t, h.events.scenes(), 1)
	assert.Empty(t, h.events.movies())
}

func TestEngine_CustomTiming(t *testing.T) {
	h := newHarness(t)
	h.rt.WarmupTicks = 0
	h.rt.PeriodTicks = 2
	track := &spyTrack{end: 10}
	e := h.engine(t, timeline.NewRecording("r", 0, track), 0, 0)

	require.NoError(t, e.Start(timeline.ModeAllPlay))
	h.sched.Advance(5)

	assert.Equal(t, []int{0, 1, 2}, track.playedTicks())
}

func TestEngine_Snapshot(t *testing.T) {
	h := newHarness(t)
	a := uuid.New()
	e := h.engine(t, timeline.NewRecording("r", 0, &spyTrack{end: 10}), 0, 0)
	e.SetAudiences([]uuid.UUID{a})
	e.SetSpikeTicks(map[int]bool{0: true})

	s := e.Snapshot()
	assert.False(t, s.Started)
	assert.False(t, s.Scheduled)

	require.NoError(t, e.Start(timeline.ModeLoop))
	s = e.Snapshot()
	assert.Equal(t, e.ID(), s.ID)
	assert.True(t, s.Started)
	assert.True(t, s.Scheduled)
	assert.True(t, s.Parked)
	assert.Equal(t, timeline.ModeLoop, s.Mode)
	assert.Equal(t, 10, s.EndTick)
	assert.Equal(t, []uuid.UUID{a}, s.Audiences)
	assert.Equal(t, -1, s.MoviePlayID)

	require.NoError(t, e.Terminate())
	s = e.Snapshot()
	assert.True(t, s.Finished)
	assert.False(t, s.Scheduled)
	assert.False(t, s.Parked)
}
