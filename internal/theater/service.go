// Package theater runs movies and single recordings on playback engines and
// keeps track of the ones that are live.
package theater

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stwalsh4118/cinema/internal/db"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/models"
	"github.com/stwalsh4118/cinema/internal/notify"
	"github.com/stwalsh4118/cinema/internal/playback"
	"github.com/stwalsh4118/cinema/internal/scheduler"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

const (
	subscriberID = "theater"

	// finishTimeout bounds the database write made when a movie ends
	finishTimeout = 5 * time.Second
)

// MovieStore loads movies with their scenes
type MovieStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Movie, error)
}

// PlayStore persists movie plays
type PlayStore interface {
	Create(ctx context.Context, play *models.MoviePlay) error
	Finish(ctx context.Context, id int, state string, at time.Time) error
	ListActive(ctx context.Context) ([]*models.MoviePlay, error)
}

// ObserverLookup tells whether an audience member is in the world
type ObserverLookup interface {
	Observer(id uuid.UUID) (world.Observer, bool)
}

// Recordings resolves recordings by name
type Recordings interface {
	Get(name string) (*timeline.Recording, error)
}

// Subscriber is where the service listens for completions
type Subscriber interface {
	Subscribe(id string, handler notify.Handler) error
	Unsubscribe(id string) error
}

// Deps bundles the service's collaborators
type Deps struct {
	Runtime    playback.Runtime
	Movies     MovieStore
	Plays      PlayStore
	Recordings Recordings
	Events     Subscriber

	// Observers rejects audiences that are not in the world. Nil skips the check.
	Observers ObserverLookup

	// Stage is the base location every playback is anchored to
	Stage world.Location

	// FailureThreshold stops a playback after that many step failures in a
	// row. Zero never stops one.
	FailureThreshold int
	// FailureReset is the quiet gap after which the failure count restarts
	FailureReset time.Duration
}

// SceneRequest describes a single recording to play
type SceneRequest struct {
	Recording  string
	StartTick  int
	StopTick   int
	SpikeTicks map[int]bool
	Audiences  []uuid.UUID
	Mode       timeline.PlayMode
}

// Session identifies the engines started for one movie play
type Session struct {
	MoviePlayID int   `json:"movie_play_id"`
	PlayerIDs   []int `json:"player_ids"`
}

// entry is one registered engine and the chain it belongs to
type entry struct {
	engine *playback.Engine
	chain  []*playback.Engine
	playID int
}

// Service owns live playbacks
type Service struct {
	deps    Deps
	log     zerolog.Logger
	breaker *failureBreaker

	mu      sync.Mutex
	entries map[int]*entry
	closed  bool

	// writes tracks movie play updates made off the main thread
	writes   sync.WaitGroup
	draining bool
}

// NewService creates the service and subscribes it to completion events
func NewService(deps Deps) (*Service, error) {
	if err := deps.Runtime.Validate(); err != nil {
		return nil, fmt.Errorf("failed to create theater: %w", err)
	}

	s := &Service{
		deps:    deps,
		log:     logger.With("theater"),
		breaker: newFailureBreaker(deps.FailureThreshold, deps.FailureReset),
		entries: make(map[int]*entry),
	}
	if err := deps.Events.Subscribe(subscriberID, s.handle); err != nil {
		return nil, fmt.Errorf("failed to subscribe theater: %w", err)
	}
	return s, nil
}

// PlayMovie plays every scene of a movie back to back to audiences. The last
// scene carries the movie so the audience is relocated when it ends.
func (s *Service) PlayMovie(ctx context.Context, movieID uuid.UUID, audiences []uuid.UUID, mode timeline.PlayMode) (*Session, error) {
	mode, err := normalizeMode(mode)
	if err != nil {
		return nil, err
	}
	if err := s.checkAudiences(audiences); err != nil {
		return nil, err
	}

	movie, err := s.deps.Movies.GetByID(ctx, movieID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to load movie: %w", err)
	}
	if len(movie.Scenes) == 0 {
		return nil, ErrEmptyMovie
	}

	chain := make([]*playback.Engine, 0, len(movie.Scenes))
	for _, scene := range movie.Scenes {
		spikes, err := scene.Spikes()
		if err != nil {
			return nil, err
		}
		e, err := s.newEngine(SceneRequest{
			Recording:  scene.Recording,
			StartTick:  scene.StartTick,
			StopTick:   scene.StopTick,
			SpikeTicks: spikes,
			Audiences:  audiences,
		})
		if err != nil {
			return nil, fmt.Errorf("scene %d: %w", scene.Position, err)
		}
		if n := len(chain); n > 0 {
			chain[n-1].SetNextPlayer(e)
		}
		chain = append(chain, e)
	}

	play := models.NewMoviePlay(movie.ID, len(audiences))
	if err := s.deps.Plays.Create(ctx, play); err != nil {
		return nil, fmt.Errorf("failed to record movie play: %w", err)
	}
	chain[len(chain)-1].SetMovie(movie, play.ID)

	if err := s.register(chain, play.ID); err != nil {
		s.finishPlay(play.ID, models.PlayStateStopped)
		return nil, err
	}
	if err := chain[0].Start(mode); err != nil {
		return nil, fmt.Errorf("failed to start movie: %w", err)
	}

	session := &Session{MoviePlayID: play.ID, PlayerIDs: make([]int, len(chain))}
	for i, e := range chain {
		session.PlayerIDs[i] = e.ID()
	}

	s.log.Info().
		Str("movie_id", movie.ID.String()).
		Str("movie", movie.Name).
		Int("play_id", play.ID).
		Int("scenes", len(chain)).
		Int("audiences", len(audiences)).
		Str("mode", string(mode)).
		Msg("Movie started")

	return session, nil
}

// PlayScene plays one recording and returns the engine id
func (s *Service) PlayScene(req SceneRequest) (int, error) {
	mode, err := normalizeMode(req.Mode)
	if err != nil {
		return 0, err
	}
	if err := s.checkAudiences(req.Audiences); err != nil {
		return 0, err
	}

	e, err := s.newEngine(req)
	if err != nil {
		return 0, err
	}
	if err := s.register([]*playback.Engine{e}, -1); err != nil {
		return 0, err
	}
	if err := e.Start(mode); err != nil {
		return 0, fmt.Errorf("failed to start scene: %w", err)
	}

	s.log.Info().
		Int("player_id", e.ID()).
		Str("recording", req.Recording).
		Str("mode", string(mode)).
		Msg("Scene started")

	return e.ID(), nil
}

// Stop ends a playback and the rest of its chain. A stopped movie play is
// recorded as stopped rather than finished.
func (s *Service) Stop(playerID int) error {
	s.mu.Lock()
	ent, ok := s.entries[playerID]
	if !ok {
		s.mu.Unlock()
		return ErrPlaybackNotFound
	}
	for _, e := range ent.chain {
		delete(s.entries, e.ID())
	}
	s.mu.Unlock()

	if ent.playID >= 0 {
		s.finishPlay(ent.playID, models.PlayStateStopped)
	}

	// Successors never start once the chain is cut
	for _, e := range ent.chain {
		e.SetNextPlayer(nil)
	}

	var stopErr error
	for _, e := range ent.chain {
		if !e.Snapshot().Started || e.Finished() {
			continue
		}
		if err := e.Terminate(); err != nil && !scheduler.IsNotScheduled(err) {
			stopErr = err
		}
	}

	s.log.Info().Int("player_id", playerID).Msg("Playback stopped")
	return stopErr
}

// Resume lifts the pause at tick on a playback
func (s *Service) Resume(playerID, tick int) error {
	e, err := s.engine(playerID)
	if err != nil {
		return err
	}
	if !e.Resume(tick) {
		return ErrNoSpikeTick
	}
	return nil
}

// Get returns the status of a live playback
func (s *Service) Get(playerID int) (playback.Status, error) {
	e, err := s.engine(playerID)
	if err != nil {
		return playback.Status{}, err
	}
	return e.Snapshot(), nil
}

// List returns the status of every live playback ordered by id
func (s *Service) List() []playback.Status {
	s.mu.Lock()
	engines := make([]*playback.Engine, 0, len(s.entries))
	for _, ent := range s.entries {
		engines = append(engines, ent.engine)
	}
	s.mu.Unlock()

	sort.Slice(engines, func(i, j int) bool { return engines[i].ID() < engines[j].ID() })

	statuses := make([]playback.Status, len(engines))
	for i, e := range engines {
		statuses[i] = e.Snapshot()
	}
	return statuses
}

// ReportFailure counts a failed step. A playback whose breaker opens is
// stopped like any other.
func (s *Service) ReportFailure(f scheduler.TaskFailure) {
	if !s.breaker.record(f.Handle) {
		s.log.Debug().Err(f.Err).Uint64("handle", uint64(f.Handle)).Msg("Playback step failed")
		return
	}

	playerID, ok := s.byHandle(f.Handle)
	if !ok {
		s.breaker.forget(f.Handle)
		return
	}

	s.log.Error().
		Err(f.Err).
		Int("player_id", playerID).
		Int("failures", s.breaker.failures(f.Handle)).
		Msg("Playback keeps failing, stopping it")

	if err := s.Stop(playerID); err != nil && !IsPlaybackNotFound(err) {
		s.log.Warn().Err(err).Int("player_id", playerID).Msg("Failed to stop failing playback")
	}
	s.breaker.forget(f.Handle)
}

// BreakerState returns the failure breaker state of a live playback
func (s *Service) BreakerState(playerID int) (BreakerState, error) {
	e, err := s.engine(playerID)
	if err != nil {
		return BreakerClosed, err
	}
	return s.breaker.state(e.Handle()), nil
}

func (s *Service) byHandle(h scheduler.Handle) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ent := range s.entries {
		if ent.engine.Handle() == h {
			return id, true
		}
	}
	return 0, false
}

// Shutdown stops every live playback and stops listening for completions
func (s *Service) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	// one live member per chain; Stop takes the rest of the chain with it
	live := make(map[*playback.Engine]int)
	for id, ent := range s.entries {
		live[ent.chain[0]] = id
	}
	s.mu.Unlock()

	stopped := 0
	for _, id := range live {
		if err := s.Stop(id); err != nil && !IsPlaybackNotFound(err) {
			s.log.Warn().Err(err).Int("player_id", id).Msg("Failed to stop playback")
			continue
		}
		stopped++
	}

	if err := s.deps.Events.Unsubscribe(subscriberID); err != nil {
		s.log.Warn().Err(err).Msg("Failed to unsubscribe theater")
	}
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.writes.Wait()

	s.log.Info().Int("stopped", stopped).Msg("Theater shut down")
}

func (s *Service) newEngine(req SceneRequest) (*playback.Engine, error) {
	rec, err := s.deps.Recordings.Get(req.Recording)
	if err != nil {
		return nil, err
	}

	e, err := playback.New(s.deps.Runtime, rec, s.deps.Stage, req.StartTick, req.StopTick)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	if len(req.SpikeTicks) > 0 {
		e.SetSpikeTicks(req.SpikeTicks)
	}
	e.SetAudiences(req.Audiences)
	return e, nil
}

func (s *Service) register(chain []*playback.Engine, playID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	for _, e := range chain {
		s.entries[e.ID()] = &entry{engine: e, chain: chain, playID: playID}
	}
	return nil
}

func (s *Service) engine(playerID int) (*playback.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, ok := s.entries[playerID]
	if !ok {
		return nil, ErrPlaybackNotFound
	}
	return ent.engine, nil
}

// handle runs on the terminating engine's goroutine and must not block
func (s *Service) handle(ev notify.Event) {
	switch ev := ev.(type) {
	case notify.SceneFinished:
		s.mu.Lock()
		if ent, ok := s.entries[ev.PlayerID]; ok {
			s.breaker.forget(ent.engine.Handle())
		}
		delete(s.entries, ev.PlayerID)
		s.mu.Unlock()
	case notify.MovieFinished:
		// the main thread is reserved for world changes
		playID := ev.PlayID
		s.mu.Lock()
		if s.draining {
			s.mu.Unlock()
			s.finishPlay(playID, models.PlayStateFinished)
			return
		}
		s.writes.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.writes.Done()
			s.finishPlay(playID, models.PlayStateFinished)
		}()
	}
}

// CloseStalePlays marks plays still recorded as playing as stopped. Nothing
// is live when the service starts, so such plays were cut short by a crash.
func (s *Service) CloseStalePlays(ctx context.Context) (int, error) {
	plays, err := s.deps.Plays.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active plays: %w", err)
	}

	s.mu.Lock()
	live := make(map[int]bool, len(s.entries))
	for _, ent := range s.entries {
		live[ent.playID] = true
	}
	s.mu.Unlock()

	closed := 0
	now := time.Now()
	for _, play := range plays {
		if live[play.ID] {
			continue
		}
		if err := s.deps.Plays.Finish(ctx, play.ID, models.PlayStateStopped, now); err != nil {
			if db.IsNotFound(err) {
				continue
			}
			return closed, fmt.Errorf("failed to close play %d: %w", play.ID, err)
		}
		closed++
	}

	if closed > 0 {
		s.log.Warn().Int("plays", closed).Msg("Closed movie plays left open by a previous run")
	}
	return closed, nil
}

func (s *Service) checkAudiences(audiences []uuid.UUID) error {
	if s.deps.Observers == nil {
		return nil
	}
	for _, id := range audiences {
		if _, ok := s.deps.Observers.Observer(id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownObserver, id)
		}
	}
	return nil
}

func (s *Service) finishPlay(playID int, state string) {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	if err := s.deps.Plays.Finish(ctx, playID, state, time.Now()); err != nil {
		if db.IsNotFound(err) {
			s.log.Debug().Int("play_id", playID).Str("state", state).Msg("Movie play already closed")
			return
		}
		s.log.Error().Err(err).Int("play_id", playID).Msg("Failed to record movie play end")
		return
	}
	s.log.Info().Int("play_id", playID).Str("state", state).Msg("Movie play closed")
}

func normalizeMode(mode timeline.PlayMode) (timeline.PlayMode, error) {
	if mode == "" {
		return timeline.ModeAllPlay, nil
	}
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
	return mode, nil
}

// Count returns the number of live playbacks
func (s *Service) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
