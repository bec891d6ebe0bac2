// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cinema/internal/api"
	"github.com/stwalsh4118/cinema/internal/config"
	"github.com/stwalsh4118/cinema/internal/db"
	"github.com/stwalsh4118/cinema/internal/dispatch"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/middleware"
	"github.com/stwalsh4118/cinema/internal/notify"
	"github.com/stwalsh4118/cinema/internal/playback"
	"github.com/stwalsh4118/cinema/internal/recordings"
	"github.com/stwalsh4118/cinema/internal/scheduler"
	"github.com/stwalsh4118/cinema/internal/theater"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

// SeedFunc registers recordings into the library before the server starts.
// Tracks that touch the world do so through d.
type SeedFunc func(lib *timeline.Library, w *world.World, d timeline.Dispatcher) error

// Server represents the HTTP server and the playback runtime behind it
type Server struct {
	config     *config.Config
	db         *db.DB
	repos      *db.Repositories
	world      *world.World
	library    *timeline.Library
	dispatcher *dispatch.MainThread
	scheduler  *scheduler.TickScheduler
	events     *notify.Sink
	theater    *theater.Service
	recordings *recordings.Watcher
	router     *gin.Engine
	server     *http.Server

	stepFailures atomic.Uint64
	stopChan     chan struct{}
	watchers     sync.WaitGroup
	stopOnce     sync.Once
}

// New creates a new server instance. Nothing runs until Start.
func New(cfg *config.Config, database *db.DB, w *world.World, seed SeedFunc) (*Server, error) {
	repos := db.NewRepositories(database)
	dispatcher := dispatch.NewMainThread(cfg.Playback.DispatchQueueSize)
	sched := scheduler.NewTickScheduler(cfg.Playback.TickInterval, cfg.Playback.FailureBuffer)
	events := notify.NewSink()

	library := timeline.NewLibrary()
	if seed != nil {
		if err := seed(library, w, dispatcher); err != nil {
			return nil, fmt.Errorf("failed to seed recordings: %w", err)
		}
	}

	svc, err := theater.NewService(theater.Deps{
		Runtime: playback.Runtime{
			IDs:         playback.NewIDAllocator(),
			Scheduler:   sched,
			Dispatcher:  dispatcher,
			Notifier:    events,
			World:       w,
			WarmupTicks: cfg.Playback.WarmupTicks,
			PeriodTicks: cfg.Playback.PeriodTicks,
		},
		Movies:     repos.Movies,
		Plays:      repos.MoviePlays,
		Recordings: library,
		Events:     events,
		Observers:  w,
		Stage:      world.Location{World: "stage"},

		FailureThreshold: cfg.Playback.FailureThreshold,
		FailureReset:     cfg.Playback.FailureReset,
	})
	if err != nil {
		return nil, err
	}

	var watcher *recordings.Watcher
	if cfg.Recordings.Dir != "" {
		watcher, err = recordings.NewWatcher(cfg.Recordings.Dir, library, w, dispatcher, cfg.Recordings.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("failed to create recording watcher: %w", err)
		}
	}

	return &Server{
		config:     cfg,
		db:         database,
		repos:      repos,
		world:      w,
		library:    library,
		dispatcher: dispatcher,
		scheduler:  sched,
		events:     events,
		theater:    svc,
		recordings: watcher,
		stopChan:   make(chan struct{}),
	}, nil
}

// Theater returns the playback service
func (s *Server) Theater() *theater.Service {
	return s.theater
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	s.router.Use(middleware.RequestLogger())
	s.router.Use(gin.Recovery())
	s.router.Use(cors.Default())

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.theater, s.events)
	api.SetupMovieRoutes(apiGroup, s.repos.Movies, s.repos.MoviePlays, s.library, s.theater)
	api.SetupObserverRoutes(apiGroup, s.world)
	api.SetupRecordingRoutes(apiGroup, s.library, s.theater)
	api.SetupPlaybackRoutes(apiGroup, s.theater)
}

// Start starts the playback runtime and then serves HTTP until shutdown
func (s *Server) Start() error {
	s.setupRouter()

	if err := s.startRuntime(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Dur("tick_interval", s.config.Playback.TickInterval).
		Int("recordings", len(s.library.List())).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// startRuntime closes plays left open by a previous run, then starts the
// main thread, recording watcher and failure watcher
func (s *Server) startRuntime() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Database.ConnectionTimeout)
	defer cancel()
	if _, err := s.theater.CloseStalePlays(ctx); err != nil {
		return fmt.Errorf("failed to close stale plays: %w", err)
	}

	s.dispatcher.Start()

	if s.recordings != nil {
		if err := s.recordings.Start(); err != nil {
			return fmt.Errorf("failed to start recording watcher: %w", err)
		}
	}

	s.watchers.Add(1)
	go s.watchFailures()
	return nil
}

// watchFailures hands step failures to the theater until shutdown
func (s *Server) watchFailures() {
	defer s.watchers.Done()
	for {
		select {
		case f := <-s.scheduler.Failures():
			s.stepFailures.Add(1)
			s.theater.ReportFailure(f)
		case <-s.stopChan:
			return
		}
	}
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	var shutdownErr error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}
	}

	s.stopOnce.Do(func() {
		if s.recordings != nil {
			s.recordings.Stop()
		}
		// Stop playbacks while the main thread can still run their teardown
		s.theater.Shutdown()
		s.scheduler.Stop()
		s.dispatcher.Stop()
		close(s.stopChan)
		s.watchers.Wait()
	})

	logger.Log.Info().
		Uint64("step_failures", s.stepFailures.Load()).
		Msg("Server stopped")
	return shutdownErr
}
