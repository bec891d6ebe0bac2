package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/db"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/models"
	"github.com/stwalsh4118/cinema/internal/theater"
	"github.com/stwalsh4118/cinema/internal/timeline"
	"github.com/stwalsh4118/cinema/internal/world"
)

// Request/Response DTOs

// LocationDTO is a world position with facing
type LocationDTO struct {
	World string  `json:"world" binding:"required"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// SceneDTO describes one scene of a movie
type SceneDTO struct {
	Recording  string       `json:"recording" binding:"required"`
	StartTick  int          `json:"start_tick" binding:"gte=0"`
	StopTick   int          `json:"stop_tick" binding:"gte=0"`
	SpikeTicks map[int]bool `json:"spike_ticks,omitempty"`
}

// CreateMovieRequest represents a request to create a movie
type CreateMovieRequest struct {
	Name        string       `json:"name" binding:"required"`
	Destination *LocationDTO `json:"destination,omitempty"`
	Scenes      []SceneDTO   `json:"scenes" binding:"required,min=1,dive"`
}

// PlayMovieRequest represents a request to play a movie
type PlayMovieRequest struct {
	Audiences []string `json:"audiences"`
	Mode      string   `json:"mode"`
}

// MovieResponse represents a movie in API responses
type MovieResponse struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Destination *LocationDTO `json:"destination,omitempty"`
	Scenes      []SceneDTO   `json:"scenes,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// UpdateDestinationRequest sets or clears a movie's destination. A null or
// missing destination clears it.
type UpdateDestinationRequest struct {
	Destination *LocationDTO `json:"destination"`
}

// MoviePlayListResponse represents the play history of a movie
type MoviePlayListResponse struct {
	Plays []*models.MoviePlay `json:"plays"`
	Total int                 `json:"total"`
}

// MovieListResponse represents a list of movies
type MovieListResponse struct {
	Movies []*MovieResponse `json:"movies"`
	Total  int              `json:"total"`
}

// movieStore persists movies
type movieStore interface {
	Create(ctx context.Context, movie *models.Movie) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Movie, error)
	GetByName(ctx context.Context, name string) (*models.Movie, error)
	List(ctx context.Context) ([]*models.Movie, error)
	UpdateDestination(ctx context.Context, movie *models.Movie) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// playHistory lists past and current plays of a movie
type playHistory interface {
	ListByMovie(ctx context.Context, movieID uuid.UUID) ([]*models.MoviePlay, error)
}

// recordingCatalog lists the recordings scenes may reference
type recordingCatalog interface {
	Get(name string) (*timeline.Recording, error)
	List() []timeline.RecordingInfo
}

// MovieHandler handles movie-related API requests
type MovieHandler struct {
	movies     movieStore
	plays      playHistory
	recordings recordingCatalog
	theater    theaterService
}

// NewMovieHandler creates a new movie handler instance
func NewMovieHandler(movies movieStore, plays playHistory, recordings recordingCatalog, svc theaterService) *MovieHandler {
	return &MovieHandler{movies: movies, plays: plays, recordings: recordings, theater: svc}
}

func (d LocationDTO) location() world.Location {
	return world.Location{World: d.World, X: d.X, Y: d.Y, Z: d.Z, Yaw: d.Yaw, Pitch: d.Pitch}
}

func toLocationDTO(loc world.Location) *LocationDTO {
	return &LocationDTO{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z, Yaw: loc.Yaw, Pitch: loc.Pitch}
}

func toMovieResponse(m *models.Movie) *MovieResponse {
	resp := &MovieResponse{
		ID:        m.ID.String(),
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
	if dest, ok := m.Destination(); ok {
		resp.Destination = toLocationDTO(dest)
	}
	for _, scene := range m.Scenes {
		spikes, err := scene.Spikes()
		if err != nil {
			logger.Log.Warn().Err(err).Str("scene_id", scene.ID.String()).Msg("Skipping undecodable spike ticks")
		}
		resp.Scenes = append(resp.Scenes, SceneDTO{
			Recording:  scene.Recording,
			StartTick:  scene.StartTick,
			StopTick:   scene.StopTick,
			SpikeTicks: spikes,
		})
	}
	return resp
}

// CreateMovie handles POST /movies
func (h *MovieHandler) CreateMovie(c *gin.Context) {
	var req CreateMovieRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	movie := models.NewMovie(req.Name)
	if req.Destination != nil {
		movie.SetDestination(req.Destination.location())
	}

	for i, s := range req.Scenes {
		if _, err := h.recordings.Get(s.Recording); err != nil {
			badRequest(c, "unknown_recording", "Scene references an unknown recording: "+s.Recording)
			return
		}
		if s.StopTick != 0 && s.StopTick < s.StartTick {
			badRequest(c, "invalid_ticks", "Scene stop tick must not be before its start tick")
			return
		}
		scene := models.NewScene(movie.ID, i, s.Recording, s.StartTick, s.StopTick)
		if err := scene.SetSpikes(s.SpikeTicks); err != nil {
			badRequest(c, "invalid_spike_ticks", err.Error())
			return
		}
		movie.Scenes = append(movie.Scenes, scene)
	}

	if err := h.movies.Create(c.Request.Context(), movie); err != nil {
		if db.IsDuplicate(err) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "duplicate_name",
				Message: "A movie with this name already exists",
			})
			return
		}
		logger.Log.Error().Err(err).Str("name", req.Name).Msg("Failed to create movie")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to create movie",
		})
		return
	}

	logger.Log.Info().
		Str("movie_id", movie.ID.String()).
		Str("name", movie.Name).
		Int("scenes", len(movie.Scenes)).
		Msg("Movie created")

	c.JSON(http.StatusCreated, toMovieResponse(movie))
}

// ListMovies handles GET /movies. A name query parameter narrows the list
// to the movie with that exact name.
func (h *MovieHandler) ListMovies(c *gin.Context) {
	if name := c.Query("name"); name != "" {
		h.findMovieByName(c, name)
		return
	}

	movies, err := h.movies.List(c.Request.Context())
	if err != nil {
		logger.Log.Error().Err(err).Msg("Failed to list movies")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list movies",
		})
		return
	}

	resp := MovieListResponse{Movies: make([]*MovieResponse, 0, len(movies)), Total: len(movies)}
	for _, m := range movies {
		resp.Movies = append(resp.Movies, toMovieResponse(m))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MovieHandler) findMovieByName(c *gin.Context, name string) {
	resp := MovieListResponse{Movies: make([]*MovieResponse, 0, 1)}

	movie, err := h.movies.GetByName(c.Request.Context(), name)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusOK, resp)
			return
		}
		logger.Log.Error().Err(err).Str("name", name).Msg("Failed to find movie by name")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to list movies",
		})
		return
	}

	resp.Movies = append(resp.Movies, toMovieResponse(movie))
	resp.Total = 1
	c.JSON(http.StatusOK, resp)
}

// GetMovie handles GET /movies/:id
func (h *MovieHandler) GetMovie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid movie ID format")
		return
	}

	movie, err := h.movies.GetByID(c.Request.Context(), id)
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Movie not found",
			})
			return
		}
		logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to get movie")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to get movie",
		})
		return
	}

	c.JSON(http.StatusOK, toMovieResponse(movie))
}

// UpdateDestination handles PATCH /movies/:id/destination
func (h *MovieHandler) UpdateDestination(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid movie ID format")
		return
	}

	var req UpdateDestinationRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	ctx := c.Request.Context()
	movie, err := h.movies.GetByID(ctx, id)
	if err == nil {
		if req.Destination != nil {
			movie.SetDestination(req.Destination.location())
		} else {
			movie.ClearDestination()
		}
		err = h.movies.UpdateDestination(ctx, movie)
	}
	if err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Movie not found"})
			return
		}
		logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to update movie destination")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to update movie",
		})
		return
	}

	logger.Log.Info().
		Str("movie_id", id.String()).
		Bool("has_destination", movie.HasAfterLocation).
		Msg("Movie destination updated")

	c.JSON(http.StatusOK, toMovieResponse(movie))
}

// DeleteMovie handles DELETE /movies/:id. Plays already running are not
// stopped; their history goes with the movie.
func (h *MovieHandler) DeleteMovie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid movie ID format")
		return
	}

	if err := h.movies.Delete(c.Request.Context(), id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Movie not found"})
			return
		}
		logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to delete movie")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to delete movie",
		})
		return
	}

	logger.Log.Info().Str("movie_id", id.String()).Msg("Movie deleted")
	c.Status(http.StatusNoContent)
}

// ListPlays handles GET /movies/:id/plays
func (h *MovieHandler) ListPlays(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid movie ID format")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.movies.GetByID(ctx, id); err != nil {
		if db.IsNotFound(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Movie not found"})
			return
		}
		logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to get movie")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to list plays"})
		return
	}

	plays, err := h.plays.ListByMovie(ctx, id)
	if err != nil {
		logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to list movie plays")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to list plays"})
		return
	}
	if plays == nil {
		plays = make([]*models.MoviePlay, 0)
	}

	c.JSON(http.StatusOK, MoviePlayListResponse{Plays: plays, Total: len(plays)})
}

// PlayMovie handles POST /movies/:id/play
func (h *MovieHandler) PlayMovie(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid movie ID format")
		return
	}

	var req PlayMovieRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	audiences, ok := parseAudiences(req.Audiences)
	if !ok {
		badRequest(c, "invalid_audience", "Audience IDs must be UUIDs")
		return
	}
	mode, ok := parseMode(req.Mode)
	if !ok {
		badRequest(c, "invalid_mode", "Unknown play mode: "+req.Mode)
		return
	}

	session, err := h.theater.PlayMovie(c.Request.Context(), id, audiences, mode)
	if err != nil {
		switch {
		case theater.IsMovieNotFound(err):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Movie not found"})
		case errors.Is(err, theater.ErrEmptyMovie):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "empty_movie", Message: "Movie has no scenes"})
		case timeline.IsRecordingNotFound(err):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unknown_recording", Message: err.Error()})
		case errors.Is(err, theater.ErrUnknownObserver):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unknown_audience", Message: err.Error()})
		case errors.Is(err, theater.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: "Theater is shutting down"})
		default:
			logger.Log.Error().Err(err).Str("movie_id", id.String()).Msg("Failed to play movie")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to play movie"})
		}
		return
	}

	c.JSON(http.StatusAccepted, session)
}

// SetupMovieRoutes registers all movie-related routes
func SetupMovieRoutes(apiGroup *gin.RouterGroup, movies movieStore, plays playHistory, recordings recordingCatalog, svc theaterService) {
	handler := NewMovieHandler(movies, plays, recordings, svc)

	movieGroup := apiGroup.Group("/movies")
	movieGroup.POST("", handler.CreateMovie)
	movieGroup.GET("", handler.ListMovies)
	movieGroup.GET("/:id", handler.GetMovie)
	movieGroup.DELETE("/:id", handler.DeleteMovie)
	movieGroup.PATCH("/:id/destination", handler.UpdateDestination)
	movieGroup.GET("/:id/plays", handler.ListPlays)
	movieGroup.POST("/:id/play", handler.PlayMovie)
}
