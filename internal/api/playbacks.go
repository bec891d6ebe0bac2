package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/playback"
	"github.com/stwalsh4118/cinema/internal/theater"
	"github.com/stwalsh4118/cinema/internal/timeline"
)

// theaterService defines the theater operations the API needs
type theaterService interface {
	PlayMovie(ctx context.Context, movieID uuid.UUID, audiences []uuid.UUID, mode timeline.PlayMode) (*theater.Session, error)
	PlayScene(req theater.SceneRequest) (int, error)
	List() []playback.Status
	Get(playerID int) (playback.Status, error)
	Stop(playerID int) error
	Resume(playerID, tick int) error
	Count() int
}

// ResumeRequest represents a request to lift a spike tick pause
type ResumeRequest struct {
	Tick *int `json:"tick" binding:"required"`
}

// PlaybackListResponse represents the live playbacks
type PlaybackListResponse struct {
	Playbacks []playback.Status `json:"playbacks"`
	Total     int               `json:"total"`
}

// PlaybackHandler handles live playback requests
type PlaybackHandler struct {
	theater theaterService
}

// NewPlaybackHandler creates a new playback handler instance
func NewPlaybackHandler(svc theaterService) *PlaybackHandler {
	return &PlaybackHandler{theater: svc}
}

// ListPlaybacks handles GET /playbacks
func (h *PlaybackHandler) ListPlaybacks(c *gin.Context) {
	statuses := h.theater.List()
	c.JSON(http.StatusOK, PlaybackListResponse{Playbacks: statuses, Total: len(statuses)})
}

// GetPlayback handles GET /playbacks/:id
func (h *PlaybackHandler) GetPlayback(c *gin.Context) {
	id, ok := playerID(c)
	if !ok {
		return
	}

	status, err := h.theater.Get(id)
	if err != nil {
		playbackError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// StopPlayback handles POST /playbacks/:id/stop
func (h *PlaybackHandler) StopPlayback(c *gin.Context) {
	id, ok := playerID(c)
	if !ok {
		return
	}

	if err := h.theater.Stop(id); err != nil {
		playbackError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": id})
}

// ResumePlayback handles POST /playbacks/:id/resume
func (h *PlaybackHandler) ResumePlayback(c *gin.Context) {
	id, ok := playerID(c)
	if !ok {
		return
	}

	var req ResumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	if err := h.theater.Resume(id, *req.Tick); err != nil {
		if errors.Is(err, theater.ErrNoSpikeTick) {
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "not_paused",
				Message: "Playback has no spike tick at " + strconv.Itoa(*req.Tick),
			})
			return
		}
		playbackError(c, id, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resumed": id, "tick": *req.Tick})
}

func playerID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 0 {
		badRequest(c, "invalid_id", "Playback ID must be a non-negative integer")
		return 0, false
	}
	return id, true
}

func playbackError(c *gin.Context, id int, err error) {
	if theater.IsPlaybackNotFound(err) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Playback not found",
		})
		return
	}
	logger.Log.Error().Err(err).Int("player_id", id).Msg("Playback request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "Playback request failed",
	})
}

// SetupPlaybackRoutes registers all live playback routes
func SetupPlaybackRoutes(apiGroup *gin.RouterGroup, svc theaterService) {
	handler := NewPlaybackHandler(svc)

	group := apiGroup.Group("/playbacks")
	group.GET("", handler.ListPlaybacks)
	group.GET("/:id", handler.GetPlayback)
	group.POST("/:id/stop", handler.StopPlayback)
	group.POST("/:id/resume", handler.ResumePlayback)
}
