package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/theater"
	"github.com/stwalsh4118/cinema/internal/timeline"
)

// PlayRecordingRequest represents a request to play a single recording
type PlayRecordingRequest struct {
	Audiences  []string     `json:"audiences"`
	Mode       string       `json:"mode"`
	StartTick  int          `json:"start_tick" binding:"gte=0"`
	StopTick   int          `json:"stop_tick" binding:"gte=0"`
	SpikeTicks map[int]bool `json:"spike_ticks,omitempty"`
}

// RecordingListResponse represents the registered recordings
type RecordingListResponse struct {
	Recordings []timeline.RecordingInfo `json:"recordings"`
	Total      int                      `json:"total"`
}

// RecordingHandler handles recording requests
type RecordingHandler struct {
	recordings recordingCatalog
	theater    theaterService
}

// NewRecordingHandler creates a new recording handler instance
func NewRecordingHandler(recordings recordingCatalog, svc theaterService) *RecordingHandler {
	return &RecordingHandler{recordings: recordings, theater: svc}
}

// ListRecordings handles GET /recordings
func (h *RecordingHandler) ListRecordings(c *gin.Context) {
	infos := h.recordings.List()
	c.JSON(http.StatusOK, RecordingListResponse{Recordings: infos, Total: len(infos)})
}

// PlayRecording handles POST /recordings/:name/play
func (h *RecordingHandler) PlayRecording(c *gin.Context) {
	name := c.Param("name")

	var req PlayRecordingRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}
	if req.StopTick != 0 && req.StopTick < req.StartTick {
		badRequest(c, "invalid_ticks", "Stop tick must not be before start tick")
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

	id, err := h.theater.PlayScene(theater.SceneRequest{
		Recording:  name,
		StartTick:  req.StartTick,
		StopTick:   req.StopTick,
		SpikeTicks: req.SpikeTicks,
		Audiences:  audiences,
		Mode:       mode,
	})
	if err != nil {
		switch {
		case timeline.IsRecordingNotFound(err):
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Recording not found"})
		case errors.Is(err, theater.ErrUnknownObserver):
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "unknown_audience", Message: err.Error()})
		case errors.Is(err, theater.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "service_unavailable", Message: "Theater is shutting down"})
		default:
			logger.Log.Error().Err(err).Str("recording", name).Msg("Failed to play recording")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Failed to play recording"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"player_id": id})
}

// SetupRecordingRoutes registers recording routes
func SetupRecordingRoutes(apiGroup *gin.RouterGroup, recordings recordingCatalog, svc theaterService) {
	handler := NewRecordingHandler(recordings, svc)

	group := apiGroup.Group("/recordings")
	group.GET("", handler.ListRecordings)
	group.POST("/:name/play", handler.PlayRecording)
}
