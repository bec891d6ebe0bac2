package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse represents the response from the health check endpoint
type HealthResponse struct {
	Status    string                 `json:"status"`
	Database  string                 `json:"database"`
	Playbacks int                    `json:"playbacks"`
	Events    uint64                 `json:"events_published"`
	Time      string                 `json:"time"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// healthChecker reports database connectivity
type healthChecker interface {
	Health(ctx context.Context) error
}

// playbackCounter reports how many playbacks are live
type playbackCounter interface {
	Count() int
}

// eventCounter reports how many completion notifications went out
type eventCounter interface {
	TotalPublished() uint64
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db        healthChecker
	playbacks playbackCounter
	events    eventCounter
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database healthChecker, playbacks playbackCounter, events eventCounter) *HealthHandler {
	return &HealthHandler{db: database, playbacks: playbacks, events: events}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "ok",
		Playbacks: h.playbacks.Count(),
		Events:    h.events.TotalPublished(),
		Time:      time.Now().UTC().Format(time.RFC3339),
		Details:   make(map[string]interface{}),
	}

	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database healthChecker, playbacks playbackCounter, events eventCounter) {
	handler := NewHealthHandler(database, playbacks, events)
	apiGroup.GET("/health", handler.Check)
}
