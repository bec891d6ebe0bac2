package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/logger"
	"github.com/stwalsh4118/cinema/internal/world"
)

// JoinObserverRequest represents a request to add an observer to the world.
// ID is optional; a new one is generated when it is empty.
type JoinObserverRequest struct {
	ID       string      `json:"id"`
	Name     string      `json:"name" binding:"required"`
	Location LocationDTO `json:"location"`
}

// ObserverResponse represents an observer in API responses
type ObserverResponse struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Location  *LocationDTO `json:"location"`
	Mode      string       `json:"mode"`
	Viewpoint *LocationDTO `json:"viewpoint,omitempty"`
}

// ObserverListResponse represents the observers in the world
type ObserverListResponse struct {
	Observers []*ObserverResponse `json:"observers"`
	Total     int                 `json:"total"`
}

// observerDirectory is the part of the world observers are managed through
type observerDirectory interface {
	Join(id uuid.UUID, name string, loc world.Location) world.Observer
	Leave(id uuid.UUID) bool
	Observer(id uuid.UUID) (world.Observer, bool)
	Observers() []world.Observer
}

// ObserverHandler handles observer requests
type ObserverHandler struct {
	world observerDirectory
}

// NewObserverHandler creates a new observer handler instance
func NewObserverHandler(w observerDirectory) *ObserverHandler {
	return &ObserverHandler{world: w}
}

func toObserverResponse(o world.Observer) *ObserverResponse {
	resp := &ObserverResponse{
		ID:       o.ID.String(),
		Name:     o.Name,
		Location: toLocationDTO(o.Location),
		Mode:     string(o.Mode),
	}
	if o.Viewpoint != nil {
		resp.Viewpoint = toLocationDTO(*o.Viewpoint)
	}
	return resp
}

// JoinObserver handles POST /observers. Joining with an id that is already
// present returns the existing observer unchanged.
func (h *ObserverHandler) JoinObserver(c *gin.Context) {
	var req JoinObserverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid_request", err.Error())
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			badRequest(c, "invalid_id", "Invalid observer ID format")
			return
		}
		id = parsed
	}

	_, existed := h.world.Observer(id)
	o := h.world.Join(id, req.Name, req.Location.location())
	if existed {
		c.JSON(http.StatusOK, toObserverResponse(o))
		return
	}

	logger.Log.Info().
		Str("observer_id", o.ID.String()).
		Str("name", o.Name).
		Str("world", o.Location.World).
		Msg("Observer joined")

	c.JSON(http.StatusCreated, toObserverResponse(o))
}

// ListObservers handles GET /observers
func (h *ObserverHandler) ListObservers(c *gin.Context) {
	observers := h.world.Observers()
	resp := ObserverListResponse{Observers: make([]*ObserverResponse, 0, len(observers)), Total: len(observers)}
	for _, o := range observers {
		resp.Observers = append(resp.Observers, toObserverResponse(o))
	}
	c.JSON(http.StatusOK, resp)
}

// GetObserver handles GET /observers/:id
func (h *ObserverHandler) GetObserver(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid observer ID format")
		return
	}

	o, ok := h.world.Observer(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Observer not found"})
		return
	}
	c.JSON(http.StatusOK, toObserverResponse(o))
}

// LeaveObserver handles DELETE /observers/:id
func (h *ObserverHandler) LeaveObserver(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid_id", "Invalid observer ID format")
		return
	}

	if !h.world.Leave(id) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: "Observer not found"})
		return
	}

	logger.Log.Info().Str("observer_id", id.String()).Msg("Observer left")
	c.Status(http.StatusNoContent)
}

// SetupObserverRoutes registers observer routes
func SetupObserverRoutes(apiGroup *gin.RouterGroup, w observerDirectory) {
	handler := NewObserverHandler(w)

	group := apiGroup.Group("/observers")
	group.POST("", handler.JoinObserver)
	group.GET("", handler.ListObservers)
	group.GET("/:id", handler.GetObserver)
	group.DELETE("/:id", handler.LeaveObserver)
}
