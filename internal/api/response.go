// Package api exposes movies, recordings and live playbacks over HTTP.
package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stwalsh4118/cinema/internal/timeline"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// parseAudiences converts audience ids, rejecting the first malformed one
func parseAudiences(raw []string) ([]uuid.UUID, bool) {
	audiences := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, false
		}
		audiences = append(audiences, id)
	}
	return audiences, true
}

// parseMode normalizes a requested play mode; empty means ALL_PLAY
func parseMode(raw string) (timeline.PlayMode, bool) {
	if raw == "" {
		return timeline.ModeAllPlay, true
	}
	mode := timeline.PlayMode(strings.ToUpper(raw))
	return mode, mode.Valid()
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: code, Message: message})
}

// bindOptionalJSON binds a JSON body when one is sent. An empty body leaves
// obj untouched; chunked bodies report no length, so io.EOF is the signal.
func bindOptionalJSON(c *gin.Context, obj interface{}) error {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
