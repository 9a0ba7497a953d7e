package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/ircflood/internal/transport/irc"
)

// StatusSource reports listener totals and running sessions.
type StatusSource interface {
	Status() irc.Status
}

// StatusHandlers serves the health and statistics endpoints.
type StatusHandlers struct {
	src     StatusSource
	version string
	started time.Time
	log     *zerolog.Logger
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(src StatusSource, version string, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		src:     src,
		version: version,
		started: time.Now(),
		log:     logger,
	}
}

// StatsResponse represents the statistics response body.
type StatsResponse struct {
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	irc.Status
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
// GET /health
func (h *StatusHandlers) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// Stats returns totals and a snapshot of every running session.
// GET /stats
func (h *StatusHandlers) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, StatsResponse{
		Version:       h.version,
		UptimeSeconds: time.Since(h.started).Seconds(),
		Status:        h.src.Status(),
	})
}

// Session returns one running session.
// GET /stats/:id
func (h *StatusHandlers) Session(c *gin.Context) {
	id := c.Param("id")
	for _, info := range h.src.Status().Sessions {
		if info.ID == id {
			c.JSON(http.StatusOK, info)
			return
		}
	}
	h.log.Debug().Str("session", id).Msg("session not found")
	c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
}
