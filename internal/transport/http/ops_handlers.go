package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tarotdesk/relay-server/internal/core"
)

// OpsHandlers provides the internal HTTP surface the booking subsystem
// and operators talk to.
type OpsHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewOpsHandlers creates a new ops handlers instance.
func NewOpsHandlers(hub *core.Hub, logger *zerolog.Logger) *OpsHandlers {
	return &OpsHandlers{hub: hub, log: logger}
}

// RefreshResponse reports the session status after a refresh.
type RefreshResponse struct {
	Room   string `json:"room"`
	Status string `json:"status"`
}

// StatsResponse reports live relay counters.
type StatsResponse struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
	Members     int `json:"members"`
}

// RefreshSession re-reads the session record and mirrors its status to
// the room; an ended or locked session unseats everyone. The booking
// subsystem calls this when it changes a session out-of-band.
// POST /internal/sessions/:id/refresh
func (h *OpsHandlers) RefreshSession(c *gin.Context) {
	roomID := c.Param("id")
	status, err := h.hub.RefreshSession(c.Request.Context(), roomID)
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("refresh session")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("room", roomID).Str("status", status).Msg("session refreshed")
	c.JSON(http.StatusOK, RefreshResponse{Room: roomID, Status: status})
}

// Stats returns live connection and room counts.
// GET /internal/stats
func (h *OpsHandlers) Stats(c *gin.Context) {
	conns, rooms, members := h.hub.Stats()
	c.JSON(http.StatusOK, StatsResponse{
		Connections: conns,
		Rooms:       rooms,
		Members:     members,
	})
}
