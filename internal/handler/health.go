package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medassist/clinical-portal/internal/live"
)

// HealthHandler implements the service health check endpoint
type HealthHandler struct {
	hub *live.Hub
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(hub *live.Hub) *HealthHandler {
	return &HealthHandler{hub: hub}
}

// GetHealth reports service health and the state of every live session.
// The subsystem has no fatal failure modes, so the service itself is
// always healthy; degraded sessions show up as "simulated".
func (h *HealthHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "clinical-portal-live",
		"version":  "1.0.0",
		"sessions": h.hub.States(),
	})
}
