package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medassist/clinical-portal/internal/audit"
)

// AuditHandler exposes the in-memory audit trail.
type AuditHandler struct {
	trail *audit.Trail
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(trail *audit.Trail) *AuditHandler {
	return &AuditHandler{trail: trail}
}

// Recent returns the most recent audit entries, newest first. The limit
// query parameter caps the result; it defaults to 50.
func (h *AuditHandler) Recent(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "limit must be a positive integer",
			})
			return
		}
		limit = n
	}

	c.JSON(http.StatusOK, gin.H{
		"entries": h.trail.Recent(limit),
	})
}
