package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/medassist/clinical-portal/internal/audit"
	"github.com/medassist/clinical-portal/internal/triage"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// MeasurementSource provides the measurement set for one analysis.
type MeasurementSource interface {
	Measurements(ctx context.Context, analysisID int) ([]model.Measurement, error)
}

// EscalationHandler exposes the critical-value escalation pipeline.
type EscalationHandler struct {
	orchestrator *triage.Orchestrator
	evaluator    *triage.Evaluator
	source       MeasurementSource
	trail        *audit.Trail
	logger       *zap.Logger
}

// NewEscalationHandler creates a new EscalationHandler
func NewEscalationHandler(orchestrator *triage.Orchestrator, evaluator *triage.Evaluator, source MeasurementSource, trail *audit.Trail, logger *zap.Logger) *EscalationHandler {
	return &EscalationHandler{
		orchestrator: orchestrator,
		evaluator:    evaluator,
		source:       source,
		trail:        trail,
		logger:       logger,
	}
}

type evaluateRequest struct {
	HealthAnalysisID int `json:"health_analysis_id" binding:"required"`
}

// Evaluate runs the escalation check for one analysis. The check itself
// never fails: only missing measurements produce an error response.
func (h *EscalationHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("invalid request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, errorResponse{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid request body",
			Details: stringPtr(err.Error()),
		})
		return
	}

	measurements, err := h.source.Measurements(c.Request.Context(), req.HealthAnalysisID)
	if err != nil {
		h.logger.Error("failed to fetch measurements",
			zap.Error(err),
			zap.Int("analysis_id", req.HealthAnalysisID),
		)
		c.JSON(http.StatusBadGateway, errorResponse{
			Code:    "MEASUREMENT_SOURCE_ERROR",
			Message: "Failed to fetch measurements for analysis",
			Details: stringPtr(err.Error()),
		})
		return
	}

	result := h.orchestrator.Evaluate(c.Request.Context(), req.HealthAnalysisID, measurements)

	op := audit.OperationEvaluate
	if result.HasCriticalValues && result.RemoteResponse == nil {
		op = audit.OperationFallback
	}
	h.trail.Record(audit.Entry{
		OperationType: op,
		ResourceType:  audit.ResourceAnalysis,
		ResourceID:    strconv.Itoa(req.HealthAnalysisID),
		Detail: map[string]any{
			"urgency_level":       result.UrgencyLevel.String(),
			"has_critical_values": result.HasCriticalValues,
		},
	})

	c.JSON(http.StatusOK, result)
}

// Thresholds returns the rule table the evaluator is currently using.
func (h *EscalationHandler) Thresholds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"thresholds": h.evaluator.Table(),
	})
}
