package triage

import (
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// Classifier aggregates a measurement set into one urgency level.
type Classifier struct {
	evaluator *Evaluator
	logger    *zap.Logger
}

// NewClassifier creates a new Classifier.
func NewClassifier(evaluator *Evaluator, logger *zap.Logger) *Classifier {
	return &Classifier{
		evaluator: evaluator,
		logger:    logger,
	}
}

// Classify returns the urgency level for a measurement set. The result is
// a pure function of the set: any measurement marked critical dominates,
// otherwise three or more abnormal entries raise the level to high and a
// single abnormal entry to medium. Adding a measurement can never lower
// the returned level.
func (c *Classifier) Classify(measurements []model.Measurement) model.UrgencyLevel {
	criticalCount := 0
	abnormalCount := 0

	for _, m := range measurements {
		if c.evaluator.MarksCritical(m) {
			criticalCount++
		}
		if m.Status != model.StatusNormal {
			abnormalCount++
		}
	}

	level := model.UrgencyLow
	switch {
	case criticalCount > 0:
		level = model.UrgencyCritical
	case abnormalCount >= 3:
		level = model.UrgencyHigh
	case abnormalCount >= 1:
		level = model.UrgencyMedium
	}

	c.logger.Debug("measurement set classified",
		zap.Int("total", len(measurements)),
		zap.Int("critical", criticalCount),
		zap.Int("abnormal", abnormalCount),
		zap.String("urgency", level.String()),
	)

	return level
}
