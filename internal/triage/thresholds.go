package triage

import (
	"context"

	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// Table is an ordered list of threshold rules. Table order is the
// priority order: the first rule that matches and evaluates true wins.
type Table []model.ThresholdRule

// ThresholdSource fetches the configured rule table from a remote
// collaborator.
type ThresholdSource interface {
	FetchThresholds(ctx context.Context) ([]model.ThresholdRule, error)
}

// DefaultTable returns the hard-coded critical-value rule table used
// whenever the remote configuration is unavailable.
func DefaultTable() Table {
	return Table{
		{MetricPattern: "glucose", Operator: ">", CriticalValue: 11.0, Specialist: "Endocrinologist", Urgency: model.ThresholdImmediate},
		{MetricPattern: "alt", Operator: ">", CriticalValue: 100, Specialist: "Gastroenterologist", Urgency: model.ThresholdUrgent},
		{MetricPattern: "ast", Operator: ">", CriticalValue: 100, Specialist: "Gastroenterologist", Urgency: model.ThresholdUrgent},
		{MetricPattern: "hemoglobin", Operator: "<", CriticalValue: 90, Specialist: "Hematologist", Urgency: model.ThresholdPriority},
		{MetricPattern: "platelets", Operator: "<", CriticalValue: 100, Specialist: "Hematologist", Urgency: model.ThresholdUrgent},
		{MetricPattern: "creatinine", Operator: ">", CriticalValue: 150, Specialist: "Nephrologist", Urgency: model.ThresholdUrgent},
	}
}

// LoadTable fetches the rule table from the source, substituting the
// default table on any failure or on an empty result. Loading never
// fails: a clinical alerting path must not start without rules.
func LoadTable(ctx context.Context, src ThresholdSource, logger *zap.Logger) Table {
	rules, err := src.FetchThresholds(ctx)
	if err != nil {
		logger.Warn("failed to load remote thresholds, using default table",
			zap.Error(err),
		)
		return DefaultTable()
	}

	if len(rules) == 0 {
		logger.Warn("remote threshold table is empty, using default table")
		return DefaultTable()
	}

	logger.Info("threshold table loaded",
		zap.Int("rule_count", len(rules)),
	)

	return Table(rules)
}
