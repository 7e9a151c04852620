package triage

import (
	"strings"

	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// Evaluator matches measurements against the threshold rule table and
// decides criticality.
type Evaluator struct {
	table  Table
	logger *zap.Logger
}

// NewEvaluator creates a new Evaluator over the given rule table.
func NewEvaluator(table Table, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		table:  table,
		logger: logger,
	}
}

// Table returns the rule table the evaluator operates on.
func (e *Evaluator) Table() Table {
	return e.table
}

// IsCritical reports whether the measurement trips any configured rule.
// Rules are checked in table order; the first rule whose pattern matches
// the measurement name and whose comparison evaluates true wins. Values
// that cannot be parsed as numbers never match numeric rules.
func (e *Evaluator) IsCritical(m model.Measurement) bool {
	name := strings.ToLower(m.Name)

	for _, rule := range e.table {
		if !strings.Contains(name, strings.ToLower(rule.MetricPattern)) {
			continue
		}

		value, ok := m.NumericValue()
		if !ok {
			// Non-numeric values cannot trigger numeric thresholds.
			continue
		}

		if compare(rule.Operator, value, rule.CriticalValue) {
			e.logger.Warn("critical measurement detected",
				zap.String("name", m.Name),
				zap.Float64("value", value),
				zap.String("pattern", rule.MetricPattern),
				zap.String("specialist", rule.Specialist),
				zap.String("urgency", string(rule.Urgency)),
			)
			return true
		}
	}

	return false
}

// MarksCritical reports whether a measurement must be treated as critical
// by the classifier and the orchestrator: either its status says so, it is
// a positive infectious-disease marker, or it trips a threshold rule.
func (e *Evaluator) MarksCritical(m model.Measurement) bool {
	if m.Status == model.StatusCritical {
		return true
	}
	if isInfectiousPositive(m) {
		return true
	}
	return e.IsCritical(m)
}

// RuleFor returns the first rule in table order whose pattern matches the
// measurement name, regardless of whether its comparison holds. Used for
// specialist routing.
func (e *Evaluator) RuleFor(name string) (model.ThresholdRule, bool) {
	lower := strings.ToLower(name)
	for _, rule := range e.table {
		if strings.Contains(lower, strings.ToLower(rule.MetricPattern)) {
			return rule, true
		}
	}
	return model.ThresholdRule{}, false
}

// infectiousMarkers are measurement-name fragments for which a positive
// or detected result is critical regardless of any numeric value.
var infectiousMarkers = []string{"hepatitis", "hiv", "syphilis"}

func isInfectiousPositive(m model.Measurement) bool {
	if m.Status != model.StatusPositive && m.Status != model.StatusDetected {
		return false
	}
	name := strings.ToLower(m.Name)
	for _, marker := range infectiousMarkers {
		if strings.Contains(name, marker) {
			return true
		}
	}
	return false
}

// compare applies a threshold operator between a measured value and the
// rule's critical value. Unknown operators never match.
func compare(op string, value, critical float64) bool {
	switch op {
	case ">":
		return value > critical
	case "<":
		return value < critical
	case ">=":
		return value >= critical
	case "<=":
		return value <= critical
	default:
		return false
	}
}

// specialistLookup routes a metric name to the specialist who should see
// it when the remote agent is unreachable. Matching is a case-insensitive
// substring check, first entry wins.
var specialistLookup = []struct {
	pattern    string
	specialist string
}{
	{"glucose", "Endocrinologist"},
	{"glycated hemoglobin", "Endocrinologist"},
	{"hba1c", "Endocrinologist"},
	{"thyroid", "Endocrinologist"},
	{"alt", "Gastroenterologist"},
	{"ast", "Gastroenterologist"},
	{"alp", "Gastroenterologist"},
	{"ggt", "Gastroenterologist"},
	{"bilirubin", "Gastroenterologist"},
	{"creatinine", "Nephrologist"},
	{"urea", "Nephrologist"},
	{"hemoglobin", "Hematologist"},
	{"platelets", "Hematologist"},
	{"white blood cells", "Hematologist"},
	{"cholesterol", "Cardiologist"},
	{"ldl", "Cardiologist"},
	{"triglycerides", "Cardiologist"},
}

// SpecialistFor resolves the specialist for a metric name, defaulting to
// a general practitioner when nothing matches.
func SpecialistFor(metricName string) string {
	lower := strings.ToLower(metricName)
	for _, entry := range specialistLookup {
		if strings.Contains(lower, entry.pattern) {
			return entry.specialist
		}
	}
	return "General Practitioner"
}
