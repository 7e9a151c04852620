package triage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/medassist/clinical-portal/internal/agent"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

// EscalationCaller performs the remote escalation call.
type EscalationCaller interface {
	AnalyzeAndAct(ctx context.Context, req agent.AnalyzeRequest) (*model.AgentResponse, error)
}

// Reasoner is an optional enrichment seam producing a short clinical
// reasoning summary for critical measurements.
type Reasoner interface {
	Summarize(ctx context.Context, measurements []model.Measurement) (string, error)
}

// Orchestrator decides whether a measurement set needs escalation,
// invokes the remote escalation call, and falls back to locally computed
// recommendations when the call fails. A failed remote call is never
// surfaced to the caller: a patient must always receive guidance instead
// of an error.
type Orchestrator struct {
	evaluator  *Evaluator
	classifier *Classifier
	caller     EscalationCaller
	reasoner   Reasoner // optional
	now        func() time.Time
	logger     *zap.Logger
}

// NewOrchestrator creates a new escalation Orchestrator. reasoner may be
// nil to disable reasoning enrichment.
func NewOrchestrator(evaluator *Evaluator, classifier *Classifier, caller EscalationCaller, reasoner Reasoner, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		evaluator:  evaluator,
		classifier: classifier,
		caller:     caller,
		reasoner:   reasoner,
		now:        time.Now,
		logger:     logger,
	}
}

// Evaluate runs the escalation check for one analysis. It always returns
// a complete result; remote failures are recovered with locally generated
// recommendations.
func (o *Orchestrator) Evaluate(ctx context.Context, analysisID int, measurements []model.Measurement) model.EscalationResult {
	critical := make([]model.Measurement, 0)
	for _, m := range measurements {
		if o.evaluator.MarksCritical(m) {
			critical = append(critical, m)
		}
	}

	urgency := o.classifier.Classify(measurements)

	result := model.EscalationResult{
		HasCriticalValues:    len(critical) > 0,
		CriticalMeasurements: critical,
		UrgencyLevel:         urgency,
		RecommendedActions:   []string{},
	}

	if len(critical) == 0 {
		return result
	}

	o.logger.Warn("critical values found, escalating",
		zap.Int("analysis_id", analysisID),
		zap.Int("critical_count", len(critical)),
		zap.String("urgency", urgency.String()),
	)

	resp, err := o.caller.AnalyzeAndAct(ctx, agent.AnalyzeRequest{
		HealthAnalysisID:  analysisID,
		AutoBookCritical:  true,
		PreferredDatetime: o.preferredSlot().Format(time.RFC3339),
	})

	if err == nil {
		actions := remoteActions(resp)
		if len(actions) > 0 {
			result.RecommendedActions = actions
			result.AgentReasoning = resp.Recommendations.AgentReasoning
			result.RemoteResponse = resp
			return result
		}
		// A successful call with no usable guidance is treated like a
		// failure so the caller never receives an empty action list.
		o.logger.Warn("remote escalation returned no actions, using local fallback",
			zap.Int("analysis_id", analysisID),
		)
	} else {
		o.logger.Warn("remote escalation failed, using local fallback",
			zap.Error(err),
			zap.Int("analysis_id", analysisID),
		)
	}

	result.RecommendedActions = localActions(critical)
	if o.reasoner != nil {
		if reasoning, rerr := o.reasoner.Summarize(ctx, critical); rerr == nil {
			result.AgentReasoning = reasoning
		} else {
			o.logger.Debug("reasoning enrichment skipped", zap.Error(rerr))
		}
	}

	return result
}

// preferredSlot is the auto-booking target: the next day at 09:00 local.
func (o *Orchestrator) preferredSlot() time.Time {
	t := o.now()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 9, 0, 0, 0, t.Location())
}

// remoteActions assembles the recommended-action list from a successful
// escalation response: booking notice first, then one consult line per
// recommended specialist, then any next steps.
func remoteActions(resp *model.AgentResponse) []string {
	actions := make([]string, 0)

	if resp.AppointmentBooked != nil {
		actions = append(actions, fmt.Sprintf(
			"Appointment scheduled for %s (appointment #%d)",
			resp.AppointmentBooked.ScheduledDatetime,
			resp.AppointmentBooked.AppointmentID,
		))
	}

	for _, spec := range resp.Recommendations.RecommendedSpecialists {
		actions = append(actions, fmt.Sprintf("Consult %s: %s", spec.Type, spec.Reason))
	}

	actions = append(actions, resp.Recommendations.NextSteps...)

	return actions
}

// localActions builds the fallback recommendation list when the remote
// agent is unreachable: an alert banner, one consult line per critical
// measurement with the specialist resolved locally, then the standing
// instruction.
func localActions(critical []model.Measurement) []string {
	actions := make([]string, 0, len(critical)+2)
	actions = append(actions, "Critical values detected - urgent medical attention required")

	for _, m := range critical {
		line := fmt.Sprintf("Consult %s for %s: %v", SpecialistFor(m.Name), m.Name, m.Value)
		if m.Unit != "" {
			line += " " + m.Unit
		}
		actions = append(actions, strings.TrimSpace(line))
	}

	actions = append(actions, "Contact your healthcare provider immediately and consider emergency care if symptoms worsen")

	return actions
}
