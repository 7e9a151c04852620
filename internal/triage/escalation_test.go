package triage

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/medassist/clinical-portal/internal/agent"
	"github.com/medassist/clinical-portal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCaller struct {
	resp   *model.AgentResponse
	err    error
	calls  int
	gotReq agent.AnalyzeRequest
}

func (f *fakeCaller) AnalyzeAndAct(ctx context.Context, req agent.AnalyzeRequest) (*model.AgentResponse, error) {
	f.calls++
	f.gotReq = req
	return f.resp, f.err
}

type fakeReasoner struct {
	summary string
	err     error
}

func (f *fakeReasoner) Summarize(ctx context.Context, measurements []model.Measurement) (string, error) {
	return f.summary, f.err
}

func newTestOrchestrator(caller EscalationCaller, reasoner Reasoner) *Orchestrator {
	logger := zap.NewNop()
	evaluator := NewEvaluator(DefaultTable(), logger)
	classifier := NewClassifier(evaluator, logger)
	return NewOrchestrator(evaluator, classifier, caller, reasoner, logger)
}

func TestEvaluate_NoCriticalValues(t *testing.T) {
	caller := &fakeCaller{}
	o := newTestOrchestrator(caller, nil)

	measurements := []model.Measurement{
		{Name: "Hemoglobin", Value: 95.0, Status: model.StatusNormal},
		{Name: "Total Cholesterol", Value: 210.0, Status: model.StatusHigh},
	}

	result := o.Evaluate(context.Background(), 42, measurements)

	assert.False(t, result.HasCriticalValues)
	assert.Empty(t, result.CriticalMeasurements)
	assert.Equal(t, model.UrgencyMedium, result.UrgencyLevel)
	assert.Empty(t, result.RecommendedActions)
	assert.Equal(t, 0, caller.calls, "remote call must not happen without critical values")
}

func TestEvaluate_RemoteSuccess_ActionOrdering(t *testing.T) {
	caller := &fakeCaller{
		resp: &model.AgentResponse{
			AnalysisSummary: model.AnalysisSummary{
				TotalMetrics:     3,
				CriticalMetrics:  1,
				PriorityLevel:    "high",
				HealthAnalysisID: 42,
			},
			Recommendations: model.AgentRecommendations{
				RecommendedSpecialists: []model.SpecialistRecommendation{
					{Type: "Endocrinologist", Reason: "glucose above the critical limit", Priority: "high"},
					{Type: "Nephrologist", Reason: "rule out diabetic kidney damage", Priority: "medium"},
				},
				AgentReasoning: "glucose is far outside the reference range",
				NextSteps:      []string{"Repeat fasting glucose within 48 hours"},
			},
			AppointmentBooked: &model.AppointmentBooked{
				AppointmentID:     7,
				ScheduledDatetime: "2026-08-24T09:00:00+05:00",
			},
		},
	}
	o := newTestOrchestrator(caller, nil)

	measurements := []model.Measurement{
		{Name: "Glucose", Value: 12.5, Unit: "mmol/L", Status: model.StatusHigh},
	}

	result := o.Evaluate(context.Background(), 42, measurements)

	assert.True(t, result.HasCriticalValues)
	assert.Equal(t, model.UrgencyCritical, result.UrgencyLevel)
	require.Len(t, result.RecommendedActions, 4)

	// Booking notice first, then one consult line per specialist, then
	// next steps.
	assert.Contains(t, result.RecommendedActions[0], "Appointment scheduled")
	assert.Contains(t, result.RecommendedActions[0], "#7")
	assert.Equal(t, "Consult Endocrinologist: glucose above the critical limit", result.RecommendedActions[1])
	assert.Equal(t, "Consult Nephrologist: rule out diabetic kidney damage", result.RecommendedActions[2])
	assert.Equal(t, "Repeat fasting glucose within 48 hours", result.RecommendedActions[3])

	assert.Equal(t, "glucose is far outside the reference range", result.AgentReasoning)
	require.NotNil(t, result.RemoteResponse)
	assert.Equal(t, 42, result.RemoteResponse.AnalysisSummary.HealthAnalysisID)
}

func TestEvaluate_RemoteFailure_LocalFallback(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("connection refused")}
	o := newTestOrchestrator(caller, nil)

	measurements := []model.Measurement{
		{Name: "Glucose", Value: 12.5, Unit: "mmol/L", Status: model.StatusHigh},
		{Name: "Creatinine", Value: 200.0, Unit: "umol/L", Status: model.StatusHigh},
	}

	result := o.Evaluate(context.Background(), 42, measurements)

	assert.True(t, result.HasCriticalValues)
	require.Len(t, result.CriticalMeasurements, 2)

	// Banner first, one consult line per critical measurement, standing
	// instruction last. The failure itself is never surfaced.
	actions := result.RecommendedActions
	require.Len(t, actions, 4)
	assert.Contains(t, actions[0], "Critical values detected")
	assert.Equal(t, "Consult Endocrinologist for Glucose: 12.5 mmol/L", actions[1])
	assert.Equal(t, "Consult Nephrologist for Creatinine: 200 umol/L", actions[2])
	assert.Contains(t, actions[3], "Contact your healthcare provider immediately")

	assert.Nil(t, result.RemoteResponse)
}

func TestEvaluate_RemoteEmptyGuidance_FallsBackLocally(t *testing.T) {
	caller := &fakeCaller{resp: &model.AgentResponse{}}
	o := newTestOrchestrator(caller, nil)

	measurements := []model.Measurement{
		{Name: "Platelets", Value: 60.0, Unit: "x10^9/L", Status: model.StatusLow},
	}

	result := o.Evaluate(context.Background(), 42, measurements)

	require.NotEmpty(t, result.RecommendedActions)
	assert.Contains(t, result.RecommendedActions[0], "Critical values detected")
	assert.Contains(t, strings.Join(result.RecommendedActions, "\n"), "Hematologist")
}

func TestEvaluate_AutoBookRequest(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("unreachable")}
	o := newTestOrchestrator(caller, nil)
	o.now = func() time.Time {
		return time.Date(2026, time.August, 23, 17, 30, 0, 0, time.UTC)
	}

	o.Evaluate(context.Background(), 42, []model.Measurement{
		{Name: "Glucose", Value: 12.5, Status: model.StatusHigh},
	})

	require.Equal(t, 1, caller.calls)
	assert.Equal(t, 42, caller.gotReq.HealthAnalysisID)
	assert.True(t, caller.gotReq.AutoBookCritical)
	assert.Equal(t, "2026-08-24T09:00:00Z", caller.gotReq.PreferredDatetime)
}

func TestEvaluate_ReasonerEnrichesFallback(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("unreachable")}
	o := newTestOrchestrator(caller, &fakeReasoner{summary: "values consistent with uncontrolled diabetes"})

	result := o.Evaluate(context.Background(), 42, []model.Measurement{
		{Name: "Glucose", Value: 15.5, Status: model.StatusHigh},
	})

	assert.Equal(t, "values consistent with uncontrolled diabetes", result.AgentReasoning)
}

func TestEvaluate_ReasonerFailureIsIgnored(t *testing.T) {
	caller := &fakeCaller{err: fmt.Errorf("unreachable")}
	o := newTestOrchestrator(caller, &fakeReasoner{err: fmt.Errorf("rate limited")})

	result := o.Evaluate(context.Background(), 42, []model.Measurement{
		{Name: "Glucose", Value: 15.5, Status: model.StatusHigh},
	})

	assert.Empty(t, result.AgentReasoning)
	assert.NotEmpty(t, result.RecommendedActions)
}
