package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/medassist/clinical-portal/internal/agent"
	"github.com/medassist/clinical-portal/internal/audit"
	"github.com/medassist/clinical-portal/internal/live"
	"github.com/medassist/clinical-portal/internal/triage"
	"github.com/medassist/clinical-portal/pkg/model"
	"go.uber.org/zap"
)

type staticMeasurementSource struct {
	measurements []model.Measurement
	err          error
}

func (s *staticMeasurementSource) Measurements(ctx context.Context, analysisID int) ([]model.Measurement, error) {
	return s.measurements, s.err
}

type noopCaller struct{}

func (noopCaller) AnalyzeAndAct(ctx context.Context, req agent.AnalyzeRequest) (*model.AgentResponse, error) {
	return &model.AgentResponse{}, nil
}

func newTestEscalationHandler(source MeasurementSource) *EscalationHandler {
	logger := zap.NewNop()
	evaluator := triage.NewEvaluator(triage.DefaultTable(), logger)
	classifier := triage.NewClassifier(evaluator, logger)
	orchestrator := triage.NewOrchestrator(evaluator, classifier, noopCaller{}, nil, logger)
	return NewEscalationHandler(orchestrator, evaluator, source, audit.NewTrail(16, logger), logger)
}

func newTestChatHandler() *ChatHandler {
	logger := zap.NewNop()
	hub := live.NewHub(
		live.ManagerConfig{Host: "portal.test:8080", DemoMode: true},
		live.SessionConfig{},
		nil,
		logger,
	)
	return NewChatHandler(hub, audit.NewTrail(16, logger), logger)
}

// Every error response carries a stable machine-readable code and a
// human-readable message, regardless of which endpoint produced it.
func TestProperty_ErrorResponseStructure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("all error responses carry code, message, and optional details", prop.ForAll(
		func(scenario string) bool {
			gin.SetMode(gin.TestMode)
			w := httptest.NewRecorder()
			_, router := gin.CreateTestContext(w)

			var request *http.Request
			var expectedCode string
			var expectedStatus int

			switch scenario {
			case "invalid_json_evaluate":
				handler := newTestEscalationHandler(&staticMeasurementSource{})
				router.POST("/test", handler.Evaluate)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString("{invalid json"))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "missing_analysis_id":
				handler := newTestEscalationHandler(&staticMeasurementSource{})
				router.POST("/test", handler.Evaluate)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{}`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "measurement_source_down":
				handler := newTestEscalationHandler(&staticMeasurementSource{err: context.DeadlineExceeded})
				router.POST("/test", handler.Evaluate)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"health_analysis_id":42}`))
				expectedCode = "MEASUREMENT_SOURCE_ERROR"
				expectedStatus = http.StatusBadGateway

			case "invalid_json_chat_send":
				handler := newTestChatHandler()
				router.POST("/test", handler.Send)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"sender_id": }`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "missing_chat_fields":
				handler := newTestChatHandler()
				router.POST("/test", handler.Send)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"sender_id":"patient-1"}`))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "too_many_attachments":
				handler := newTestChatHandler()
				router.POST("/test", handler.Send)

				body := map[string]any{
					"sender_id":   "patient-1",
					"receiver_id": "doctor-1",
					"text":        "see attached",
					"attachments": make([]model.Attachment, 6),
				}
				raw, _ := json.Marshal(body)
				request = httptest.NewRequest("POST", "/test", bytes.NewBuffer(raw))
				expectedCode = "ATTACHMENT_VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "history_missing_params":
				handler := newTestChatHandler()
				router.GET("/test", handler.History)

				request = httptest.NewRequest("GET", "/test?user_id=patient-1", nil)
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			case "invalid_json_mark_read":
				handler := newTestChatHandler()
				router.POST("/test", handler.MarkRead)

				request = httptest.NewRequest("POST", "/test", bytes.NewBufferString("not json"))
				expectedCode = "VALIDATION_ERROR"
				expectedStatus = http.StatusBadRequest

			default:
				return true
			}

			request.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, request)

			if w.Code != expectedStatus {
				return false
			}

			var resp errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				return false
			}

			return resp.Code == expectedCode && resp.Message != ""
		},
		gen.OneConstOf(
			"invalid_json_evaluate",
			"missing_analysis_id",
			"measurement_source_down",
			"invalid_json_chat_send",
			"missing_chat_fields",
			"too_many_attachments",
			"history_missing_params",
			"invalid_json_mark_read",
		),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// A successful evaluation never produces an error envelope: the response
// is the escalation result itself, whatever the measurements were.
func TestProperty_EvaluateAlwaysReturnsResult(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("evaluate returns a complete result for any measurement set", prop.ForAll(
		func(values []float64) bool {
			gin.SetMode(gin.TestMode)

			measurements := make([]model.Measurement, 0, len(values))
			for _, v := range values {
				measurements = append(measurements, model.Measurement{
					Name:   "Glucose",
					Value:  v,
					Status: model.StatusHigh,
				})
			}

			handler := newTestEscalationHandler(&staticMeasurementSource{measurements: measurements})

			w := httptest.NewRecorder()
			_, router := gin.CreateTestContext(w)
			router.POST("/test", handler.Evaluate)

			request := httptest.NewRequest("POST", "/test", bytes.NewBufferString(`{"health_analysis_id":42}`))
			request.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, request)

			if w.Code != http.StatusOK {
				return false
			}

			var result model.EscalationResult
			if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
				return false
			}

			// Actions are non-empty exactly when critical values exist.
			if result.HasCriticalValues {
				return len(result.RecommendedActions) > 0
			}
			return len(result.RecommendedActions) == 0
		},
		gen.SliceOf(gen.Float64Range(0, 30)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
