package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MeasurementStatus is the qualitative status assigned to a measurement
// by the upstream analysis collaborator.
type MeasurementStatus string

const (
	StatusNormal   MeasurementStatus = "normal"
	StatusLow      MeasurementStatus = "low"
	StatusHigh     MeasurementStatus = "high"
	StatusElevated MeasurementStatus = "elevated"
	StatusCritical MeasurementStatus = "critical"
	// Qualitative results for infectious-disease markers.
	StatusPositive MeasurementStatus = "positive"
	StatusDetected MeasurementStatus = "detected"
)

// Measurement is one named clinical value with a qualitative status.
// Measurements are produced by the analysis collaborator and are
// immutable once received.
type Measurement struct {
	Name           string            `json:"name"`
	Value          any               `json:"value"`
	Unit           string            `json:"unit,omitempty"`
	ReferenceRange string            `json:"reference_range,omitempty"`
	Status         MeasurementStatus `json:"status"`
}

// NumericValue parses the measurement value as a number. Values arrive
// either as JSON numbers or as strings; anything unparseable reports ok
// false and is simply unable to trigger numeric thresholds.
func (m Measurement) NumericValue() (float64, bool) {
	switch v := m.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ThresholdUrgency describes how quickly a tripped rule must be acted on.
type ThresholdUrgency string

const (
	ThresholdImmediate ThresholdUrgency = "immediate"
	ThresholdUrgent    ThresholdUrgency = "urgent"
	ThresholdPriority  ThresholdUrgency = "priority"
)

// ThresholdRule is a configured numeric test that marks a measurement
// critical and names the specialist to route to. MetricPattern is matched
// as a case-insensitive substring of the measurement name; table order is
// the priority order.
type ThresholdRule struct {
	MetricPattern string           `json:"metric_pattern"`
	Operator      string           `json:"operator"` // one of > < >= <=
	CriticalValue float64          `json:"critical_value"`
	Specialist    string           `json:"specialist"`
	Urgency       ThresholdUrgency `json:"urgency"`
}

// UrgencyLevel is the aggregate severity classification over a
// measurement set. Levels are totally ordered.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyCritical
)

func (u UrgencyLevel) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyMedium:
		return "medium"
	case UrgencyHigh:
		return "high"
	case UrgencyCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// MarshalJSON renders the level as its string form.
func (u UrgencyLevel) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.String() + `"`), nil
}

// UnmarshalJSON parses the string form back into a level.
func (u *UrgencyLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "low":
		*u = UrgencyLow
	case "medium":
		*u = UrgencyMedium
	case "high":
		*u = UrgencyHigh
	case "critical":
		*u = UrgencyCritical
	default:
		return fmt.Errorf("unknown urgency level %q", s)
	}
	return nil
}

// EscalationResult is the outcome of one escalation check. It is created
// per check and never persisted by this subsystem.
type EscalationResult struct {
	HasCriticalValues    bool           `json:"has_critical_values"`
	CriticalMeasurements []Measurement  `json:"critical_measurements"`
	UrgencyLevel         UrgencyLevel   `json:"urgency_level"`
	RecommendedActions   []string       `json:"recommended_actions"`
	AgentReasoning       string         `json:"agent_reasoning,omitempty"`
	RemoteResponse       *AgentResponse `json:"remote_response,omitempty"`
}

// AnalysisSummary mirrors the analysis_summary block of the remote
// escalation response.
type AnalysisSummary struct {
	TotalMetrics     int    `json:"total_metrics"`
	AbnormalMetrics  int    `json:"abnormal_metrics"`
	CriticalMetrics  int    `json:"critical_metrics"`
	PriorityLevel    string `json:"priority_level"`
	HealthAnalysisID int    `json:"health_analysis_id"`
}

// SpecialistRecommendation is one specialist the remote agent recommends.
type SpecialistRecommendation struct {
	Type            string   `json:"type"`
	Reason          string   `json:"reason"`
	Priority        string   `json:"priority"`
	MetricsInvolved []string `json:"metrics_involved,omitempty"`
}

// AgentRecommendations is the recommendations block of the remote
// escalation response.
type AgentRecommendations struct {
	RecommendedSpecialists []SpecialistRecommendation `json:"recommended_specialists"`
	AgentReasoning         string                     `json:"agent_reasoning,omitempty"`
	NextSteps              []string                   `json:"next_steps,omitempty"`
}

// AppointmentBooked describes an appointment the remote agent booked
// automatically on the patient's behalf.
type AppointmentBooked struct {
	AppointmentID     int    `json:"appointment_id"`
	ScheduledDatetime string `json:"scheduled_datetime"`
	Specialist        string `json:"specialist,omitempty"`
	Location          string `json:"location,omitempty"`
}

// AgentResponse is the full response of the remote escalation call.
type AgentResponse struct {
	AnalysisSummary   AnalysisSummary      `json:"analysis_summary"`
	Recommendations   AgentRecommendations `json:"recommendations"`
	ActionsTaken      []string             `json:"actions_taken,omitempty"`
	AppointmentBooked *AppointmentBooked   `json:"appointment_booked,omitempty"`
}

// ConnectionState is the live-channel state. Exactly one instance exists
// per active session, owned and mutated only by the connection manager.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateSimulated
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateSimulated:
		return "simulated"
	default:
		return "unknown"
	}
}

// IsConnected reports whether callers should treat the channel as usable.
// Simulated mode is reported as connected so the portal always has a
// consistent connectivity signal.
func (s ConnectionState) IsConnected() bool {
	return s == StateConnected || s == StateSimulated
}

// MessageType classifies a chat message.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeQuestion MessageType = "question"
	MessageTypeUrgent   MessageType = "urgent"
)

// Attachment describes one file attached to a chat message. Attachments
// are validated by the session; storage is a collaborator concern.
type Attachment struct {
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Message is one entry in a conversation between a patient and a
// provider. Messages are append-only: once created only IsRead may change.
type Message struct {
	ID          string       `json:"id"`
	SenderID    string       `json:"sender_id"`
	ReceiverID  string       `json:"receiver_id"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Type        MessageType  `json:"type"`
	IsRead      bool         `json:"is_read"`
	CreatedAt   time.Time    `json:"created_at"`
}
