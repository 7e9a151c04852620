package audit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// OperationType represents the type of operation performed
type OperationType string

const (
	OperationEvaluate OperationType = "ESCALATION_EVALUATE"
	OperationEscalate OperationType = "ESCALATION_REMOTE_CALL"
	OperationFallback OperationType = "ESCALATION_FALLBACK"
	OperationSend     OperationType = "MESSAGE_SEND"
	OperationRead     OperationType = "MESSAGE_READ"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceAnalysis ResourceType = "health_analysis"
	ResourceMessage  ResourceType = "message"
	ResourceSession  ResourceType = "message_session"
)

// Entry is one audit trail record.
type Entry struct {
	OperationType OperationType  `json:"operation_type"`
	ResourceType  ResourceType   `json:"resource_type"`
	ResourceID    string         `json:"resource_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Detail        map[string]any `json:"detail,omitempty"`
}

// Trail keeps a bounded in-memory audit trail of clinically relevant
// operations and mirrors every entry to the structured log. Entries are
// not persisted; durable audit storage belongs to the surrounding
// platform.
type Trail struct {
	logger *zap.Logger
	limit  int

	mu      sync.Mutex
	entries []Entry
}

// NewTrail creates an audit trail retaining at most limit entries.
func NewTrail(limit int, logger *zap.Logger) *Trail {
	if limit <= 0 {
		limit = 256
	}
	return &Trail{
		logger: logger,
		limit:  limit,
	}
}

// Record appends one audit entry, evicting the oldest when full.
func (t *Trail) Record(entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	t.logger.Info("audit entry",
		zap.String("operation", string(entry.OperationType)),
		zap.String("resource_type", string(entry.ResourceType)),
		zap.String("resource_id", entry.ResourceID),
		zap.Time("timestamp", entry.Timestamp),
	)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
}

// Recent returns up to limit entries, newest first.
func (t *Trail) Recent(limit int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.entries) {
		limit = len(t.entries)
	}

	out := make([]Entry, 0, limit)
	for i := len(t.entries) - 1; i >= len(t.entries)-limit; i-- {
		out = append(out, t.entries[i])
	}
	return out
}

// Len returns the number of retained entries.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
