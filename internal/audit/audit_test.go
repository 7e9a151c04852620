package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTrail_RecordAndRecent(t *testing.T) {
	trail := NewTrail(10, zap.NewNop())

	trail.Record(Entry{OperationType: OperationEvaluate, ResourceType: ResourceAnalysis, ResourceID: "42"})
	trail.Record(Entry{OperationType: OperationSend, ResourceType: ResourceMessage, ResourceID: "msg-1"})

	entries := trail.Recent(10)
	require.Len(t, entries, 2)

	// Newest first.
	assert.Equal(t, OperationSend, entries[0].OperationType)
	assert.Equal(t, OperationEvaluate, entries[1].OperationType)
	assert.False(t, entries[0].Timestamp.IsZero(), "timestamp is filled in when missing")
}

func TestTrail_EvictsOldestWhenFull(t *testing.T) {
	trail := NewTrail(3, zap.NewNop())

	for i := 0; i < 5; i++ {
		trail.Record(Entry{
			OperationType: OperationEvaluate,
			ResourceType:  ResourceAnalysis,
			ResourceID:    fmt.Sprintf("%d", i),
		})
	}

	assert.Equal(t, 3, trail.Len())
	entries := trail.Recent(3)
	require.Len(t, entries, 3)
	assert.Equal(t, "4", entries[0].ResourceID)
	assert.Equal(t, "2", entries[2].ResourceID)
}

func TestTrail_RecentLimit(t *testing.T) {
	trail := NewTrail(10, zap.NewNop())
	for i := 0; i < 5; i++ {
		trail.Record(Entry{OperationType: OperationRead, ResourceType: ResourceSession, ResourceID: "s"})
	}

	assert.Len(t, trail.Recent(2), 2)
	assert.Len(t, trail.Recent(0), 5)
	assert.Len(t, trail.Recent(100), 5)
}
