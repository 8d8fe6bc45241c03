package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventsCarryTypeAndAggregate(t *testing.T) {
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		event     DomainEvent
		eventType string
		aggregate string
	}{
		{NewEdgeAdmitted("a", "b", 0.9, false, at), TypeEdgeAdmitted, "a"},
		{NewEdgeRejected("a", "b", 0.1, "below_threshold", at), TypeEdgeRejected, "a"},
		{NewEdgeEvicted("a", "c", 0.8, "d", at), TypeEdgeEvicted, "a"},
		{NewEdgeRemoved("a", "b", RemovalExplicit, at), TypeEdgeRemoved, "a"},
		{NewDomainRemoved("a", 3, at), TypeDomainRemoved, "a"},
		{NewBatchFlushed("flush-1", 2, 150, 0, 0, time.Second, at), TypeBatchFlushed, "flush-1"},
		{NewConnectionEstablished("dynamodb", time.Second, at), TypeConnectionEstablished, "dynamodb"},
		{NewConnectionFailed("dynamodb", errors.New("denied"), at), TypeConnectionFailed, "dynamodb"},
		{NewOperationRetried("apply", 1, time.Millisecond, errors.New("busy"), at), TypeOperationRetried, "apply"},
		{NewOperationExhausted("apply", 3, errors.New("busy"), at), TypeOperationExhausted, "apply"},
	}

	seen := map[string]bool{}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			assert.Equal(t, tt.eventType, tt.event.GetEventType())
			assert.Equal(t, tt.aggregate, tt.event.GetAggregateID())
			assert.True(t, tt.event.GetTimestamp().Equal(at))
			assert.NotEmpty(t, tt.event.GetEventID())
			assert.False(t, seen[tt.event.GetEventID()], "event ids must be unique")
			seen[tt.event.GetEventID()] = true
		})
	}
}

func TestEdgeRejected_JSON(t *testing.T) {
	event := NewEdgeRejected("a", "b", 0.5, "below_threshold", time.Unix(0, 0))

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "below_threshold", decoded["reason"])
	assert.Equal(t, TypeEdgeRejected, decoded["event_type"])
}
