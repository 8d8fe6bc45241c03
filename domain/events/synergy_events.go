package events

import (
	"time"

	"github.com/google/uuid"
)

// Source identifies this service as the origin of published events
const Source = "synergy.graph"

// Event type names
const (
	TypeEdgeAdmitted          = "synergy.edge.admitted"
	TypeEdgeRejected          = "synergy.edge.rejected"
	TypeEdgeEvicted           = "synergy.edge.evicted"
	TypeEdgeRemoved           = "synergy.edge.removed"
	TypeDomainRemoved         = "synergy.domain.removed"
	TypeBatchFlushed          = "store.batch.flushed"
	TypeConnectionEstablished = "store.connection.established"
	TypeConnectionFailed      = "store.connection.failed"
	TypeOperationRetried      = "store.operation.retried"
	TypeOperationExhausted    = "store.operation.exhausted"
)

// Edge removal causes
const (
	RemovalBelowThreshold = "below_threshold"
	RemovalExplicit       = "explicit"
	RemovalDomainRemoved  = "domain_removed"
	RemovalCapacityTrim   = "capacity_trim"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetEventID() string
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
}

// BaseEvent provides common event fields
type BaseEvent struct {
	EventID     string    `json:"event_id"`
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
}

func (e BaseEvent) GetEventID() string      { return e.EventID }
func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }

func newBase(aggregateID, eventType string, at time.Time) BaseEvent {
	return BaseEvent{
		EventID:     uuid.NewString(),
		AggregateID: aggregateID,
		EventType:   eventType,
		Timestamp:   at.UTC(),
	}
}

// Graph events

// EdgeAdmitted is raised when an edge is created or its score updated
type EdgeAdmitted struct {
	BaseEvent
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Score   float64 `json:"score"`
	Updated bool    `json:"updated"`
}

// NewEdgeAdmitted creates an EdgeAdmitted event
func NewEdgeAdmitted(source, target string, score float64, updated bool, at time.Time) EdgeAdmitted {
	return EdgeAdmitted{
		BaseEvent: newBase(source, TypeEdgeAdmitted, at),
		Source:    source,
		Target:    target,
		Score:     score,
		Updated:   updated,
	}
}

// EdgeRejected is raised when a proposal is declined by admission policy
type EdgeRejected struct {
	BaseEvent
	Source string  `json:"source"`
	Target string  `json:"target"`
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// NewEdgeRejected creates an EdgeRejected event
func NewEdgeRejected(source, target string, score float64, reason string, at time.Time) EdgeRejected {
	return EdgeRejected{
		BaseEvent: newBase(source, TypeEdgeRejected, at),
		Source:    source,
		Target:    target,
		Score:     score,
		Reason:    reason,
	}
}

// EdgeEvicted is raised when a full adjacency set drops its weakest edge
type EdgeEvicted struct {
	BaseEvent
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Score     float64 `json:"score"`
	EvictedBy string  `json:"evicted_by"`
}

// NewEdgeEvicted creates an EdgeEvicted event
func NewEdgeEvicted(source, target string, score float64, evictedBy string, at time.Time) EdgeEvicted {
	return EdgeEvicted{
		BaseEvent: newBase(source, TypeEdgeEvicted, at),
		Source:    source,
		Target:    target,
		Score:     score,
		EvictedBy: evictedBy,
	}
}

// EdgeRemoved is raised when an edge leaves the graph for any reason other than eviction
type EdgeRemoved struct {
	BaseEvent
	Source string `json:"source"`
	Target string `json:"target"`
	Cause  string `json:"cause"`
}

// NewEdgeRemoved creates an EdgeRemoved event
func NewEdgeRemoved(source, target, cause string, at time.Time) EdgeRemoved {
	return EdgeRemoved{
		BaseEvent: newBase(source, TypeEdgeRemoved, at),
		Source:    source,
		Target:    target,
		Cause:     cause,
	}
}

// DomainRemoved is raised when a domain and all of its edges are deleted
type DomainRemoved struct {
	BaseEvent
	Domain       string `json:"domain"`
	EdgesRemoved int    `json:"edges_removed"`
}

// NewDomainRemoved creates a DomainRemoved event
func NewDomainRemoved(domain string, edgesRemoved int, at time.Time) DomainRemoved {
	return DomainRemoved{
		BaseEvent:    newBase(domain, TypeDomainRemoved, at),
		Domain:       domain,
		EdgesRemoved: edgesRemoved,
	}
}

// Store events

// BatchFlushed is raised after every flush round
type BatchFlushed struct {
	BaseEvent
	Groups    int           `json:"groups"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Pending   int           `json:"pending"`
	Duration  time.Duration `json:"duration"`
}

// NewBatchFlushed creates a BatchFlushed event keyed by the flush round id
func NewBatchFlushed(flushID string, groups, succeeded, failed, pending int, duration time.Duration, at time.Time) BatchFlushed {
	return BatchFlushed{
		BaseEvent: newBase(flushID, TypeBatchFlushed, at),
		Groups:    groups,
		Succeeded: succeeded,
		Failed:    failed,
		Pending:   pending,
		Duration:  duration,
	}
}

// ConnectionEstablished is raised when the shared store handle is created
type ConnectionEstablished struct {
	BaseEvent
	Duration time.Duration `json:"duration"`
}

// NewConnectionEstablished creates a ConnectionEstablished event
func NewConnectionEstablished(store string, duration time.Duration, at time.Time) ConnectionEstablished {
	return ConnectionEstablished{
		BaseEvent: newBase(store, TypeConnectionEstablished, at),
		Duration:  duration,
	}
}

// ConnectionFailed is raised when creating the store handle fails
type ConnectionFailed struct {
	BaseEvent
	Error string `json:"error"`
}

// NewConnectionFailed creates a ConnectionFailed event
func NewConnectionFailed(store string, err error, at time.Time) ConnectionFailed {
	return ConnectionFailed{
		BaseEvent: newBase(store, TypeConnectionFailed, at),
		Error:     errString(err),
	}
}

// OperationRetried is raised before each backoff sleep
type OperationRetried struct {
	BaseEvent
	Operation string        `json:"operation"`
	Attempt   int           `json:"attempt"`
	Delay     time.Duration `json:"delay"`
	Error     string        `json:"error"`
}

// NewOperationRetried creates an OperationRetried event
func NewOperationRetried(operation string, attempt int, delay time.Duration, err error, at time.Time) OperationRetried {
	return OperationRetried{
		BaseEvent: newBase(operation, TypeOperationRetried, at),
		Operation: operation,
		Attempt:   attempt,
		Delay:     delay,
		Error:     errString(err),
	}
}

// OperationExhausted is raised when an operation gives up
type OperationExhausted struct {
	BaseEvent
	Operation string `json:"operation"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"error"`
}

// NewOperationExhausted creates an OperationExhausted event
func NewOperationExhausted(operation string, attempts int, err error, at time.Time) OperationExhausted {
	return OperationExhausted{
		BaseEvent: newBase(operation, TypeOperationExhausted, at),
		Operation: operation,
		Attempts:  attempts,
		Error:     errString(err),
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
