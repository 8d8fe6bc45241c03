package ports

import (
	"context"
	"time"

	"synergy-backend/domain/core/entities"
)

// MutationKind distinguishes upserts from deletes
type MutationKind string

const (
	MutationUpsert MutationKind = "upsert"
	MutationDelete MutationKind = "delete"
)

// Mutation is a pending durable change keyed by edge.
// Edge is only meaningful for upserts.
type Mutation struct {
	Kind       MutationKind
	Key        entities.EdgeKey
	Edge       entities.SynergyEdge
	EnqueuedAt time.Time
}

// UpsertMutation creates an upsert carrying a snapshot of edge
func UpsertMutation(edge entities.SynergyEdge, at time.Time) Mutation {
	return Mutation{Kind: MutationUpsert, Key: edge.Key(), Edge: edge, EnqueuedAt: at}
}

// DeleteMutation creates a delete for key
func DeleteMutation(key entities.EdgeKey, at time.Time) Mutation {
	return Mutation{Kind: MutationDelete, Key: key, EnqueuedAt: at}
}

// DocumentStore is the remote keyed document store holding the graph.
// Handles are shared; callers never close them.
type DocumentStore interface {
	// ApplyMutations writes one group of mutations. Keys within a group are unique.
	ApplyMutations(ctx context.Context, mutations []Mutation) error
	// LoadEdges reads every persisted edge scoring at least minScore.
	LoadEdges(ctx context.Context, minScore float64) ([]entities.SynergyEdge, error)
	// Ping verifies reachability and credentials.
	Ping(ctx context.Context) error
}

// StoreDialer creates the shared DocumentStore handle
type StoreDialer func(ctx context.Context) (DocumentStore, error)

// Operation is a single remote call against the shared handle
type Operation func(ctx context.Context, store DocumentStore) error

// Executor runs remote operations with uniform failure handling
type Executor interface {
	Execute(ctx context.Context, name string, op Operation) error
}

// FlushResult summarises one flush round
type FlushResult struct {
	FlushID   string        `json:"flush_id"`
	Groups    int           `json:"groups"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Pending   int           `json:"pending"`
	Errors    []error       `json:"-"`
	Duration  time.Duration `json:"duration"`
}

// MutationQueue accepts durable mutations and flushes them in groups
type MutationQueue interface {
	Enqueue(m Mutation)
	Flush(ctx context.Context) (FlushResult, error)
	Pending() int
	// Has reports whether key has a mutation not yet applied to the store
	Has(key entities.EdgeKey) bool
}

// ConnectionHealth is a point-in-time view of the store connection
type ConnectionHealth struct {
	Connected           bool       `json:"connected"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalOperations     int64      `json:"total_operations"`
	LastError           string     `json:"last_error,omitempty"`
	BreakerState        string     `json:"breaker_state,omitempty"`
}

// HealthReporter exposes connection health without doing I/O
type HealthReporter interface {
	Health() ConnectionHealth
}
