package entities

import (
	"time"

	"synergy-backend/domain/core/valueobjects"
	pkgerrors "synergy-backend/pkg/errors"
)

// EdgeKey identifies a directed edge. It is also the key of the persisted document
// and of pending mutations.
type EdgeKey struct {
	Source valueobjects.DomainID
	Target valueobjects.DomainID
}

// NewEdgeKey builds the key for source -> target
func NewEdgeKey(source, target valueobjects.DomainID) EdgeKey {
	return EdgeKey{Source: source, Target: target}
}

// String returns "source->target"
func (k EdgeKey) String() string {
	return k.Source.String() + "->" + k.Target.String()
}

// SynergyEdge is a directed synergy link between two domains.
// Edges are values: the graph hands out copies, never pointers into its state.
type SynergyEdge struct {
	Source      valueobjects.DomainID `json:"source"`
	Target      valueobjects.DomainID `json:"target"`
	Score       valueobjects.Score    `json:"score"`
	LastUpdated time.Time             `json:"last_updated"`
}

// NewSynergyEdge creates an edge, rejecting self loops.
func NewSynergyEdge(source, target valueobjects.DomainID, score valueobjects.Score, at time.Time) (SynergyEdge, error) {
	if source.IsZero() || target.IsZero() {
		return SynergyEdge{}, pkgerrors.NewValidationError("edge endpoints cannot be empty")
	}
	if source.Equals(target) {
		return SynergyEdge{}, pkgerrors.NewSelfLoopError(source.String())
	}
	return SynergyEdge{
		Source:      source,
		Target:      target,
		Score:       score,
		LastUpdated: at.UTC(),
	}, nil
}

// Key returns the edge key
func (e SynergyEdge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}

// Touches reports whether domain is either endpoint
func (e SynergyEdge) Touches(domain valueobjects.DomainID) bool {
	return e.Source.Equals(domain) || e.Target.Equals(domain)
}

// WithScore returns a copy carrying a new score and timestamp
func (e SynergyEdge) WithScore(score valueobjects.Score, at time.Time) SynergyEdge {
	e.Score = score
	e.LastUpdated = at.UTC()
	return e
}
