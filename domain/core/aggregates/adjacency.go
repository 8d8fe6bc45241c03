package aggregates

import (
	"errors"
	"sort"

	"synergy-backend/domain/config"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/core/valueobjects"
)

// ErrForeignEdge is returned when an edge does not start at the set's owner.
var ErrForeignEdge = errors.New("edge source does not own this adjacency set")

// Admission describes what Admit did.
type Admission struct {
	Admitted bool
	Updated  bool                  // an existing edge changed score in place
	Evicted  *entities.SynergyEdge // edge removed to make room, if any
}

// AdjacencySet is the bounded set of outgoing edges of one domain.
// It enforces the fan-out cap with eviction-on-improvement; the admission
// threshold is applied by the caller before edges reach the set.
type AdjacencySet struct {
	owner    valueobjects.DomainID
	capacity int
	tieBreak config.TieBreak
	edges    map[valueobjects.DomainID]entities.SynergyEdge
}

// NewAdjacencySet creates an empty set for owner holding at most capacity edges
func NewAdjacencySet(owner valueobjects.DomainID, capacity int, tieBreak config.TieBreak) *AdjacencySet {
	if capacity < 1 {
		capacity = 1
	}
	return &AdjacencySet{
		owner:    owner,
		capacity: capacity,
		tieBreak: tieBreak,
		edges:    make(map[valueobjects.DomainID]entities.SynergyEdge),
	}
}

// Owner returns the source domain of every edge in the set
func (a *AdjacencySet) Owner() valueobjects.DomainID {
	return a.owner
}

// Len returns the number of edges
func (a *AdjacencySet) Len() int {
	return len(a.edges)
}

// Capacity returns the fan-out cap
func (a *AdjacencySet) Capacity() int {
	return a.capacity
}

// IsFull reports whether the set is at capacity
func (a *AdjacencySet) IsFull() bool {
	return len(a.edges) >= a.capacity
}

// Get returns the edge to target, if present
func (a *AdjacencySet) Get(target valueobjects.DomainID) (entities.SynergyEdge, bool) {
	edge, ok := a.edges[target]
	return edge, ok
}

// Edges returns a copy of the set ordered by score descending, then target key
func (a *AdjacencySet) Edges() []entities.SynergyEdge {
	out := make([]entities.SynergyEdge, 0, len(a.edges))
	for _, edge := range a.edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Score.Equals(out[j].Score) {
			return out[i].Score.GreaterThan(out[j].Score)
		}
		return out[i].Target.String() < out[j].Target.String()
	})
	return out
}

// Admit inserts edge or updates it in place. When the set is full, the lowest
// scoring edge is evicted only if edge scores strictly higher (or equal, under
// TieReplaceExisting); otherwise nothing changes and Admitted is false.
func (a *AdjacencySet) Admit(edge entities.SynergyEdge) (Admission, error) {
	if !edge.Source.Equals(a.owner) {
		return Admission{}, ErrForeignEdge
	}

	if _, exists := a.edges[edge.Target]; exists {
		a.edges[edge.Target] = edge
		return Admission{Admitted: true, Updated: true}, nil
	}

	if !a.IsFull() {
		a.edges[edge.Target] = edge
		return Admission{Admitted: true}, nil
	}

	lowest, _ := a.Lowest()
	improves := edge.Score.GreaterThan(lowest.Score) ||
		(a.tieBreak == config.TieReplaceExisting && edge.Score.Equals(lowest.Score))
	if !improves {
		return Admission{}, nil
	}

	delete(a.edges, lowest.Target)
	a.edges[edge.Target] = edge
	return Admission{Admitted: true, Evicted: &lowest}, nil
}

// Remove deletes the edge to target and returns it
func (a *AdjacencySet) Remove(target valueobjects.DomainID) (entities.SynergyEdge, bool) {
	edge, ok := a.edges[target]
	if ok {
		delete(a.edges, target)
	}
	return edge, ok
}

// Lowest returns the eviction candidate: minimum score, then oldest update,
// then lowest target key.
func (a *AdjacencySet) Lowest() (entities.SynergyEdge, bool) {
	var (
		lowest entities.SynergyEdge
		found  bool
	)
	for _, edge := range a.edges {
		if !found || evictsBefore(edge, lowest) {
			lowest = edge
			found = true
		}
	}
	return lowest, found
}

// TrimToCapacity evicts candidates until the set fits its cap again and returns
// the removed edges. Used after hydrating from storage written under a larger cap.
func (a *AdjacencySet) TrimToCapacity() []entities.SynergyEdge {
	var trimmed []entities.SynergyEdge
	for len(a.edges) > a.capacity {
		lowest, _ := a.Lowest()
		delete(a.edges, lowest.Target)
		trimmed = append(trimmed, lowest)
	}
	return trimmed
}

// Load inserts edge without applying the cap. Call TrimToCapacity afterwards.
func (a *AdjacencySet) Load(edge entities.SynergyEdge) error {
	if !edge.Source.Equals(a.owner) {
		return ErrForeignEdge
	}
	a.edges[edge.Target] = edge
	return nil
}

func evictsBefore(candidate, current entities.SynergyEdge) bool {
	if !candidate.Score.Equals(current.Score) {
		return current.Score.GreaterThan(candidate.Score)
	}
	if !candidate.LastUpdated.Equal(current.LastUpdated) {
		return candidate.LastUpdated.Before(current.LastUpdated)
	}
	return candidate.Target.String() < current.Target.String()
}
