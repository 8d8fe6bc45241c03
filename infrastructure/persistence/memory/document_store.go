package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"synergy-backend/application/ports"
	"synergy-backend/domain/core/entities"
)

// DocumentStore provides an in-memory implementation of ports.DocumentStore.
// Used for local runs and tests; each mutation group is applied atomically.
type DocumentStore struct {
	mu     sync.RWMutex
	edges  map[entities.EdgeKey]entities.SynergyEdge
	groups int
}

// NewDocumentStore creates an empty in-memory store
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		edges: make(map[entities.EdgeKey]entities.SynergyEdge),
	}
}

// Dialer returns a ports.StoreDialer handing out this store
func (s *DocumentStore) Dialer() ports.StoreDialer {
	return func(ctx context.Context) (ports.DocumentStore, error) {
		if err := s.Ping(ctx); err != nil {
			return nil, err
		}
		return s, nil
	}
}

// ApplyMutations writes one group of mutations
func (s *DocumentStore) ApplyMutations(ctx context.Context, mutations []ports.Mutation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, m := range mutations {
		if m.Kind != ports.MutationUpsert && m.Kind != ports.MutationDelete {
			return fmt.Errorf("unknown mutation kind: %s", m.Kind)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range mutations {
		switch m.Kind {
		case ports.MutationUpsert:
			s.edges[m.Key] = m.Edge
		case ports.MutationDelete:
			delete(s.edges, m.Key)
		}
	}
	s.groups++
	return nil
}

// LoadEdges returns every stored edge scoring at least minScore
func (s *DocumentStore) LoadEdges(ctx context.Context, minScore float64) ([]entities.SynergyEdge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]entities.SynergyEdge, 0, len(s.edges))
	for _, edge := range s.edges {
		if edge.Score.Meets(minScore) {
			out = append(out, edge)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().String() < out[j].Key().String()
	})
	return out, nil
}

// Ping always succeeds unless the context is done
func (s *DocumentStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Get returns the stored edge for key
func (s *DocumentStore) Get(key entities.EdgeKey) (entities.SynergyEdge, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	edge, ok := s.edges[key]
	return edge, ok
}

// Len returns the number of stored edges
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Groups returns how many mutation groups were applied
func (s *DocumentStore) Groups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.groups
}

var _ ports.DocumentStore = (*DocumentStore)(nil)
