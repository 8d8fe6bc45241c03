package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/domain/config"
	"synergy-backend/domain/core/aggregates"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/core/valueobjects"
	"synergy-backend/domain/events"
	pkgerrors "synergy-backend/pkg/errors"
)

// OperationLoadEdges names the remote call used to hydrate the graph
const OperationLoadEdges = "load_edges"

// Outcome is the result of an edge proposal
type Outcome string

const (
	OutcomeAdmitted Outcome = "admitted"
	OutcomeRejected Outcome = "rejected"
)

// RejectReason explains a rejected proposal
type RejectReason string

const (
	ReasonBelowThreshold RejectReason = "below_threshold"
	ReasonCapacity       RejectReason = "capacity"
)

// Decision describes what a proposal did. Rejections are ordinary results,
// not errors.
type Decision struct {
	Outcome Outcome               `json:"outcome"`
	Reason  RejectReason          `json:"reason,omitempty"`
	Edge    *entities.SynergyEdge `json:"edge,omitempty"`
	Evicted *entities.SynergyEdge `json:"evicted,omitempty"`
	Removed *entities.SynergyEdge `json:"removed,omitempty"` // existing edge dropped below threshold
	Updated bool                  `json:"updated,omitempty"`
}

// Admitted reports whether the proposal was admitted
func (d Decision) Admitted() bool {
	return d.Outcome == OutcomeAdmitted
}

// GraphStats summarises the in-memory graph
type GraphStats struct {
	Domains          int `json:"domains"`
	Edges            int `json:"edges"`
	PendingMutations int `json:"pending_mutations"`
}

// SynergyGraph is the authoritative in-memory graph of domains and their
// outgoing synergy edges. Every change is applied in memory first and queued
// as a durable mutation; the store catches up on Persist.
type SynergyGraph struct {
	config   *config.DomainConfig
	queue    ports.MutationQueue
	executor ports.Executor
	sink     ports.EventSink
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	domains  map[valueobjects.DomainID]struct{}
	outgoing map[valueobjects.DomainID]*aggregates.AdjacencySet
	incoming map[valueobjects.DomainID]map[valueobjects.DomainID]struct{}
}

// NewSynergyGraph creates an empty graph. The configuration is validated once here.
func NewSynergyGraph(
	cfg *config.DomainConfig,
	queue ports.MutationQueue,
	executor ports.Executor,
	sink ports.EventSink,
	logger *zap.Logger,
) (*SynergyGraph, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if queue == nil {
		return nil, pkgerrors.NewValidationError("mutation queue is required")
	}
	if sink == nil {
		sink = ports.NopEventSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SynergyGraph{
		config:   cfg,
		queue:    queue,
		executor: executor,
		sink:     sink,
		logger:   logger.Named("synergy_graph"),
		now:      time.Now,
		domains:  make(map[valueobjects.DomainID]struct{}),
		outgoing: make(map[valueobjects.DomainID]*aggregates.AdjacencySet),
		incoming: make(map[valueobjects.DomainID]map[valueobjects.DomainID]struct{}),
	}, nil
}

func (g *SynergyGraph) domainID(key string) (valueobjects.DomainID, error) {
	return valueobjects.NewDomainIDWithLimit(key, g.config.MaxDomainIDLength)
}

// ProposeEdge admits, updates or removes the edge source -> target according
// to the threshold and the fan-out cap. Invalid input fails without touching
// any state.
func (g *SynergyGraph) ProposeEdge(ctx context.Context, source, target string, score float64) (Decision, error) {
	s, err := valueobjects.NewScore(score)
	if err != nil {
		return Decision{}, err
	}
	src, err := g.domainID(source)
	if err != nil {
		return Decision{}, err
	}
	tgt, err := g.domainID(target)
	if err != nil {
		return Decision{}, err
	}

	now := g.now()
	edge, err := entities.NewSynergyEdge(src, tgt, s, now)
	if err != nil {
		return Decision{}, err
	}

	var emitted []events.DomainEvent
	decision := g.propose(edge, now, &emitted)
	g.emit(ctx, emitted)

	return decision, nil
}

func (g *SynergyGraph) propose(edge entities.SynergyEdge, now time.Time, emitted *[]events.DomainEvent) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, tgt := edge.Source.String(), edge.Target.String()
	score := edge.Score.Float64()

	if !edge.Score.Meets(g.config.SynergyThreshold) {
		decision := Decision{Outcome: OutcomeRejected, Reason: ReasonBelowThreshold}
		if existing, ok := g.removeEdgeLocked(edge.Key(), now); ok {
			decision.Removed = &existing
			*emitted = append(*emitted, events.NewEdgeRemoved(src, tgt, events.RemovalBelowThreshold, now))
		}
		*emitted = append(*emitted, events.NewEdgeRejected(src, tgt, score, string(ReasonBelowThreshold), now))
		return decision
	}

	set := g.adjacencyLocked(edge.Source)
	admission, err := set.Admit(edge)
	if err != nil {
		// Only possible if the set was filed under the wrong owner
		g.logger.Error("Adjacency set rejected edge", zap.String("edge", edge.Key().String()), zap.Error(err))
		return Decision{Outcome: OutcomeRejected, Reason: ReasonCapacity}
	}
	if !admission.Admitted {
		*emitted = append(*emitted, events.NewEdgeRejected(src, tgt, score, string(ReasonCapacity), now))
		return Decision{Outcome: OutcomeRejected, Reason: ReasonCapacity}
	}

	decision := Decision{Outcome: OutcomeAdmitted, Edge: &edge, Updated: admission.Updated}

	if evicted := admission.Evicted; evicted != nil {
		g.unlinkIncomingLocked(evicted.Key())
		g.queue.Enqueue(ports.DeleteMutation(evicted.Key(), now))
		decision.Evicted = evicted
		*emitted = append(*emitted, events.NewEdgeEvicted(src, evicted.Target.String(), evicted.Score.Float64(), tgt, now))
	}

	g.linkIncomingLocked(edge.Key())
	g.domains[edge.Source] = struct{}{}
	g.domains[edge.Target] = struct{}{}
	g.queue.Enqueue(ports.UpsertMutation(edge, now))
	*emitted = append(*emitted, events.NewEdgeAdmitted(src, tgt, score, admission.Updated, now))

	return decision
}

// RemoveEdge deletes source -> target if it exists. Removing an absent edge
// is not an error.
func (g *SynergyGraph) RemoveEdge(ctx context.Context, source, target string) error {
	src, err := g.domainID(source)
	if err != nil {
		return err
	}
	tgt, err := g.domainID(target)
	if err != nil {
		return err
	}

	now := g.now()
	g.mu.Lock()
	_, removed := g.removeEdgeLocked(entities.NewEdgeKey(src, tgt), now)
	g.mu.Unlock()

	if removed {
		g.sink.Emit(ctx, events.NewEdgeRemoved(src.String(), tgt.String(), events.RemovalExplicit, now))
	}
	return nil
}

// RemoveDomain deletes domain and every edge leaving or entering it, queueing
// all deletes under a single lock hold. It returns the number of edges removed.
func (g *SynergyGraph) RemoveDomain(ctx context.Context, domain string) (int, error) {
	id, err := g.domainID(domain)
	if err != nil {
		return 0, err
	}

	now := g.now()
	var emitted []events.DomainEvent

	g.mu.Lock()
	_, known := g.domains[id]
	var keys []entities.EdgeKey
	if set, ok := g.outgoing[id]; ok {
		for _, edge := range set.Edges() {
			keys = append(keys, edge.Key())
		}
	}
	for source := range g.incoming[id] {
		keys = append(keys, entities.NewEdgeKey(source, id))
	}
	for _, key := range keys {
		if _, ok := g.removeEdgeLocked(key, now); ok {
			emitted = append(emitted, events.NewEdgeRemoved(key.Source.String(), key.Target.String(), events.RemovalDomainRemoved, now))
		}
	}
	delete(g.domains, id)
	delete(g.outgoing, id)
	delete(g.incoming, id)
	g.mu.Unlock()

	if known {
		emitted = append(emitted, events.NewDomainRemoved(id.String(), len(keys), now))
		g.logger.Info("Domain removed", zap.String("domain", id.String()), zap.Int("edges_removed", len(keys)))
	}
	g.emit(ctx, emitted)

	return len(keys), nil
}

// Neighbors returns the outgoing edges of domain ordered by score descending.
// Unknown or invalid domains have no neighbors.
func (g *SynergyGraph) Neighbors(domain string) []entities.SynergyEdge {
	id, err := g.domainID(domain)
	if err != nil {
		return []entities.SynergyEdge{}
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	set, ok := g.outgoing[id]
	if !ok {
		return []entities.SynergyEdge{}
	}
	return set.Edges()
}

// Domains returns every known domain key in lexical order
func (g *SynergyGraph) Domains() []string {
	g.mu.RLock()
	out := make([]string, 0, len(g.domains))
	for id := range g.domains {
		out = append(out, id.String())
	}
	g.mu.RUnlock()

	sort.Strings(out)
	return out
}

// Stats returns domain, edge and pending mutation counts
func (g *SynergyGraph) Stats() GraphStats {
	g.mu.RLock()
	stats := GraphStats{Domains: len(g.domains)}
	for _, set := range g.outgoing {
		stats.Edges += set.Len()
	}
	g.mu.RUnlock()

	stats.PendingMutations = g.queue.Pending()
	return stats
}

// Persist flushes queued mutations to the store
func (g *SynergyGraph) Persist(ctx context.Context) (ports.FlushResult, error) {
	return g.queue.Flush(ctx)
}

// Load hydrates the graph from the store and returns how many stored edges were
// added. Edges already in memory win over stored ones, and so does any key
// with a mutation still waiting to reach the store. Sets holding more edges
// than the cap allows, e.g. after the cap was lowered, are trimmed and the
// trimmed edges are queued for deletion.
func (g *SynergyGraph) Load(ctx context.Context) (int, error) {
	if g.executor == nil {
		return 0, pkgerrors.NewUnavailableError("store")
	}

	var stored []entities.SynergyEdge
	err := g.executor.Execute(ctx, OperationLoadEdges, func(ctx context.Context, store ports.DocumentStore) error {
		edges, err := store.LoadEdges(ctx, g.config.SynergyThreshold)
		if err != nil {
			return err
		}
		stored = edges
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to load edges: %w", err)
	}

	now := g.now()
	var emitted []events.DomainEvent
	loaded := 0

	g.mu.Lock()
	touched := make(map[valueobjects.DomainID]*aggregates.AdjacencySet)
	for _, edge := range stored {
		if !edge.Score.Meets(g.config.SynergyThreshold) || edge.Source.Equals(edge.Target) {
			continue
		}
		if g.queue.Has(edge.Key()) {
			continue
		}
		set := g.adjacencyLocked(edge.Source)
		if _, exists := set.Get(edge.Target); exists {
			continue
		}
		if err := set.Load(edge); err != nil {
			continue
		}
		g.linkIncomingLocked(edge.Key())
		g.domains[edge.Source] = struct{}{}
		g.domains[edge.Target] = struct{}{}
		touched[edge.Source] = set
		loaded++
	}
	for _, set := range touched {
		for _, trimmed := range set.TrimToCapacity() {
			g.unlinkIncomingLocked(trimmed.Key())
			g.queue.Enqueue(ports.DeleteMutation(trimmed.Key(), now))
			emitted = append(emitted, events.NewEdgeRemoved(trimmed.Source.String(), trimmed.Target.String(), events.RemovalCapacityTrim, now))
		}
	}
	g.mu.Unlock()

	g.emit(ctx, emitted)
	g.logger.Info("Graph hydrated from store",
		zap.Int("stored", len(stored)),
		zap.Int("loaded", loaded),
		zap.Int("trimmed", len(emitted)))

	return loaded, nil
}

func (g *SynergyGraph) adjacencyLocked(owner valueobjects.DomainID) *aggregates.AdjacencySet {
	set, ok := g.outgoing[owner]
	if !ok {
		set = aggregates.NewAdjacencySet(owner, g.config.MaxDomainConnections, g.config.TieBreak)
		g.outgoing[owner] = set
	}
	return set
}

// removeEdgeLocked drops key from memory and queues its delete
func (g *SynergyGraph) removeEdgeLocked(key entities.EdgeKey, now time.Time) (entities.SynergyEdge, bool) {
	set, ok := g.outgoing[key.Source]
	if !ok {
		return entities.SynergyEdge{}, false
	}
	edge, removed := set.Remove(key.Target)
	if !removed {
		return entities.SynergyEdge{}, false
	}
	g.unlinkIncomingLocked(key)
	g.queue.Enqueue(ports.DeleteMutation(key, now))
	return edge, true
}

func (g *SynergyGraph) linkIncomingLocked(key entities.EdgeKey) {
	sources, ok := g.incoming[key.Target]
	if !ok {
		sources = make(map[valueobjects.DomainID]struct{})
		g.incoming[key.Target] = sources
	}
	sources[key.Source] = struct{}{}
}

func (g *SynergyGraph) unlinkIncomingLocked(key entities.EdgeKey) {
	sources, ok := g.incoming[key.Target]
	if !ok {
		return
	}
	delete(sources, key.Source)
	if len(sources) == 0 {
		delete(g.incoming, key.Target)
	}
}

func (g *SynergyGraph) emit(ctx context.Context, emitted []events.DomainEvent) {
	for _, event := range emitted {
		g.sink.Emit(ctx, event)
	}
}
