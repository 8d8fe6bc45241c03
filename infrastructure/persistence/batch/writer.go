// Package batch queues graph mutations and flushes them to the store in groups.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"synergy-backend/application/ports"
	"synergy-backend/domain/core/entities"
	"synergy-backend/domain/events"
)

// OperationApplyMutations names the remote call made for every group
const OperationApplyMutations = "apply_mutations"

// Config configures a Writer
type Config struct {
	BatchSize   int // mutations per remote write
	Parallelism int // groups in flight at once during a flush
}

// DefaultConfig returns the default writer configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		Parallelism: 4,
	}
}

type entry struct {
	mutation ports.Mutation
	seq      uint64
}

// Writer accumulates mutations keyed by edge, collapsing them last-write-wins,
// and writes them through an Executor when flushed. Mutations from a failed
// group stay queued unless a newer mutation for the same key replaced them.
type Writer struct {
	executor ports.Executor
	config   Config
	sink     ports.EventSink
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	queue    map[entities.EdgeKey]entry
	inflight map[entities.EdgeKey]struct{}
	seq      uint64

	flushMu sync.Mutex
}

// NewWriter creates a Writer
func NewWriter(executor ports.Executor, config Config, sink ports.EventSink, logger *zap.Logger) *Writer {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultConfig().BatchSize
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	if sink == nil {
		sink = ports.NopEventSink{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		executor: executor,
		config:   config,
		sink:     sink,
		logger:   logger.Named("batch_writer"),
		now:      time.Now,
		queue:    make(map[entities.EdgeKey]entry),
	}
}

// Enqueue adds m, replacing any pending mutation for the same key
func (w *Writer) Enqueue(m ports.Mutation) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.seq++
	w.queue[m.Key] = entry{mutation: m, seq: w.seq}
}

// Pending returns the number of queued mutations
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Has reports whether key has a mutation queued or being written by a flush
func (w *Writer) Has(key entities.EdgeKey) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.queue[key]; ok {
		return true
	}
	_, ok := w.inflight[key]
	return ok
}

// Flush writes everything queued at the time of the call. Mutations enqueued
// while the flush runs are left for the next one. The returned error joins the
// failures of every group that could not be written.
func (w *Writer) Flush(ctx context.Context) (ports.FlushResult, error) {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	start := w.now()
	result := ports.FlushResult{FlushID: uuid.NewString()}

	groups := w.takeGroups()
	defer w.clearInflight()
	if len(groups) == 0 {
		result.Pending = w.Pending()
		return result, nil
	}
	result.Groups = len(groups)

	errs := make([]error, len(groups))
	var g errgroup.Group
	g.SetLimit(w.config.Parallelism)
	for i, group := range groups {
		i, group := i, group
		mutations := make([]ports.Mutation, len(group))
		for j, e := range group {
			mutations[j] = e.mutation
		}
		g.Go(func() error {
			errs[i] = w.executor.Execute(ctx, OperationApplyMutations, func(ctx context.Context, store ports.DocumentStore) error {
				return store.ApplyMutations(ctx, mutations)
			})
			// Group failures are collected, never short-circuit siblings
			return nil
		})
	}
	_ = g.Wait()

	for i, group := range groups {
		if errs[i] == nil {
			result.Succeeded += len(group)
			continue
		}
		result.Failed += len(group)
		result.Errors = append(result.Errors, fmt.Errorf("group %d of %d: %w", i+1, len(groups), errs[i]))
		w.requeue(group)
	}

	result.Pending = w.Pending()
	result.Duration = w.now().Sub(start)

	w.sink.Emit(ctx, events.NewBatchFlushed(result.FlushID, result.Groups, result.Succeeded, result.Failed, result.Pending, result.Duration, w.now()))

	if result.Failed > 0 {
		w.logger.Warn("Flush completed with failures",
			zap.String("flush_id", result.FlushID),
			zap.Int("groups", result.Groups),
			zap.Int("succeeded", result.Succeeded),
			zap.Int("failed", result.Failed),
			zap.Int("pending", result.Pending))
		return result, errors.Join(result.Errors...)
	}

	w.logger.Debug("Flush completed",
		zap.String("flush_id", result.FlushID),
		zap.Int("groups", result.Groups),
		zap.Int("succeeded", result.Succeeded),
		zap.Duration("duration", result.Duration))
	return result, nil
}

// takeGroups swaps out the queue and splits it into enqueue-ordered groups
func (w *Writer) takeGroups() [][]entry {
	w.mu.Lock()
	snapshot := w.queue
	w.queue = make(map[entities.EdgeKey]entry)
	w.inflight = make(map[entities.EdgeKey]struct{}, len(snapshot))
	for key := range snapshot {
		w.inflight[key] = struct{}{}
	}
	w.mu.Unlock()

	if len(snapshot) == 0 {
		return nil
	}

	ordered := make([]entry, 0, len(snapshot))
	for _, e := range snapshot {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].seq < ordered[j].seq
	})

	groups := make([][]entry, 0, (len(ordered)+w.config.BatchSize-1)/w.config.BatchSize)
	for start := 0; start < len(ordered); start += w.config.BatchSize {
		end := start + w.config.BatchSize
		if end > len(ordered) {
			end = len(ordered)
		}
		groups = append(groups, ordered[start:end])
	}
	return groups
}

func (w *Writer) clearInflight() {
	w.mu.Lock()
	w.inflight = nil
	w.mu.Unlock()
}

// requeue restores a failed group without overwriting newer mutations
func (w *Writer) requeue(group []entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range group {
		if _, newer := w.queue[e.mutation.Key]; newer {
			continue
		}
		w.queue[e.mutation.Key] = e
	}
}

var _ ports.MutationQueue = (*Writer)(nil)
