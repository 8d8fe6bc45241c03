package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"synergy-backend/application/ports"
	"synergy-backend/domain/events"
)

// EventBridge limits to 10 events per PutEvents call
const maxEntriesPerCall = 10

// Client is the subset of the EventBridge API used by Publisher
type Client interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Config configures a Publisher
type Config struct {
	EventBusName   string
	BufferSize     int
	FlushInterval  time.Duration
	PublishTimeout time.Duration
}

// DefaultConfig returns the default publisher configuration for bus
func DefaultConfig(bus string) Config {
	return Config{
		EventBusName:   bus,
		BufferSize:     1024,
		FlushInterval:  time.Second,
		PublishTimeout: 5 * time.Second,
	}
}

// Publisher is an asynchronous ports.EventSink that forwards events to
// EventBridge in batches. Emit never blocks; events are dropped when the
// buffer is full.
type Publisher struct {
	client Client
	config Config
	source string
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	buffer chan events.DomainEvent
	done   chan struct{}

	dropped atomic.Int64
}

// NewPublisher creates a Publisher and starts its background loop
func NewPublisher(client Client, config Config, logger *zap.Logger) *Publisher {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultConfig("").BufferSize
	}
	if config.FlushInterval <= 0 {
		config.FlushInterval = time.Second
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &Publisher{
		client: client,
		config: config,
		source: events.Source,
		logger: logger.Named("eventbridge"),
		buffer: make(chan events.DomainEvent, config.BufferSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Emit implements ports.EventSink
func (p *Publisher) Emit(_ context.Context, event events.DomainEvent) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	select {
	case p.buffer <- event:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.logger.Warn("Event buffer full, dropping events",
				zap.String("eventType", event.GetEventType()),
				zap.Int64("dropped", n))
		}
	}
}

// Dropped returns how many events were discarded because the buffer was full
func (p *Publisher) Dropped() int64 {
	return p.dropped.Load()
}

// Close stops accepting events and waits until buffered ones are published
func (p *Publisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.buffer)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.config.FlushInterval)
	defer ticker.Stop()

	pending := make([]events.DomainEvent, 0, maxEntriesPerCall)
	flush := func() {
		if len(pending) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), p.config.PublishTimeout)
		if err := p.PublishBatch(ctx, pending); err != nil {
			p.logger.Error("Failed to publish events", zap.Error(err), zap.Int("count", len(pending)))
		}
		cancel()
		pending = pending[:0]
	}

	for {
		select {
		case event, ok := <-p.buffer:
			if !ok {
				flush()
				return
			}
			pending = append(pending, event)
			if len(pending) == maxEntriesPerCall {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// PublishBatch sends events synchronously, at most 10 per call
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	for i := 0; i < len(domainEvents); i += maxEntriesPerCall {
		end := i + maxEntriesPerCall
		if end > len(domainEvents) {
			end = len(domainEvents)
		}
		if err := p.publishChunk(ctx, domainEvents[i:end]); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) publishChunk(ctx context.Context, domainEvents []events.DomainEvent) error {
	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal event",
				zap.Error(err),
				zap.String("eventType", event.GetEventType()))
			continue
		}

		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.config.EventBusName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
	}
	if len(entries) == 0 {
		return nil
	}

	result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{Entries: entries})
	if err != nil {
		return fmt.Errorf("failed to publish events to EventBridge: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for _, entry := range result.Entries {
			if entry.ErrorCode != nil {
				p.logger.Warn("Event rejected by EventBridge",
					zap.String("errorCode", aws.ToString(entry.ErrorCode)),
					zap.String("errorMessage", aws.ToString(entry.ErrorMessage)))
			}
		}
		return fmt.Errorf("%d events failed to publish", result.FailedEntryCount)
	}

	p.logger.Debug("Events published to EventBridge",
		zap.Int("count", len(entries)),
		zap.String("eventBus", p.config.EventBusName))
	return nil
}

var _ ports.EventSink = (*Publisher)(nil)
