package ports

import (
	"context"

	"synergy-backend/domain/events"
)

// EventSink receives discrete facts emitted by the graph and the store layer.
// Emit must not block the caller for long and never fails the operation.
type EventSink interface {
	Emit(ctx context.Context, event events.DomainEvent)
}

// NopEventSink discards events
type NopEventSink struct{}

// Emit implements EventSink
func (NopEventSink) Emit(context.Context, events.DomainEvent) {}

// MultiSink fans an event out to several sinks
type MultiSink []EventSink

// Emit implements EventSink
func (m MultiSink) Emit(ctx context.Context, event events.DomainEvent) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(ctx, event)
		}
	}
}
