package audit

import (
	"context"
	"sync"
	"time"
)

// Sink receives audit events. The Kafka sink is the production sink; the
// in-memory sink backs tests and broker-less deployments.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. Emission is best-effort: the
// lifecycle operation that triggered the event must not fail because the
// audit trail is unavailable.
type Publisher struct {
	sink Sink
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.sink.Append(ctx, event)
}

// MemorySink collects events in memory.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}
