package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	id "onramp/pkg/domain"
)

// Sink receives events after they are persisted. Optional; used for the Kafka
// fan-out.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Publisher captures structured audit events. Events always reach the store;
// sink delivery is best effort and never fails the calling operation. With an
// async buffer configured, Emit enqueues and a background worker drains.
type Publisher struct {
	store  Store
	sink   Sink
	logger *slog.Logger

	inbox  chan Event
	done   chan struct{}
	closed sync.Once
}

type PublisherOption func(*Publisher)

// WithSink adds a fan-out destination alongside the store.
func WithSink(sink Sink) PublisherOption {
	return func(p *Publisher) {
		p.sink = sink
	}
}

// WithAsyncBuffer makes Emit non-blocking behind a buffered channel of the
// given size. Close drains the buffer before returning.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func NewPublisher(store Store, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store:  store,
		logger: logger,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records one event. In async mode a full buffer falls back to a
// synchronous write rather than dropping the event.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox != nil {
		select {
		case p.inbox <- event:
			return
		default:
		}
	}
	p.deliver(ctx, event)
}

// List returns the stored trail for one driver, oldest first.
func (p *Publisher) List(ctx context.Context, driverID id.DriverID) ([]Event, error) {
	return p.store.ListByDriver(ctx, driverID)
}

// Close stops the worker after draining buffered events. Safe to call twice.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox == nil {
			close(p.done)
			return
		}
		close(p.inbox)
		<-p.done
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		p.deliver(context.Background(), event)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", string(event.Action),
			"driver_id", event.DriverID.String(),
			"error", err,
		)
	}
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit sink publish failed",
			"action", string(event.Action),
			"driver_id", event.DriverID.String(),
			"error", err,
		)
	}
}
