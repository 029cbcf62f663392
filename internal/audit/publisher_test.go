package audit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

type PublisherSuite struct {
	suite.Suite
	ctx    context.Context
	store  *InMemoryStore
	logger *slog.Logger
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *PublisherSuite) TestSyncEmitPersists() {
	publisher := NewPublisher(s.store, s.logger)
	defer publisher.Close()

	publisher.Emit(s.ctx, Event{DriverID: "driver-1", Action: ActionDriverCreated})

	events, err := publisher.List(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(ActionDriverCreated, events[0].Action)
	s.False(events[0].Timestamp.IsZero(), "Emit backfills the timestamp")
}

func (s *PublisherSuite) TestSinkFanOut() {
	sink := &recordingSink{}
	publisher := NewPublisher(s.store, s.logger, WithSink(sink))
	defer publisher.Close()

	publisher.Emit(s.ctx, Event{DriverID: "driver-1", Action: ActionVehicleSaved})

	s.Equal(1, sink.count())
	events, err := s.store.ListByDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(events, 1)
}

func (s *PublisherSuite) TestSinkFailureDoesNotLoseStoreWrite() {
	sink := &recordingSink{err: errors.New("broker down")}
	publisher := NewPublisher(s.store, s.logger, WithSink(sink))
	defer publisher.Close()

	publisher.Emit(s.ctx, Event{DriverID: "driver-1", Action: ActionDriverSubmitted})

	events, err := s.store.ListByDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(events, 1, "store write survives sink failure")
}

func (s *PublisherSuite) TestAsyncCloseDrains() {
	publisher := NewPublisher(s.store, s.logger, WithAsyncBuffer(64))

	const emitted = 50
	for i := 0; i < emitted; i++ {
		publisher.Emit(s.ctx, Event{DriverID: "driver-1", Action: ActionProfileSaved})
	}
	publisher.Close()

	events, err := s.store.ListByDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(events, emitted, "Close drains every buffered event")
}

func (s *PublisherSuite) TestAsyncFullBufferFallsBackToSync() {
	publisher := NewPublisher(s.store, s.logger, WithAsyncBuffer(1))
	defer publisher.Close()

	for i := 0; i < 20; i++ {
		publisher.Emit(s.ctx, Event{DriverID: "driver-1", Action: ActionProfileSaved})
	}
	publisher.Close()

	events, err := s.store.ListByDriver(s.ctx, "driver-1")
	s.Require().NoError(err)
	s.Len(events, 20, "no event is dropped when the buffer is full")
}
