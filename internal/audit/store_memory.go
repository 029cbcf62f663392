package audit

import (
	"context"
	"sync"

	id "onramp/pkg/domain"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.DriverID][]Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.DriverID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.DriverID] = append(s.events[event.DriverID], event)
	return nil
}

func (s *InMemoryStore) ListByDriver(_ context.Context, driverID id.DriverID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[driverID]...), nil
}
