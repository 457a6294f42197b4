package agent

import (
	"context"
	"sync"

	"courier/internal/types"
)

// MemStore is an in-memory Store for tests and local runs.
type MemStore struct {
	mu     sync.Mutex
	agents map[types.ID]*DeliveryAgent
}

func NewMemStore() *MemStore {
	return &MemStore{agents: map[types.ID]*DeliveryAgent{}}
}

func (s *MemStore) Create(_ context.Context, a *DeliveryAgent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.agents[a.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*DeliveryAgent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemStore) SetAvailability(_ context.Context, id types.ID, online, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.IsOnline = online
	a.IsAvailable = available
	return nil
}

func (s *MemStore) UpdateLocation(_ context.Context, id types.ID, p types.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	cp := p
	a.CurrentLocation = &cp
	return nil
}

func (s *MemStore) ApplyStats(_ context.Context, id types.ID, d StatsDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	a.Stats.Assigned += d.Assigned
	a.Stats.Accepted += d.Accepted
	a.Stats.PickupsCompleted += d.PickupsCompleted
	return nil
}

func (s *MemStore) RecordDelivery(_ context.Context, id types.ID, durationMin int, earning types.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return ErrNotFound
	}
	n := a.Stats.TotalDeliveries + 1
	a.Stats.AvgDeliveryTimeMin = (a.Stats.AvgDeliveryTimeMin*float64(n-1) + float64(durationMin)) / float64(n)
	a.Stats.TotalDeliveries = n
	a.Stats.DeliveriesCompleted++
	a.Stats.TotalEarnings = a.Stats.TotalEarnings.Add(earning)
	return nil
}
