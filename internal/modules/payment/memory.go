package payment

import (
	"context"
	"sync"
	"time"

	"courier/internal/types"
)

// MemStore is an in-memory Store for tests and local runs.
type MemStore struct {
	mu      sync.Mutex
	records map[types.ID]*OTPRecord
}

func NewMemStore() *MemStore {
	return &MemStore{records: map[types.ID]*OTPRecord{}}
}

func (s *MemStore) Create(_ context.Context, r *OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*OTPRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemStore) IncrementAttempts(_ context.Context, id types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return 0, ErrNotFound
	}
	r.AttemptCount++
	return r.AttemptCount, nil
}

func (s *MemStore) MarkVerified(_ context.Context, id types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.IsVerified {
		return false, nil
	}
	r.IsVerified = true
	t := at
	r.VerifiedAt = &t
	return true, nil
}
