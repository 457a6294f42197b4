// README: Agent service: capacity gating and stats bookkeeping.
package agent

import (
	"context"
	"errors"

	"courier/internal/types"
)

var (
	ErrBlocked     = errors.New("agent is blocked")
	ErrNotVerified = errors.New("agent is not verified")
)

type Service struct {
	store     Store
	maxOrders int
}

func NewService(store Store, maxOrders int) *Service {
	return &Service{store: store, maxOrders: maxOrders}
}

// CanAssign reports whether an agent holding current active orders may take
// additional more without exceeding the per-agent maximum. Read-only.
func (s *Service) CanAssign(current, additional int) bool {
	return current+additional <= s.maxOrders
}

func (s *Service) MaxOrders() int {
	return s.maxOrders
}

// Eligible loads the agent and rejects blocked or unverified ones.
func (s *Service) Eligible(ctx context.Context, id types.ID) (*DeliveryAgent, error) {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsBlocked {
		return nil, ErrBlocked
	}
	if !a.IsVerified {
		return nil, ErrNotVerified
	}
	return a, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*DeliveryAgent, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Register(ctx context.Context, a *DeliveryAgent) error {
	if a.ID.IsZero() {
		a.ID = types.NewID()
	}
	return s.store.Create(ctx, a)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, online, available bool) error {
	return s.store.SetAvailability(ctx, id, online, available)
}

func (s *Service) UpdateLocation(ctx context.Context, id types.ID, p types.Point) error {
	return s.store.UpdateLocation(ctx, id, p)
}

func (s *Service) ApplyStats(ctx context.Context, id types.ID, d StatsDelta) error {
	return s.store.ApplyStats(ctx, id, d)
}

func (s *Service) RecordDelivery(ctx context.Context, id types.ID, durationMin int, earning types.Money) error {
	return s.store.RecordDelivery(ctx, id, durationMin, earning)
}
