package agent

import (
	"context"
	"errors"

	"courier/internal/types"
)

var ErrNotFound = errors.New("agent not found")

// Store persists delivery agents.
type Store interface {
	Create(ctx context.Context, a *DeliveryAgent) error
	Get(ctx context.Context, id types.ID) (*DeliveryAgent, error)
	SetAvailability(ctx context.Context, id types.ID, online, available bool) error
	UpdateLocation(ctx context.Context, id types.ID, p types.Point) error
	// ApplyStats applies counter increments atomically.
	ApplyStats(ctx context.Context, id types.ID, d StatsDelta) error
	// RecordDelivery folds one completed delivery into the running average
	// ((oldAvg*(n-1))+duration)/n with n the new delivery count, and adds the
	// earning to the agent's total.
	RecordDelivery(ctx context.Context, id types.ID, durationMin int, earning types.Money) error
}
