package order

import (
	"context"
	"time"

	"courier/internal/types"
)

// Store is the order persistence interface. Every transition method is a
// single conditional update that re-checks its precondition; the boolean
// result reports whether the row was won. False means a concurrent request
// changed the state first.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	// NextSequence returns the next per-day order-number sequence value.
	NextSequence(ctx context.Context, day string) (int, error)

	// Approve: pending -> approved.
	Approve(ctx context.Context, id, approver types.ID, at time.Time) (bool, error)
	// Cancel from an early (pre-pickup) state.
	Cancel(ctx context.Context, id types.ID, reason string, at time.Time) (bool, error)
	// Assign an agent where approved, unassigned, and pre-delivery.
	Assign(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error)
	// Accept: assigned -> accepted for the matching agent.
	Accept(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error)
	// Reject: assigned -> unassigned; clears the agent and records the reason
	// so the order is re-assignable.
	Reject(ctx context.Context, id, agentID types.ID, reason string, at time.Time) (bool, error)
	// MarkSellerReached stamps arrival at the seller while accepted.
	MarkSellerReached(ctx context.Context, id, agentID types.ID, at time.Time) (bool, error)
	// CompletePickup: accepted -> pickup_completed; advances the order to
	// Out for Delivery when still in a pre-dispatch status.
	CompletePickup(ctx context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error)
	// MarkLocationReached: pickup_completed -> location_reached.
	MarkLocationReached(ctx context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error)
	// CompleteDelivery: {pickup_completed, location_reached} -> delivery_completed
	// with pickup done; stamps Delivered and the computed duration.
	CompleteDelivery(ctx context.Context, id, agentID types.ID, durationMin int, cod *CODCapture, at time.Time) (bool, error)

	// Payment/OTP linkage persisted on the order before success is returned.
	SetOTPLink(ctx context.Context, id, otpID types.ID, generatedAt, expiresAt time.Time) error
	MarkOTPVerified(ctx context.Context, id types.ID, at time.Time) error
	SetCODQR(ctx context.Context, id types.ID, paymentID string) error
	SetCODPaid(ctx context.Context, id types.ID, transactionID string, at time.Time) error

	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, orderID types.ID) ([]Event, error)

	// ListByAgent returns the agent's orders in the given sub-statuses,
	// oldest assignment first.
	ListByAgent(ctx context.Context, agentID types.ID, statuses []AgentStatus) ([]Order, error)
	// ListAssignable returns approved, unassigned orders oldest first.
	ListAssignable(ctx context.Context, limit int) ([]Order, error)
	// CountActiveByAgent is the agent's live capacity usage.
	CountActiveByAgent(ctx context.Context, agentID types.ID) (int, error)
}
