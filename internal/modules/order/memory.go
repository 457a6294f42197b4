// README: In-memory Store with the same conditional-update semantics as the
// Postgres store; used by tests and local runs.
package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"courier/internal/types"
)

type MemStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	events []Event
	seqs   map[string]int
	nextEv int64
}

func NewMemStore() *MemStore {
	return &MemStore{orders: map[types.ID]*Order{}, seqs: map[string]int{}}
}

func (s *MemStore) Create(_ context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[o.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemStore) GetByNumber(_ context.Context, number string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == number {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) NextSequence(_ context.Context, day string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[day]++
	return s.seqs[day], nil
}

func (s *MemStore) Approve(_ context.Context, id, approver types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.AdminApproval.Status != ApprovalPending {
		return false, nil
	}
	o.AdminApproval.Status = ApprovalApproved
	by, t := approver, at
	o.AdminApproval.ApprovedBy = &by
	o.AdminApproval.ApprovedAt = &t
	if o.Status == StatusPending {
		o.Status = StatusProcessing
	}
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) Cancel(_ context.Context, id types.ID, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return false, nil
	}
	switch o.Status {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusPickupReady:
	default:
		return false, nil
	}
	if o.Pickup.IsCompleted {
		return false, nil
	}
	o.Status = StatusCancelled
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) Assign(_ context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !o.Assignable() {
		return false, nil
	}
	aid, t := agentID, at
	o.Agent = DeliveryAssignment{AgentID: &aid, Status: AgentAssigned, AssignedAt: &t}
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) Accept(_ context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Agent.Status != AgentAssigned || !o.AssignedTo(agentID) {
		return false, nil
	}
	t := at
	o.Agent.Status = AgentAccepted
	o.Agent.AcceptedAt = &t
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) Reject(_ context.Context, id, agentID types.ID, reason string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Agent.Status != AgentAssigned || !o.AssignedTo(agentID) {
		return false, nil
	}
	r := reason
	o.Agent = DeliveryAssignment{AgentID: nil, Status: AgentUnassigned, RejectionReason: &r}
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) MarkSellerReached(_ context.Context, id, agentID types.ID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Agent.Status != AgentAccepted || !o.AssignedTo(agentID) {
		return false, nil
	}
	if o.Pickup.SellerLocationReachedAt != nil {
		return false, nil
	}
	t := at
	o.Pickup.SellerLocationReachedAt = &t
	return true, nil
}

func (s *MemStore) CompletePickup(_ context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Agent.Status != AgentAccepted || !o.AssignedTo(agentID) || o.Pickup.IsCompleted {
		return false, nil
	}
	t, by := at, agentID
	o.Pickup.IsCompleted = true
	o.Pickup.CompletedAt = &t
	o.Pickup.Notes = notes
	o.Pickup.CompletedBy = &by
	o.Agent.Status = AgentPickupCompleted
	o.Agent.PickupCompletedAt = &t
	switch o.Status {
	case StatusProcessing, StatusConfirmed, StatusPickupReady:
		o.Status = StatusOutForDelivery
	}
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) MarkLocationReached(_ context.Context, id, agentID types.ID, notes string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || o.Agent.Status != AgentPickupCompleted || !o.AssignedTo(agentID) {
		return false, nil
	}
	t := at
	o.Agent.Status = AgentLocationReached
	o.Delivery.LocationReachedAt = &t
	o.Delivery.LocationNotes = notes
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) CompleteDelivery(_ context.Context, id, agentID types.ID, durationMin int, cod *CODCapture, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok || !o.AssignedTo(agentID) || !o.Pickup.IsCompleted {
		return false, nil
	}
	if o.Agent.Status != AgentPickupCompleted && o.Agent.Status != AgentLocationReached {
		return false, nil
	}
	t, by, dur := at, agentID, durationMin
	o.Agent.Status = AgentDeliveryCompleted
	o.Agent.DeliveryCompletedAt = &t
	o.Agent.DeliveryDurationMin = &dur
	o.Delivery.IsCompleted = true
	o.Delivery.CompletedAt = &t
	o.Delivery.CompletedBy = &by
	o.Status = StatusDelivered
	o.DeliveredAt = &t
	if cod != nil {
		o.COD.Method = cod.Method
		o.COD.Status = "paid"
		o.COD.CollectedAmount = cod.CollectedAmount
		if cod.TransactionID != "" {
			o.COD.TransactionID = cod.TransactionID
		}
	}
	o.StatusVersion++
	return true, nil
}

func (s *MemStore) SetOTPLink(_ context.Context, id, otpID types.ID, generatedAt, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	oid, g, e := otpID, generatedAt, expiresAt
	o.OTP = OTPLink{IsRequired: true, OTPID: &oid, GeneratedAt: &g, ExpiresAt: &e}
	return nil
}

func (s *MemStore) MarkOTPVerified(_ context.Context, id types.ID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	t := at
	o.OTP.IsVerified = true
	o.OTP.VerifiedAt = &t
	return nil
}

func (s *MemStore) SetCODQR(_ context.Context, id types.ID, paymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.COD.Method = CODUPI
	o.COD.Status = "pending"
	o.COD.QRPaymentID = paymentID
	return nil
}

func (s *MemStore) SetCODPaid(_ context.Context, id types.ID, transactionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.COD.Status = "paid"
	o.COD.TransactionID = transactionID
	return nil
}

func (s *MemStore) AppendEvent(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEv++
	cp := *e
	cp.ID = s.nextEv
	s.events = append(s.events, cp)
	return nil
}

func (s *MemStore) ListEvents(_ context.Context, orderID types.ID) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) ListByAgent(_ context.Context, agentID types.ID, statuses []AgentStatus) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[AgentStatus]bool{}
	for _, st := range statuses {
		want[st] = true
	}
	var out []Order
	for _, o := range s.orders {
		if o.AssignedTo(agentID) && want[o.Agent.Status] {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return assignedAtOf(out[i]).Before(assignedAtOf(out[j]))
	})
	return out, nil
}

func (s *MemStore) ListAssignable(_ context.Context, limit int) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.Assignable() {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) CountActiveByAgent(_ context.Context, agentID types.ID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, o := range s.orders {
		if !o.AssignedTo(agentID) {
			continue
		}
		switch o.Agent.Status {
		case AgentAssigned, AgentAccepted, AgentPickupCompleted, AgentLocationReached:
			n++
		}
	}
	return n, nil
}

func assignedAtOf(o Order) time.Time {
	if o.Agent.AssignedAt != nil {
		return *o.Agent.AssignedAt
	}
	return o.CreatedAt
}
