// README: Order aggregate, delivery sub-status definitions, and transition table.
package order

import (
	"time"

	"courier/internal/types"
)

// Status is the top-level order lifecycle.
type Status string

const (
	StatusPending        Status = "Pending"
	StatusProcessing     Status = "Processing"
	StatusConfirmed      Status = "Confirmed"
	StatusPickupReady    Status = "Pickup_Ready"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// AgentStatus is the fine-grained delivery sub-status driving agent workflows.
// The empty value means no agent currently holds the order.
type AgentStatus string

const (
	AgentUnassigned        AgentStatus = ""
	AgentAssigned          AgentStatus = "assigned"
	AgentAccepted          AgentStatus = "accepted"
	AgentRejected          AgentStatus = "rejected"
	AgentPickupCompleted   AgentStatus = "pickup_completed"
	AgentLocationReached   AgentStatus = "location_reached"
	AgentDeliveryCompleted AgentStatus = "delivery_completed"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "cod"
	PaymentPrepaid PaymentMethod = "prepaid"
)

// AllowedAgentTransitions represents the delivery sub-status flow as code.
// Rejection exits from assigned; a rejected order is re-assignable after its
// agent reference is cleared. delivery_completed is reachable directly from
// pickup_completed because location-reached and handover can coincide.
var AllowedAgentTransitions = map[AgentStatus][]AgentStatus{
	AgentUnassigned:      {AgentAssigned},
	AgentAssigned:        {AgentAccepted, AgentRejected},
	AgentAccepted:        {AgentPickupCompleted},
	AgentPickupCompleted: {AgentLocationReached, AgentDeliveryCompleted},
	AgentLocationReached: {AgentDeliveryCompleted},
}

func CanTransition(from, to AgentStatus) bool {
	next, ok := AllowedAgentTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// ActiveAgentStatuses count against an agent's capacity.
var ActiveAgentStatuses = []AgentStatus{
	AgentAssigned, AgentAccepted, AgentPickupCompleted, AgentLocationReached,
}

type AdminApproval struct {
	Status     ApprovalStatus
	ApprovedBy *types.ID
	ApprovedAt *time.Time
}

type DeliveryAssignment struct {
	AgentID             *types.ID
	Status              AgentStatus
	AssignedAt          *time.Time
	AcceptedAt          *time.Time
	PickupCompletedAt   *time.Time
	DeliveryCompletedAt *time.Time
	DeliveryDurationMin *int
	RejectionReason     *string
}

type Pickup struct {
	IsCompleted             bool
	CompletedAt             *time.Time
	SellerLocationReachedAt *time.Time
	Notes                   string
	CompletedBy             *types.ID
}

type Delivery struct {
	IsCompleted       bool
	CompletedAt       *time.Time
	LocationReachedAt *time.Time
	LocationNotes     string
	CompletedBy       *types.ID
}

type OTPLink struct {
	IsRequired  bool
	OTPID       *types.ID
	GeneratedAt *time.Time
	ExpiresAt   *time.Time
	IsVerified  bool
	VerifiedAt  *time.Time
}

type CODMethod string

const (
	CODCash CODMethod = "cash"
	CODUPI  CODMethod = "upi"
)

type CODPayment struct {
	Method          CODMethod
	Status          string // pending|paid
	CollectedAmount types.Money
	TransactionID   string
	QRPaymentID     string
}

// CODCapture is the collection payload recorded at delivery completion.
type CODCapture struct {
	Method          CODMethod
	CollectedAmount types.Money
	TransactionID   string
}

type Order struct {
	ID types.ID
	// OrderNumber is the human-readable identity (ORD-YYYYMMDD-NNN),
	// immutable once assigned.
	OrderNumber string

	BuyerID    types.ID
	BuyerName  string
	BuyerPhone string
	SellerID   types.ID
	SellerName string

	Status        Status
	StatusVersion int
	PaymentMethod PaymentMethod
	Amount        types.Money
	DeliveryFee   types.Money

	AdminApproval AdminApproval
	Agent         DeliveryAssignment
	Pickup        Pickup
	Delivery      Delivery
	OTP           OTPLink
	COD           CODPayment

	CreatedAt   time.Time
	DeliveredAt *time.Time
}

// Event is one append-only timeline entry; entries are never mutated.
type Event struct {
	ID         int64
	OrderID    types.ID
	FromStatus string
	ToStatus   string
	ActorType  string // admin|agent|buyer|system
	ActorID    *types.ID
	Notes      string
	CreatedAt  time.Time
}

// AssignedTo reports whether the order is currently held by the given agent.
func (o *Order) AssignedTo(agentID types.ID) bool {
	return o.Agent.AgentID != nil && *o.Agent.AgentID == agentID
}

// Assignable reports whether an agent may be assigned: admin approved, no
// current agent, and the order is still in a pre-delivery state.
func (o *Order) Assignable() bool {
	if o.AdminApproval.Status != ApprovalApproved {
		return false
	}
	if o.Agent.AgentID != nil {
		return false
	}
	switch o.Status {
	case StatusProcessing, StatusConfirmed, StatusPickupReady:
		return true
	}
	return false
}
