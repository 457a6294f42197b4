// README: Order service implements the delivery state machine and persistence.
package order

import (
	"context"
	"math"
	"time"

	"courier/internal/metrics"
	"courier/internal/modules/payment"
	"courier/internal/types"
)

// PaymentCollaborator is the external OTP/QR capability consumed by the state
// machine. It is treated as a black box returning success or failure; retry
// policy lives behind this interface, never here.
type PaymentCollaborator interface {
	GenerateDeliveryOTP(ctx context.Context, orderID, userID, agentID types.ID, phone string, purpose payment.Purpose) (*payment.OTPRecord, error)
	VerifyOTP(ctx context.Context, otpID types.ID, code string) error
	GetOTP(ctx context.Context, otpID types.ID) (*payment.OTPRecord, error)
	GenerateDynamicQR(ctx context.Context, amount types.Money, orderRef, description string) (payment.QR, error)
	CheckQRPaymentStatus(ctx context.Context, paymentID string) (payment.QRStatusResult, error)
}

type Service struct {
	store    Store
	payments PaymentCollaborator
}

func NewService(store Store, payments PaymentCollaborator) *Service {
	return &Service{store: store, payments: payments}
}

const defaultRejectionReason = "No reason provided"

type CreateCommand struct {
	BuyerID       types.ID
	BuyerName     string
	BuyerPhone    string
	SellerID      types.ID
	SellerName    string
	PaymentMethod PaymentMethod
	Amount        types.Money
	DeliveryFee   types.Money
}

type ApproveCommand struct {
	OrderID    types.ID
	ApproverID types.ID
}

type AssignCommand struct {
	OrderID types.ID
	AgentID types.ID
}

type Decision string

const (
	DecisionAccepted Decision = "accepted"
	DecisionRejected Decision = "rejected"
)

type RespondCommand struct {
	OrderID  types.ID
	AgentID  types.ID
	Decision Decision
	Reason   string
}

type SellerReachedCommand struct {
	OrderID types.ID
	AgentID types.ID
}

type CompletePickupCommand struct {
	OrderID types.ID
	AgentID types.ID
	// OrderNumberVerification must exactly match the order's human-readable
	// number; comparison is case-sensitive with no fuzzy matching.
	OrderNumberVerification string
	Notes                   string
}

type LocationReachedCommand struct {
	OrderID types.ID
	AgentID types.ID
	Notes   string
}

type CompleteDeliveryCommand struct {
	OrderID types.ID
	AgentID types.ID
	OTPCode string
	COD     *CODCapture
}

type CancelCommand struct {
	OrderID   types.ID
	ActorType string
	ActorID   types.ID
	Reason    string
}

type ConfirmQRCommand struct {
	OrderID types.ID
	AgentID types.ID
}

// PaymentData identifies the payment/OTP artifacts linked to an order at the
// location-reached step. Repeated calls return the same identifiers.
type PaymentData struct {
	Kind         string // "otp" or "cod_qr"
	OTPID        types.ID
	OTPExpiresAt *time.Time
	QRPaymentID  string
	QRCode       string
}

type DeliveryResult struct {
	DeliveredAt time.Time
	DurationMin int
}

// Create registers a checkout order with a fresh day-sequenced order number.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Order, error) {
	if cmd.BuyerID.IsZero() || cmd.SellerID.IsZero() {
		return nil, ErrBadRequest
	}
	if cmd.PaymentMethod != PaymentCOD && cmd.PaymentMethod != PaymentPrepaid {
		return nil, ErrBadRequest
	}
	now := time.Now()
	number, err := s.nextOrderNumber(ctx, now)
	if err != nil {
		return nil, err
	}
	o := &Order{
		ID:            types.NewID(),
		OrderNumber:   number,
		BuyerID:       cmd.BuyerID,
		BuyerName:     cmd.BuyerName,
		BuyerPhone:    cmd.BuyerPhone,
		SellerID:      cmd.SellerID,
		SellerName:    cmd.SellerName,
		Status:        StatusPending,
		PaymentMethod: cmd.PaymentMethod,
		Amount:        cmd.Amount,
		DeliveryFee:   cmd.DeliveryFee,
		AdminApproval: AdminApproval{Status: ApprovalPending},
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}
	s.logEvent(ctx, o.ID, "", string(StatusPending), "buyer", &cmd.BuyerID, "order created")
	return o, nil
}

// Approve gates delivery assignment behind an admin decision.
func (s *Service) Approve(ctx context.Context, cmd ApproveCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.AdminApproval.Status != ApprovalPending {
		return ErrInvalidState
	}
	ok, err := s.store.Approve(ctx, cmd.OrderID, cmd.ApproverID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.logEvent(ctx, o.ID, string(ApprovalPending), string(ApprovalApproved), "admin", &cmd.ApproverID, "admin approved")
	return nil
}

// Cancel withdraws an order still in a pre-pickup state.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	switch o.Status {
	case StatusPending, StatusProcessing, StatusConfirmed, StatusPickupReady:
	default:
		return ErrInvalidState
	}
	if o.Pickup.IsCompleted {
		return ErrInvalidState
	}
	ok, err := s.store.Cancel(ctx, cmd.OrderID, cmd.Reason, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.logEvent(ctx, o.ID, string(o.Status), string(StatusCancelled), cmd.ActorType, &cmd.ActorID, cmd.Reason)
	return nil
}

// Assign hands the order to an agent. Capacity gating happens in the
// dispatch orchestrator before this is called.
func (s *Service) Assign(ctx context.Context, cmd AssignCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.AdminApproval.Status != ApprovalApproved {
		return ErrNotApproved
	}
	if o.Agent.AgentID != nil {
		return ErrAlreadyAssigned
	}
	if !o.Assignable() {
		return ErrInvalidState
	}
	ok, err := s.store.Assign(ctx, cmd.OrderID, cmd.AgentID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordTransition(ctx, o.ID, AgentUnassigned, AgentAssigned, "admin", nil, "")
	return nil
}

// Respond records the agent's accept/reject decision on a fresh assignment.
func (s *Service) Respond(ctx context.Context, cmd RespondCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return ErrNotAssignedToAgent
	}
	if o.Agent.Status != AgentAssigned {
		return ErrAlreadyResponded
	}

	now := time.Now()
	switch cmd.Decision {
	case DecisionAccepted:
		ok, err := s.store.Accept(ctx, cmd.OrderID, cmd.AgentID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		s.recordTransition(ctx, o.ID, AgentAssigned, AgentAccepted, "agent", &cmd.AgentID, "")
	case DecisionRejected:
		reason := cmd.Reason
		if reason == "" {
			reason = defaultRejectionReason
		}
		ok, err := s.store.Reject(ctx, cmd.OrderID, cmd.AgentID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		s.recordTransition(ctx, o.ID, AgentAssigned, AgentRejected, "agent", &cmd.AgentID, reason)
	default:
		return ErrBadRequest
	}
	return nil
}

// MarkSellerLocationReached stamps arrival at the seller. Calling it again
// after the stamp is a no-op success.
func (s *Service) MarkSellerLocationReached(ctx context.Context, cmd SellerReachedCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return ErrNotAssignedToAgent
	}
	if o.Pickup.SellerLocationReachedAt != nil {
		return nil
	}
	if o.Agent.Status != AgentAccepted {
		return ErrInvalidState
	}
	ok, err := s.store.MarkSellerReached(ctx, cmd.OrderID, cmd.AgentID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// A concurrent duplicate may have stamped it first; that is still success.
		o2, err := s.store.Get(ctx, cmd.OrderID)
		if err != nil {
			return err
		}
		if o2.Pickup.SellerLocationReachedAt != nil {
			return nil
		}
		return ErrConflict
	}
	return nil
}

// CompletePickup verifies the human-readable order number against the
// seller's copy and moves the order out for delivery.
func (s *Service) CompletePickup(ctx context.Context, cmd CompletePickupCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return ErrNotAssignedToAgent
	}
	if o.Pickup.IsCompleted {
		return ErrPickupAlreadyCompleted
	}
	if cmd.OrderNumberVerification != o.OrderNumber {
		return ErrOrderNumberMismatch
	}
	if o.Agent.Status != AgentAccepted {
		return ErrInvalidState
	}
	ok, err := s.store.CompletePickup(ctx, cmd.OrderID, cmd.AgentID, cmd.Notes, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.recordTransition(ctx, o.ID, AgentAccepted, AgentPickupCompleted, "agent", &cmd.AgentID, cmd.Notes)
	return nil
}

// MarkCustomerLocationReached records arrival at the buyer and provisions the
// payment artifacts: an OTP for prepaid orders, a dynamic QR for COD.
// Repeats are idempotent and replay the already-linked identifiers instead of
// generating fresh ones.
func (s *Service) MarkCustomerLocationReached(ctx context.Context, cmd LocationReachedCommand) (PaymentData, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return PaymentData{}, err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return PaymentData{}, ErrNotAssignedToAgent
	}

	switch o.Agent.Status {
	case AgentLocationReached:
		return s.ensurePaymentData(ctx, o)
	case AgentDeliveryCompleted:
		return PaymentData{}, ErrAlreadyDelivered
	case AgentAssigned, AgentAccepted:
		return PaymentData{}, ErrPickupNotCompleted
	case AgentPickupCompleted:
	default:
		return PaymentData{}, ErrInvalidState
	}

	ok, err := s.store.MarkLocationReached(ctx, cmd.OrderID, cmd.AgentID, cmd.Notes, time.Now())
	if err != nil {
		return PaymentData{}, err
	}
	if !ok {
		// Lost a race with a duplicate request; fall through to the replay path.
		o2, err := s.store.Get(ctx, cmd.OrderID)
		if err != nil {
			return PaymentData{}, err
		}
		if o2.Agent.Status != AgentLocationReached {
			return PaymentData{}, ErrConflict
		}
		o = o2
	} else {
		s.recordTransition(ctx, o.ID, AgentPickupCompleted, AgentLocationReached, "agent", &cmd.AgentID, cmd.Notes)
		o2, err := s.store.Get(ctx, cmd.OrderID)
		if err != nil {
			return PaymentData{}, err
		}
		o = o2
	}
	return s.ensurePaymentData(ctx, o)
}

// ensurePaymentData links OTP/QR artifacts to the order exactly once. The
// location-reached transition stands even when generation fails, so a retry
// of the (idempotent) operation re-attempts generation.
func (s *Service) ensurePaymentData(ctx context.Context, o *Order) (PaymentData, error) {
	if o.PaymentMethod == PaymentPrepaid {
		if o.OTP.OTPID != nil {
			return PaymentData{Kind: "otp", OTPID: *o.OTP.OTPID, OTPExpiresAt: o.OTP.ExpiresAt}, nil
		}
		rec, err := s.payments.GenerateDeliveryOTP(ctx, o.ID, o.BuyerID, *o.Agent.AgentID, o.BuyerPhone, payment.PurposeDeliveryConfirmation)
		if err != nil {
			return PaymentData{}, err
		}
		if err := s.store.SetOTPLink(ctx, o.ID, rec.ID, rec.CreatedAt, rec.ExpiresAt); err != nil {
			return PaymentData{}, err
		}
		exp := rec.ExpiresAt
		return PaymentData{Kind: "otp", OTPID: rec.ID, OTPExpiresAt: &exp}, nil
	}

	if o.COD.QRPaymentID != "" {
		return PaymentData{Kind: "cod_qr", QRPaymentID: o.COD.QRPaymentID}, nil
	}
	total := o.Amount.Add(o.DeliveryFee)
	qr, err := s.payments.GenerateDynamicQR(ctx, total, o.OrderNumber, "order "+o.OrderNumber)
	if err != nil {
		return PaymentData{}, err
	}
	if err := s.store.SetCODQR(ctx, o.ID, qr.PaymentID); err != nil {
		return PaymentData{}, err
	}
	return PaymentData{Kind: "cod_qr", QRPaymentID: qr.PaymentID, QRCode: qr.QRCode}, nil
}

// ConfirmQRPayment checks the gateway state of the COD QR; once paid it
// provisions the delivery-verification OTP required to close the order.
func (s *Service) ConfirmQRPayment(ctx context.Context, cmd ConfirmQRCommand) (PaymentData, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return PaymentData{}, err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return PaymentData{}, ErrNotAssignedToAgent
	}
	if o.PaymentMethod != PaymentCOD || o.COD.QRPaymentID == "" {
		return PaymentData{}, ErrBadRequest
	}
	if o.COD.Status != "paid" {
		res, err := s.payments.CheckQRPaymentStatus(ctx, o.COD.QRPaymentID)
		if err != nil {
			return PaymentData{}, err
		}
		if res.Status != payment.QRStatusPaid {
			return PaymentData{}, ErrPaymentNotCollected
		}
		if err := s.store.SetCODPaid(ctx, o.ID, res.TransactionID, time.Now()); err != nil {
			return PaymentData{}, err
		}
	}
	if o.OTP.OTPID != nil {
		return PaymentData{Kind: "otp", OTPID: *o.OTP.OTPID, OTPExpiresAt: o.OTP.ExpiresAt}, nil
	}
	rec, err := s.payments.GenerateDeliveryOTP(ctx, o.ID, o.BuyerID, cmd.AgentID, o.BuyerPhone, payment.PurposeDeliveryVerification)
	if err != nil {
		return PaymentData{}, err
	}
	if err := s.store.SetOTPLink(ctx, o.ID, rec.ID, rec.CreatedAt, rec.ExpiresAt); err != nil {
		return PaymentData{}, err
	}
	exp := rec.ExpiresAt
	return PaymentData{Kind: "otp", OTPID: rec.ID, OTPExpiresAt: &exp}, nil
}

// CompleteDelivery closes the order: OTP gate for prepaid orders (and for COD
// when an OTP was required), COD collection capture, duration bookkeeping.
func (s *Service) CompleteDelivery(ctx context.Context, cmd CompleteDeliveryCommand) (DeliveryResult, error) {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return DeliveryResult{}, err
	}
	if !o.AssignedTo(cmd.AgentID) {
		return DeliveryResult{}, ErrNotAssignedToAgent
	}
	if o.Agent.Status == AgentDeliveryCompleted || o.Status == StatusDelivered {
		return DeliveryResult{}, ErrAlreadyDelivered
	}
	if !o.Pickup.IsCompleted {
		return DeliveryResult{}, ErrPickupNotCompleted
	}
	if o.Agent.Status != AgentPickupCompleted && o.Agent.Status != AgentLocationReached {
		return DeliveryResult{}, ErrInvalidState
	}

	// Prepaid orders always close through the OTP gate, even when the agent
	// skipped the customer-reached step and no code was provisioned yet.
	needsOTP := o.OTP.IsRequired || o.PaymentMethod == PaymentPrepaid
	if needsOTP && !o.OTP.IsVerified {
		if cmd.OTPCode == "" || o.OTP.OTPID == nil {
			return DeliveryResult{}, ErrOTPRequired
		}
		if err := s.payments.VerifyOTP(ctx, *o.OTP.OTPID, cmd.OTPCode); err != nil {
			return DeliveryResult{}, err
		}
		if err := s.store.MarkOTPVerified(ctx, o.ID, time.Now()); err != nil {
			return DeliveryResult{}, err
		}
	}

	var capture *CODCapture
	if o.PaymentMethod == PaymentCOD {
		if cmd.COD == nil {
			return DeliveryResult{}, ErrPaymentNotCollected
		}
		switch cmd.COD.Method {
		case CODCash:
			if cmd.COD.CollectedAmount.Amount <= 0 {
				return DeliveryResult{}, ErrPaymentNotCollected
			}
		case CODUPI:
			if o.COD.Status != "paid" {
				return DeliveryResult{}, ErrPaymentNotCollected
			}
		default:
			return DeliveryResult{}, ErrBadRequest
		}
		capture = cmd.COD
	}

	now := time.Now()
	duration := 0
	if o.Agent.AssignedAt != nil {
		duration = int(math.Round(now.Sub(*o.Agent.AssignedAt).Minutes()))
	}
	ok, err := s.store.CompleteDelivery(ctx, cmd.OrderID, cmd.AgentID, duration, capture, now)
	if err != nil {
		return DeliveryResult{}, err
	}
	if !ok {
		return DeliveryResult{}, ErrConflict
	}
	s.recordTransition(ctx, o.ID, o.Agent.Status, AgentDeliveryCompleted, "agent", &cmd.AgentID, "")
	return DeliveryResult{DeliveredAt: now, DurationMin: duration}, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

// GetByNumber resolves an order by its human-readable number.
func (s *Service) GetByNumber(ctx context.Context, number string) (*Order, error) {
	return s.store.GetByNumber(ctx, number)
}

func (s *Service) Timeline(ctx context.Context, id types.ID) ([]Event, error) {
	return s.store.ListEvents(ctx, id)
}

// AssignedToAgent lists the agent's active work queue, oldest first.
func (s *Service) AssignedToAgent(ctx context.Context, agentID types.ID) ([]Order, error) {
	return s.store.ListByAgent(ctx, agentID, ActiveAgentStatuses)
}

// Assignable lists approved unassigned orders, oldest first.
func (s *Service) Assignable(ctx context.Context, limit int) ([]Order, error) {
	return s.store.ListAssignable(ctx, limit)
}

func (s *Service) ActiveCount(ctx context.Context, agentID types.ID) (int, error) {
	return s.store.CountActiveByAgent(ctx, agentID)
}

func (s *Service) recordTransition(ctx context.Context, orderID types.ID, from, to AgentStatus, actorType string, actorID *types.ID, notes string) {
	metrics.OrderTransitions.WithLabelValues(string(from), string(to)).Inc()
	s.logEvent(ctx, orderID, string(from), string(to), actorType, actorID, notes)
}

// logEvent appends to the timeline; the timeline is advisory and must not
// fail the transition that produced it.
func (s *Service) logEvent(ctx context.Context, orderID types.ID, from, to, actorType string, actorID *types.ID, notes string) {
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		Notes:      notes,
		CreatedAt:  time.Now(),
	})
}
