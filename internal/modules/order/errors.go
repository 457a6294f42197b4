package order

import "errors"

var (
	ErrNotFound     = errors.New("order not found")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict means a concurrent request won the conditional update race.
	ErrConflict = errors.New("order state conflict")

	ErrAlreadyAssigned        = errors.New("order already assigned")
	ErrNotApproved            = errors.New("order not approved for delivery")
	ErrNotAssignedToAgent     = errors.New("order not assigned to this agent")
	ErrAlreadyResponded       = errors.New("assignment already responded to")
	ErrOrderNumberMismatch    = errors.New("order number verification failed")
	ErrPickupAlreadyCompleted = errors.New("pickup already completed")
	ErrPickupNotCompleted     = errors.New("pickup not completed")
	ErrOTPRequired            = errors.New("otp verification required")
	ErrAlreadyDelivered       = errors.New("order already delivered")
	ErrPaymentNotCollected    = errors.New("cod payment not collected")
)
