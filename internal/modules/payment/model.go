// README: OTP records and COD QR payment types.
package payment

import (
	"time"

	"courier/internal/types"
)

type Purpose string

const (
	PurposeDeliveryConfirmation Purpose = "delivery_confirmation"
	PurposeDeliveryVerification Purpose = "delivery_verification"
)

const (
	// MaxAttempts is the verification attempt ceiling per OTP record.
	MaxAttempts = 3
	// DefaultTTL is the validity window of a delivery OTP.
	DefaultTTL = 10 * time.Minute
)

// OTPRecord is a short-lived delivery-confirmation code. The code is stored
// plain: records expire within minutes and are scoped to one order.
type OTPRecord struct {
	ID           types.ID
	OrderID      types.ID
	UserID       types.ID
	AgentID      types.ID
	Code         string
	Purpose      Purpose
	ExpiresAt    time.Time
	IsVerified   bool
	VerifiedAt   *time.Time
	AttemptCount int
	CreatedAt    time.Time
}

func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// QR is a dynamic UPI payment code issued by the payment gateway.
type QR struct {
	PaymentID string
	QRCode    string
	QRData    string
	ExpiresAt time.Time
}

type QRPaymentStatus string

const (
	QRStatusPending QRPaymentStatus = "pending"
	QRStatusPaid    QRPaymentStatus = "paid"
	QRStatusExpired QRPaymentStatus = "expired"
	QRStatusFailed  QRPaymentStatus = "failed"
)

type QRStatusResult struct {
	Status        QRPaymentStatus
	TransactionID string
	PaidAt        *time.Time
}
