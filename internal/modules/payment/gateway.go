package payment

import (
	"context"
	"time"

	"courier/internal/types"
)

// SMSGateway delivers OTP codes to customer phones. Implementations live at
// the edge (provider SDK or HTTP client); the core only sees send failures.
type SMSGateway interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// QRGateway issues dynamic UPI QR codes and reports their payment state.
type QRGateway interface {
	GenerateDynamicQR(ctx context.Context, amount types.Money, orderRef, description string) (QR, error)
	CheckPaymentStatus(ctx context.Context, paymentID string) (QRStatusResult, error)
}

// retrySchedule bounds external-gateway retries. A call that fails the whole
// schedule is reported as a failure; the state machine never re-retries.
var retrySchedule = []time.Duration{500 * time.Millisecond, 1500 * time.Millisecond, 0}

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for _, backoff := range retrySchedule {
		if err = fn(); err == nil {
			return nil
		}
		if backoff == 0 {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
