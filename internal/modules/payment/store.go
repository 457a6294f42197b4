package payment

import (
	"context"
	"time"

	"courier/internal/types"
)

// Store persists OTP records.
type Store interface {
	Create(ctx context.Context, r *OTPRecord) error
	Get(ctx context.Context, id types.ID) (*OTPRecord, error)
	// IncrementAttempts bumps the attempt counter and returns the new count.
	IncrementAttempts(ctx context.Context, id types.ID) (int, error)
	// MarkVerified flips is_verified only when the record is still unverified;
	// reports whether the flip happened.
	MarkVerified(ctx context.Context, id types.ID, at time.Time) (bool, error)
}
