package payment

import "errors"

var (
	ErrNotFound           = errors.New("otp record not found")
	ErrOTPExpired         = errors.New("otp expired")
	ErrOTPMismatch        = errors.New("incorrect otp")
	ErrAttemptsExceeded   = errors.New("otp attempts exceeded")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrResendThrottled    = errors.New("otp resend throttled")
)
