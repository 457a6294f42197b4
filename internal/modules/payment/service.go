// README: Payment collaborator: delivery OTPs and dynamic COD QR codes.
package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"courier/internal/types"
)

type Service struct {
	store Store
	sms   SMSGateway
	qr    QRGateway
	ttl   time.Duration
	log   *zap.Logger

	mu       sync.Mutex
	limiters map[types.ID]*rate.Limiter // per-order OTP resend throttle
	resend   rate.Limit
}

func NewService(store Store, sms SMSGateway, qr QRGateway, ttl, resendEvery time.Duration, log *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if resendEvery <= 0 {
		resendEvery = 30 * time.Second
	}
	return &Service{
		store:    store,
		sms:      sms,
		qr:       qr,
		ttl:      ttl,
		log:      log,
		limiters: map[types.ID]*rate.Limiter{},
		resend:   rate.Every(resendEvery),
	}
}

// GenerateDeliveryOTP creates an OTP record, persists it, and sends the code
// to the customer. The record is persisted before the send so a failed send
// can be retried without changing the code the order is linked to.
func (s *Service) GenerateDeliveryOTP(ctx context.Context, orderID, userID, agentID types.ID, phone string, purpose Purpose) (*OTPRecord, error) {
	if !s.allowResend(orderID) {
		return nil, ErrResendThrottled
	}

	now := time.Now()
	rec := &OTPRecord{
		ID:        types.NewID(),
		OrderID:   orderID,
		UserID:    userID,
		AgentID:   agentID,
		Code:      generateCode(),
		Purpose:   purpose,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, err
	}

	err := withRetry(ctx, func() error {
		return s.sms.SendOTP(ctx, phone, rec.Code)
	})
	if err != nil {
		s.log.Error("otp send failed", zap.String("order_id", string(orderID)), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return rec, nil
}

// VerifyOTP checks a submitted code against the stored record, enforcing
// expiry and the attempt ceiling. Verifying an already-verified record is an
// idempotent success.
func (s *Service) VerifyOTP(ctx context.Context, otpID types.ID, code string) error {
	rec, err := s.store.Get(ctx, otpID)
	if err != nil {
		return err
	}
	if rec.IsVerified {
		return nil
	}
	if rec.Expired(time.Now()) {
		return ErrOTPExpired
	}
	if rec.AttemptCount >= MaxAttempts {
		return ErrAttemptsExceeded
	}
	if rec.Code != code {
		if _, err := s.store.IncrementAttempts(ctx, otpID); err != nil {
			return err
		}
		return ErrOTPMismatch
	}
	ok, err := s.store.MarkVerified(ctx, otpID, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// Lost a race with a concurrent verify of the same record.
		return nil
	}
	return nil
}

func (s *Service) GetOTP(ctx context.Context, otpID types.ID) (*OTPRecord, error) {
	return s.store.Get(ctx, otpID)
}

// GenerateDynamicQR issues a UPI QR for the COD amount via the gateway.
func (s *Service) GenerateDynamicQR(ctx context.Context, amount types.Money, orderRef, description string) (QR, error) {
	var q QR
	err := withRetry(ctx, func() error {
		var inner error
		q, inner = s.qr.GenerateDynamicQR(ctx, amount, orderRef, description)
		return inner
	})
	if err != nil {
		s.log.Error("qr generation failed", zap.String("order_ref", orderRef), zap.Error(err))
		return QR{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return q, nil
}

// CheckQRPaymentStatus reports the gateway-side payment state of a QR.
func (s *Service) CheckQRPaymentStatus(ctx context.Context, paymentID string) (QRStatusResult, error) {
	var res QRStatusResult
	err := withRetry(ctx, func() error {
		var inner error
		res, inner = s.qr.CheckPaymentStatus(ctx, paymentID)
		return inner
	})
	if err != nil {
		return QRStatusResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return res, nil
}

func (s *Service) allowResend(orderID types.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	lim, ok := s.limiters[orderID]
	if !ok {
		lim = rate.NewLimiter(s.resend, 1)
		s.limiters[orderID] = lim
	}
	return lim.Allow()
}

func generateCode() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		// crypto/rand failure is unrecoverable for code generation
		panic(err)
	}
	return fmt.Sprintf("%06d", n.Int64())
}
