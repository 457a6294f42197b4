package payment_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"courier/internal/modules/payment"
	"courier/internal/types"
)

type recordingSMS struct {
	mu       sync.Mutex
	lastCode string
	sends    int
	failures int // fail the first N sends
}

func (s *recordingSMS) SendOTP(_ context.Context, _, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends++
	if s.failures > 0 {
		s.failures--
		return errors.New("provider timeout")
	}
	s.lastCode = code
	return nil
}

type fixedQR struct {
	status payment.QRPaymentStatus
	fails  int
	calls  int
}

func (q *fixedQR) GenerateDynamicQR(_ context.Context, _ types.Money, ref, _ string) (payment.QR, error) {
	q.calls++
	if q.fails > 0 {
		q.fails--
		return payment.QR{}, errors.New("provider down")
	}
	return payment.QR{PaymentID: "qr-" + ref}, nil
}

func (q *fixedQR) CheckPaymentStatus(_ context.Context, id string) (payment.QRStatusResult, error) {
	return payment.QRStatusResult{Status: q.status, TransactionID: "txn-" + id}, nil
}

func newService(sms payment.SMSGateway, qr payment.QRGateway, ttl time.Duration) *payment.Service {
	return payment.NewService(payment.NewMemStore(), sms, qr, ttl, time.Millisecond, zap.NewNop())
}

func generate(t *testing.T, svc *payment.Service) *payment.OTPRecord {
	t.Helper()
	rec, err := svc.GenerateDeliveryOTP(context.Background(),
		types.NewID(), types.NewID(), types.NewID(), "+911234567890",
		payment.PurposeDeliveryConfirmation)
	require.NoError(t, err)
	return rec
}

func TestGenerateDeliveryOTP(t *testing.T) {
	sms := &recordingSMS{}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, 0)

	rec := generate(t, svc)
	require.Len(t, rec.Code, 6)
	require.Equal(t, rec.Code, sms.lastCode)
	require.Equal(t, payment.PurposeDeliveryConfirmation, rec.Purpose)
	require.WithinDuration(t, time.Now().Add(payment.DefaultTTL), rec.ExpiresAt, time.Minute)
}

func TestGenerateRetriesFailedSends(t *testing.T) {
	sms := &recordingSMS{failures: 2}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, 0)

	rec := generate(t, svc)
	require.Equal(t, 3, sms.sends)
	require.Equal(t, rec.Code, sms.lastCode)
}

func TestGenerateFailsAfterExhaustedRetries(t *testing.T) {
	sms := &recordingSMS{failures: 10}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, 0)

	_, err := svc.GenerateDeliveryOTP(context.Background(),
		types.NewID(), types.NewID(), types.NewID(), "+911234567890",
		payment.PurposeDeliveryConfirmation)
	require.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	require.Equal(t, 3, sms.sends)
}

func TestResendThrottledPerOrder(t *testing.T) {
	sms := &recordingSMS{}
	svc := payment.NewService(payment.NewMemStore(), sms, &fixedQR{}, 0, time.Hour, zap.NewNop())

	orderID := types.NewID()
	_, err := svc.GenerateDeliveryOTP(context.Background(),
		orderID, types.NewID(), types.NewID(), "+911234567890",
		payment.PurposeDeliveryConfirmation)
	require.NoError(t, err)

	_, err = svc.GenerateDeliveryOTP(context.Background(),
		orderID, types.NewID(), types.NewID(), "+911234567890",
		payment.PurposeDeliveryConfirmation)
	require.ErrorIs(t, err, payment.ErrResendThrottled)

	// Other orders are not affected by this order's throttle.
	_, err = svc.GenerateDeliveryOTP(context.Background(),
		types.NewID(), types.NewID(), types.NewID(), "+911234567890",
		payment.PurposeDeliveryConfirmation)
	require.NoError(t, err)
}

func TestVerifyOTPAttemptCeiling(t *testing.T) {
	sms := &recordingSMS{}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, 0)
	rec := generate(t, svc)
	ctx := context.Background()

	for i := 0; i < payment.MaxAttempts; i++ {
		err := svc.VerifyOTP(ctx, rec.ID, "000000")
		require.ErrorIs(t, err, payment.ErrOTPMismatch)
	}

	// The correct code no longer works once attempts are exhausted.
	err := svc.VerifyOTP(ctx, rec.ID, rec.Code)
	require.ErrorIs(t, err, payment.ErrAttemptsExceeded)
}

func TestVerifyOTPExpiry(t *testing.T) {
	sms := &recordingSMS{}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, time.Nanosecond)
	rec := generate(t, svc)

	time.Sleep(time.Millisecond)
	err := svc.VerifyOTP(context.Background(), rec.ID, rec.Code)
	require.ErrorIs(t, err, payment.ErrOTPExpired)
}

func TestVerifyOTPIdempotentOnVerified(t *testing.T) {
	sms := &recordingSMS{}
	svc := newService(sms, &fixedQR{status: payment.QRStatusPaid}, 0)
	rec := generate(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.VerifyOTP(ctx, rec.ID, rec.Code))
	require.NoError(t, svc.VerifyOTP(ctx, rec.ID, rec.Code))

	got, err := svc.GetOTP(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, got.IsVerified)
	require.NotNil(t, got.VerifiedAt)
}

func TestVerifyOTPUnknownRecord(t *testing.T) {
	svc := newService(&recordingSMS{}, &fixedQR{}, 0)
	err := svc.VerifyOTP(context.Background(), types.NewID(), "123456")
	require.ErrorIs(t, err, payment.ErrNotFound)
}

func TestGenerateDynamicQRRetries(t *testing.T) {
	qr := &fixedQR{status: payment.QRStatusPaid, fails: 1}
	svc := newService(&recordingSMS{}, qr, 0)

	got, err := svc.GenerateDynamicQR(context.Background(), types.Rupees(5000), "ORD-1", "order ORD-1")
	require.NoError(t, err)
	require.Equal(t, "qr-ORD-1", got.PaymentID)
	require.Equal(t, 2, qr.calls)
}
