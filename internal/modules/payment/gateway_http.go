// README: HTTP implementations of the SMS and QR gateway interfaces, plus
// log-only fallbacks for local runs without provider credentials.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"courier/internal/types"
)

type HTTPSMSGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPSMSGateway(url, apiKey string) *HTTPSMSGateway {
	return &HTTPSMSGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *HTTPSMSGateway) SendOTP(ctx context.Context, phone, code string) error {
	body, err := json.Marshal(map[string]string{
		"to":      phone,
		"message": "Your delivery confirmation code is " + code,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms provider returned status %d", resp.StatusCode)
	}
	return nil
}

type HTTPQRGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPQRGateway(url, apiKey string) *HTTPQRGateway {
	return &HTTPQRGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

func (g *HTTPQRGateway) GenerateDynamicQR(ctx context.Context, amount types.Money, orderRef, description string) (QR, error) {
	body, err := json.Marshal(map[string]any{
		"amount":      amount.Amount,
		"currency":    amount.Currency,
		"reference":   orderRef,
		"description": description,
	})
	if err != nil {
		return QR{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/qr", bytes.NewReader(body))
	if err != nil {
		return QR{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return QR{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return QR{}, fmt.Errorf("qr provider returned status %d", resp.StatusCode)
	}
	var out struct {
		PaymentID string    `json:"paymentId"`
		QRCode    string    `json:"qrCode"`
		QRData    string    `json:"qrData"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return QR{}, err
	}
	return QR{PaymentID: out.PaymentID, QRCode: out.QRCode, QRData: out.QRData, ExpiresAt: out.ExpiresAt}, nil
}

func (g *HTTPQRGateway) CheckPaymentStatus(ctx context.Context, paymentID string) (QRStatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url+"/qr/"+paymentID, nil)
	if err != nil {
		return QRStatusResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return QRStatusResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return QRStatusResult{}, fmt.Errorf("qr provider returned status %d", resp.StatusCode)
	}
	var out struct {
		Status        string     `json:"status"`
		TransactionID string     `json:"transactionId"`
		PaidAt        *time.Time `json:"paidAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return QRStatusResult{}, err
	}
	return QRStatusResult{Status: QRPaymentStatus(out.Status), TransactionID: out.TransactionID, PaidAt: out.PaidAt}, nil
}

// LogSMSGateway logs codes instead of sending them; local runs only.
type LogSMSGateway struct {
	Log *zap.Logger
}

func (g LogSMSGateway) SendOTP(_ context.Context, phone, code string) error {
	g.Log.Info("otp send (log gateway)", zap.String("phone", phone), zap.String("code", code))
	return nil
}

// StaticQRGateway fakes a gateway that immediately reports payment; local runs only.
type StaticQRGateway struct{}

func (StaticQRGateway) GenerateDynamicQR(_ context.Context, amount types.Money, orderRef, _ string) (QR, error) {
	return QR{
		PaymentID: "qr-" + orderRef,
		QRCode:    "upi://pay?am=" + fmt.Sprint(amount.Amount),
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func (StaticQRGateway) CheckPaymentStatus(_ context.Context, paymentID string) (QRStatusResult, error) {
	now := time.Now()
	return QRStatusResult{Status: QRStatusPaid, TransactionID: "txn-" + paymentID, PaidAt: &now}, nil
}
