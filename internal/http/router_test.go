package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	stdhttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	courierhttp "courier/internal/http"
	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
	"courier/internal/modules/payment"
	"courier/internal/types"
)

const testSecret = "test-secret"

type okSMS struct{}

func (okSMS) SendOTP(context.Context, string, string) error { return nil }

type okQR struct{}

func (okQR) GenerateDynamicQR(_ context.Context, _ types.Money, ref, _ string) (payment.QR, error) {
	return payment.QR{PaymentID: "qr-" + ref}, nil
}

func (okQR) CheckPaymentStatus(_ context.Context, id string) (payment.QRStatusResult, error) {
	return payment.QRStatusResult{Status: payment.QRStatusPaid}, nil
}

type testAPI struct {
	router *gin.Engine
	orders *order.Service
	agents *agent.Service
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	payments := payment.NewService(payment.NewMemStore(), okSMS{}, okQR{}, 0, 0, log)
	orders := order.NewService(order.NewMemStore(), payments)
	agents := agent.NewService(agent.NewMemStore(), 2)
	broker := notify.NewMemBroker()
	dispatcher := dispatch.NewService(orders, agents, notify.NewFanout(broker, log), log)

	router := courierhttp.NewRouter(courierhttp.RouterDeps{
		Orders:    orders,
		Agents:    agents,
		Dispatch:  dispatcher,
		Broker:    broker,
		Log:       log,
		JWTSecret: testSecret,
	})
	return &testAPI{router: router, orders: orders, agents: agents}
}

func signToken(t *testing.T, sub types.ID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  string(sub),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	api := newAPI(t)

	w := api.do(t, stdhttp.MethodGet, "/api/v1/agent/orders", "", nil)
	require.Equal(t, stdhttp.StatusUnauthorized, w.Code)

	buyerToken := signToken(t, types.NewID(), "buyer")
	w = api.do(t, stdhttp.MethodGet, "/api/v1/agent/orders", buyerToken, nil)
	require.Equal(t, stdhttp.StatusForbidden, w.Code)
}

func TestCreateAndFetchOrder(t *testing.T) {
	api := newAPI(t)
	buyerToken := signToken(t, types.NewID(), "buyer")

	w := api.do(t, stdhttp.MethodPost, "/api/v1/orders", buyerToken, map[string]any{
		"sellerId":      string(types.NewID()),
		"buyerPhone":    "+911234567890",
		"paymentMethod": "prepaid",
		"amount":        25000,
		"deliveryFee":   4000,
	})
	require.Equal(t, stdhttp.StatusCreated, w.Code)

	var created struct {
		ID          string `json:"id"`
		OrderNumber string `json:"orderNumber"`
		Status      string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.Regexp(t, `^ORD-\d{8}-\d{3,}$`, created.OrderNumber)
	require.Equal(t, "Pending", created.Status)

	w = api.do(t, stdhttp.MethodGet, "/api/v1/orders/"+created.ID, buyerToken, nil)
	require.Equal(t, stdhttp.StatusOK, w.Code)
}

func TestErrorCodeMapping(t *testing.T) {
	api := newAPI(t)
	ctx := context.Background()

	adminID := types.NewID()
	adminToken := signToken(t, adminID, "admin")

	agentRec := &agent.DeliveryAgent{Name: "Ravi", IsVerified: true, CreatedAt: time.Now()}
	require.NoError(t, api.agents.Register(ctx, agentRec))
	agentToken := signToken(t, agentRec.ID, "agent")

	buyerID := types.NewID()
	buyerToken := signToken(t, buyerID, "buyer")

	makeOrder := func() string {
		w := api.do(t, stdhttp.MethodPost, "/api/v1/orders", buyerToken, map[string]any{
			"sellerId":      string(types.NewID()),
			"buyerPhone":    "+911234567890",
			"paymentMethod": "prepaid",
			"amount":        10000,
		})
		require.Equal(t, stdhttp.StatusCreated, w.Code)
		var created struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
		return created.ID
	}

	orderID := makeOrder()

	// Assigning before approval maps to NOT_APPROVED.
	w := api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/assign", orderID), adminToken,
		map[string]any{"agentId": string(agentRec.ID)})
	require.Equal(t, stdhttp.StatusConflict, w.Code)
	require.Equal(t, "NOT_APPROVED", errCode(t, w))

	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/approve", orderID), adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, w.Code)

	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/assign", orderID), adminToken,
		map[string]any{"agentId": string(agentRec.ID)})
	require.Equal(t, stdhttp.StatusOK, w.Code)

	// A second agent responding to someone else's assignment is forbidden.
	otherAgent := &agent.DeliveryAgent{Name: "Meera", IsVerified: true, CreatedAt: time.Now()}
	require.NoError(t, api.agents.Register(ctx, otherAgent))
	otherToken := signToken(t, otherAgent.ID, "agent")
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/agent/orders/%s/respond", orderID), otherToken,
		map[string]any{"decision": "accepted"})
	require.Equal(t, stdhttp.StatusForbidden, w.Code)
	require.Equal(t, "NOT_ASSIGNED_TO_AGENT", errCode(t, w))

	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/agent/orders/%s/respond", orderID), agentToken,
		map[string]any{"decision": "accepted"})
	require.Equal(t, stdhttp.StatusOK, w.Code)

	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/agent/orders/%s/respond", orderID), agentToken,
		map[string]any{"decision": "accepted"})
	require.Equal(t, stdhttp.StatusConflict, w.Code)
	require.Equal(t, "ALREADY_RESPONDED", errCode(t, w))

	// Wrong pickup verification maps to ORD mismatch.
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/agent/orders/%s/pickup", orderID), agentToken,
		map[string]any{"orderNumber": "ORD-00000000-000"})
	require.Equal(t, stdhttp.StatusBadRequest, w.Code)
	require.Equal(t, "ORDER_ID_MISMATCH", errCode(t, w))

	// Capacity: the agent holds 1 of max 2; a third assignment fails.
	second := makeOrder()
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/approve", second), adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, w.Code)
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/assign", second), adminToken,
		map[string]any{"agentId": string(agentRec.ID)})
	require.Equal(t, stdhttp.StatusOK, w.Code)

	third := makeOrder()
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/approve", third), adminToken, nil)
	require.Equal(t, stdhttp.StatusOK, w.Code)
	w = api.do(t, stdhttp.MethodPost, fmt.Sprintf("/api/v1/admin/orders/%s/assign", third), adminToken,
		map[string]any{"agentId": string(agentRec.ID)})
	require.Equal(t, stdhttp.StatusConflict, w.Code)
	require.Equal(t, "CAPACITY_EXCEEDED", errCode(t, w))

	// Unknown order maps to NOT_FOUND.
	w = api.do(t, stdhttp.MethodGet, "/api/v1/orders/"+string(types.NewID()), buyerToken, nil)
	require.Equal(t, stdhttp.StatusNotFound, w.Code)
	require.Equal(t, "NOT_FOUND", errCode(t, w))
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}
