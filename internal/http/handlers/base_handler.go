// README: Shared response helpers and the sentinel-error to HTTP mapping.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/order"
	"courier/internal/modules/payment"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var errorMap = []struct {
	err    error
	status int
	code   string
}{
	{order.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{agent.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{payment.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{order.ErrBadRequest, http.StatusBadRequest, "BAD_REQUEST"},

	{order.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
	{order.ErrConflict, http.StatusConflict, "CONFLICT"},
	{order.ErrAlreadyAssigned, http.StatusConflict, "ALREADY_ASSIGNED"},
	{order.ErrNotApproved, http.StatusConflict, "NOT_APPROVED"},
	{order.ErrNotAssignedToAgent, http.StatusForbidden, "NOT_ASSIGNED_TO_AGENT"},
	{order.ErrAlreadyResponded, http.StatusConflict, "ALREADY_RESPONDED"},
	{order.ErrOrderNumberMismatch, http.StatusBadRequest, "ORDER_ID_MISMATCH"},
	{order.ErrPickupAlreadyCompleted, http.StatusConflict, "PICKUP_ALREADY_COMPLETED"},
	{order.ErrPickupNotCompleted, http.StatusConflict, "PICKUP_NOT_COMPLETED"},
	{order.ErrOTPRequired, http.StatusBadRequest, "OTP_REQUIRED"},
	{order.ErrAlreadyDelivered, http.StatusConflict, "ALREADY_DELIVERED"},
	{order.ErrPaymentNotCollected, http.StatusBadRequest, "PAYMENT_NOT_COLLECTED"},

	{dispatch.ErrCapacityExceeded, http.StatusConflict, "CAPACITY_EXCEEDED"},

	{payment.ErrOTPExpired, http.StatusBadRequest, "OTP_EXPIRED"},
	{payment.ErrOTPMismatch, http.StatusBadRequest, "OTP_INVALID"},
	{payment.ErrAttemptsExceeded, http.StatusBadRequest, "OTP_ATTEMPTS_EXCEEDED"},
	{payment.ErrResendThrottled, http.StatusTooManyRequests, "OTP_RESEND_THROTTLED"},
	{payment.ErrGatewayUnavailable, http.StatusBadGateway, "PAYMENT_GATEWAY_UNAVAILABLE"},

	{agent.ErrBlocked, http.StatusForbidden, "AGENT_BLOCKED"},
	{agent.ErrNotVerified, http.StatusForbidden, "AGENT_NOT_VERIFIED"},
}

// writeError maps module sentinel errors to a {code, message} JSON body.
func writeError(c *gin.Context, err error) {
	for _, m := range errorMap {
		if errors.Is(err, m.err) {
			c.JSON(m.status, apiError{Code: m.code, Message: err.Error()})
			return
		}
	}
	c.JSON(http.StatusInternalServerError, apiError{Code: "INTERNAL", Message: "internal error"})
}

func writeBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, apiError{Code: "BAD_REQUEST", Message: msg})
}
