// README: Agent workflow endpoints: work queue, respond, pickup, delivery.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type AgentHandler struct {
	dispatch *dispatch.Service
	agents   *agent.Service
}

func NewAgentHandler(d *dispatch.Service, agents *agent.Service) *AgentHandler {
	return &AgentHandler{dispatch: d, agents: agents}
}

// Queue returns the agent's active orders, oldest assignment first.
func (h *AgentHandler) Queue(c *gin.Context) {
	orders, err := h.dispatch.Queue(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

type respondRequest struct {
	Decision string `json:"decision" binding:"required"` // accepted | rejected
	Reason   string `json:"reason"`
}

func (h *AgentHandler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	orderID := types.ID(c.Param("id"))
	agentID := middleware.UserID(c)

	var err error
	switch order.Decision(req.Decision) {
	case order.DecisionAccepted:
		err = h.dispatch.Accept(c.Request.Context(), orderID, agentID)
	case order.DecisionRejected:
		err = h.dispatch.Reject(c.Request.Context(), orderID, agentID, req.Reason)
	default:
		writeBadRequest(c, "decision must be accepted or rejected")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"decision": req.Decision})
}

type bulkRespondRequest struct {
	OrderIDs []types.ID `json:"orderIds" binding:"required"`
	Decision string     `json:"decision" binding:"required"`
	Reason   string     `json:"reason"`
}

// BulkRespond accepts or rejects a batch; each order succeeds or fails on its own.
func (h *AgentHandler) BulkRespond(c *gin.Context) {
	var req bulkRespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	agentID := middleware.UserID(c)

	var res dispatch.BulkResult
	switch order.Decision(req.Decision) {
	case order.DecisionAccepted:
		res = h.dispatch.BulkAccept(c.Request.Context(), agentID, req.OrderIDs)
	case order.DecisionRejected:
		res = h.dispatch.BulkReject(c.Request.Context(), agentID, req.OrderIDs, req.Reason)
	default:
		writeBadRequest(c, "decision must be accepted or rejected")
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AgentHandler) SellerReached(c *gin.Context) {
	err := h.dispatch.MarkSellerReached(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sellerReached": true})
}

type completePickupRequest struct {
	OrderNumber string `json:"orderNumber" binding:"required"`
	Notes       string `json:"notes"`
}

func (h *AgentHandler) CompletePickup(c *gin.Context) {
	var req completePickupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	err := h.dispatch.CompletePickup(c.Request.Context(),
		types.ID(c.Param("id")), middleware.UserID(c), req.OrderNumber, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pickupCompleted": true})
}

type customerReachedRequest struct {
	Notes string `json:"notes"`
}

func (h *AgentHandler) CustomerReached(c *gin.Context) {
	var req customerReachedRequest
	_ = c.ShouldBindJSON(&req)
	pd, err := h.dispatch.MarkCustomerReached(c.Request.Context(),
		types.ID(c.Param("id")), middleware.UserID(c), req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentDataView(pd))
}

func (h *AgentHandler) ConfirmQRPayment(c *gin.Context) {
	pd, err := h.dispatch.ConfirmQRPayment(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPaymentDataView(pd))
}

type completeDeliveryRequest struct {
	OTP string `json:"otp"`
	COD *struct {
		Method          string `json:"method"` // cash | upi
		CollectedAmount int64  `json:"collectedAmount"`
		Currency        string `json:"currency"`
		TransactionID   string `json:"transactionId"`
	} `json:"cod"`
}

func (h *AgentHandler) CompleteDelivery(c *gin.Context) {
	var req completeDeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	cmd := order.CompleteDeliveryCommand{
		OrderID: types.ID(c.Param("id")),
		AgentID: middleware.UserID(c),
		OTPCode: req.OTP,
	}
	if req.COD != nil {
		currency := req.COD.Currency
		if currency == "" {
			currency = "INR"
		}
		cmd.COD = &order.CODCapture{
			Method:          order.CODMethod(req.COD.Method),
			CollectedAmount: types.Money{Amount: req.COD.CollectedAmount, Currency: currency},
			TransactionID:   req.COD.TransactionID,
		}
	}
	res, err := h.dispatch.CompleteDelivery(c.Request.Context(), cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deliveredAt": res.DeliveredAt,
		"durationMin": res.DurationMin,
	})
}

type availabilityRequest struct {
	Online    bool `json:"online"`
	Available bool `json:"available"`
}

func (h *AgentHandler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	err := h.agents.SetAvailability(c.Request.Context(), middleware.UserID(c), req.Online, req.Available)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"online": req.Online, "available": req.Available})
}

type locationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

func (h *AgentHandler) UpdateLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	err := h.agents.UpdateLocation(c.Request.Context(), middleware.UserID(c), types.Point{Lat: req.Lat, Lng: req.Lng})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
