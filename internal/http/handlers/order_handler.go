// README: Buyer/shared order endpoints: create, fetch, timeline, cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type OrderHandler struct {
	orders   *order.Service
	dispatch *dispatch.Service
}

func NewOrderHandler(orders *order.Service, d *dispatch.Service) *OrderHandler {
	return &OrderHandler{orders: orders, dispatch: d}
}

type createOrderRequest struct {
	SellerID      types.ID `json:"sellerId" binding:"required"`
	SellerName    string   `json:"sellerName"`
	BuyerName     string   `json:"buyerName"`
	BuyerPhone    string   `json:"buyerPhone" binding:"required"`
	PaymentMethod string   `json:"paymentMethod" binding:"required"`
	Amount        int64    `json:"amount" binding:"required"`
	DeliveryFee   int64    `json:"deliveryFee"`
	Currency      string   `json:"currency"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}
	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		BuyerID:       middleware.UserID(c),
		BuyerName:     req.BuyerName,
		BuyerPhone:    req.BuyerPhone,
		SellerID:      req.SellerID,
		SellerName:    req.SellerName,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Amount:        types.Money{Amount: req.Amount, Currency: currency},
		DeliveryFee:   types.Money{Amount: req.DeliveryFee, Currency: currency},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderView(o))
}

func (h *OrderHandler) Get(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

func (h *OrderHandler) Timeline(c *gin.Context) {
	events, err := h.orders.Timeline(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": toEventViews(events)})
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)
	err := h.dispatch.Cancel(c.Request.Context(),
		types.ID(c.Param("id")), middleware.UserID(c), middleware.Role(c), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(order.StatusCancelled)})
}
