// README: Admin endpoints: approval, assignment, assignable queue.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"courier/internal/http/middleware"
	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/order"
	"courier/internal/types"
)

type AdminHandler struct {
	dispatch *dispatch.Service
	orders   *order.Service
	agents   *agent.Service
}

func NewAdminHandler(d *dispatch.Service, orders *order.Service, agents *agent.Service) *AdminHandler {
	return &AdminHandler{dispatch: d, orders: orders, agents: agents}
}

func (h *AdminHandler) Approve(c *gin.Context) {
	err := h.dispatch.Approve(c.Request.Context(), types.ID(c.Param("id")), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approved": true})
}

type assignRequest struct {
	AgentID types.ID `json:"agentId" binding:"required"`
}

func (h *AdminHandler) Assign(c *gin.Context) {
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	err := h.dispatch.Assign(c.Request.Context(), types.ID(c.Param("id")), req.AgentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"assigned": true})
}

// Assignable lists approved unassigned orders, oldest first.
func (h *AdminHandler) Assignable(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	orders, err := h.dispatch.Available(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

// Lookup resolves an order by its human-readable number (support tooling).
func (h *AdminHandler) Lookup(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		writeBadRequest(c, "number query parameter is required")
		return
	}
	o, err := h.orders.GetByNumber(c.Request.Context(), number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderView(o))
}

type registerAgentRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	VehicleType string `json:"vehicleType"`
	IsVerified  bool   `json:"isVerified"`
}

func (h *AdminHandler) RegisterAgent(c *gin.Context) {
	var req registerAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBadRequest(c, err.Error())
		return
	}
	a := &agent.DeliveryAgent{
		Name:        req.Name,
		Phone:       req.Phone,
		VehicleType: req.VehicleType,
		IsVerified:  req.IsVerified,
		CreatedAt:   time.Now(),
	}
	if err := h.agents.Register(c.Request.Context(), a); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": a.ID})
}
