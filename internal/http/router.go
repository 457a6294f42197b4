// README: HTTP router: routes, middleware, metrics endpoint.
package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"courier/internal/http/handlers"
	"courier/internal/http/middleware"
	"courier/internal/metrics"
	"courier/internal/modules/agent"
	"courier/internal/modules/dispatch"
	"courier/internal/modules/notify"
	"courier/internal/modules/order"
)

type RouterDeps struct {
	Orders   *order.Service
	Agents   *agent.Service
	Dispatch *dispatch.Service
	Broker   notify.Broker
	Log      *zap.Logger

	JWTSecret string
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log))
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	orderH := handlers.NewOrderHandler(d.Orders, d.Dispatch)
	adminH := handlers.NewAdminHandler(d.Dispatch, d.Orders, d.Agents)
	agentH := handlers.NewAgentHandler(d.Dispatch, d.Agents)
	wsH := handlers.NewWSHandler(d.Broker, d.Log)

	api := r.Group("/api/v1")

	buyer := api.Group("/orders", middleware.AuthGuard(d.JWTSecret, middleware.RoleBuyer, middleware.RoleAdmin))
	{
		buyer.POST("", orderH.Create)
		buyer.GET("/:id", orderH.Get)
		buyer.GET("/:id/timeline", orderH.Timeline)
		buyer.POST("/:id/cancel", orderH.Cancel)
	}

	admin := api.Group("/admin", middleware.AuthGuard(d.JWTSecret, middleware.RoleAdmin))
	{
		admin.POST("/orders/:id/approve", adminH.Approve)
		admin.POST("/orders/:id/assign", adminH.Assign)
		admin.GET("/assignable-orders", adminH.Assignable)
		admin.GET("/order-lookup", adminH.Lookup)
		admin.POST("/agents", adminH.RegisterAgent)
	}

	ag := api.Group("/agent", middleware.AuthGuard(d.JWTSecret, middleware.RoleAgent))
	{
		ag.GET("/orders", agentH.Queue)
		ag.POST("/bulk/respond", agentH.BulkRespond)
		ag.POST("/orders/:id/respond", agentH.Respond)
		ag.POST("/orders/:id/seller-reached", agentH.SellerReached)
		ag.POST("/orders/:id/pickup", agentH.CompletePickup)
		ag.POST("/orders/:id/customer-reached", agentH.CustomerReached)
		ag.POST("/orders/:id/confirm-qr-payment", agentH.ConfirmQRPayment)
		ag.POST("/orders/:id/deliver", agentH.CompleteDelivery)
		ag.PUT("/availability", agentH.SetAvailability)
		ag.PUT("/location", agentH.UpdateLocation)
	}

	r.GET("/ws", middleware.AuthGuard(d.JWTSecret), wsH.Serve)

	return r
}
