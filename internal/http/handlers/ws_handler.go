// README: WebSocket push endpoint. A client subscribes to its own party
// channel and receives the notification fan-out as JSON frames.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"courier/internal/http/middleware"
	"courier/internal/modules/notify"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type WSHandler struct {
	broker notify.Broker
	log    *zap.Logger
}

func NewWSHandler(broker notify.Broker, log *zap.Logger) *WSHandler {
	return &WSHandler{broker: broker, log: log}
}

// Serve upgrades the connection and streams the caller's channel. The channel
// is derived from the authenticated identity, never from client input.
func (h *WSHandler) Serve(c *gin.Context) {
	userID := middleware.UserID(c)
	var channel string
	switch middleware.Role(c) {
	case middleware.RoleAdmin:
		channel = notify.AdminChannel
	case middleware.RoleAgent:
		channel = notify.AgentChannel(userID)
	case middleware.RoleSeller:
		channel = notify.SellerChannel(userID)
	default:
		channel = notify.BuyerChannel(userID)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	events := h.broker.Subscribe(channel)
	defer func() {
		h.broker.Unsubscribe(channel, events)
		conn.Close()
	}()

	// Reader goroutine: drain client frames and surface disconnects.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}
