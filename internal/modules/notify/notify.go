// README: Notification fan-out: best-effort push events to party channels.
package notify

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"courier/internal/metrics"
	"courier/internal/types"
)

// Event is a small denormalized transition summary, never a full order document.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Broker delivers events to subscribers of a channel.
type Broker interface {
	Publish(ctx context.Context, channel string, evt Event) error
	Subscribe(channel string) chan Event
	Unsubscribe(channel string, ch chan Event)
}

// Channel names per interested party.
const AdminChannel = "admin"

func BuyerChannel(id types.ID) string  { return "buyer:" + string(id) }
func SellerChannel(id types.ID) string { return "seller:" + string(id) }
func AgentChannel(id types.ID) string  { return "agent:" + string(id) }

// Fanout pushes an event to each channel. Failures are logged and counted,
// never returned: a committed state transition must not be blocked or rolled
// back by notification delivery.
type Fanout struct {
	broker Broker
	log    *zap.Logger
}

func NewFanout(broker Broker, log *zap.Logger) *Fanout {
	return &Fanout{broker: broker, log: log}
}

func (f *Fanout) Notify(ctx context.Context, channels []string, eventType string, payload map[string]any) {
	evt := Event{Type: eventType, Payload: payload}
	for _, ch := range channels {
		if err := f.broker.Publish(ctx, ch, evt); err != nil {
			metrics.Notifications.WithLabelValues(channelKind(ch), "error").Inc()
			f.log.Warn("notification publish failed",
				zap.String("channel", ch),
				zap.String("event", eventType),
				zap.Error(err),
			)
			continue
		}
		metrics.Notifications.WithLabelValues(channelKind(ch), "ok").Inc()
	}
}

func channelKind(channel string) string {
	if i := strings.IndexByte(channel, ':'); i > 0 {
		return channel[:i]
	}
	return channel
}

// OrderPayload builds the common denormalized payload for order events.
func OrderPayload(orderNumber, status string, extra map[string]any) map[string]any {
	p := map[string]any{
		"orderNumber": orderNumber,
		"status":      status,
	}
	for k, v := range extra {
		p[k] = v
	}
	return p
}
