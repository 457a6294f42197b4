// README: Delivery agent aggregate and performance stats.
package agent

import (
	"time"

	"courier/internal/types"
)

type DeliveryAgent struct {
	ID          types.ID
	Name        string
	Phone       string
	VehicleType string

	IsVerified  bool
	IsBlocked   bool
	BlockReason string

	IsOnline        bool
	IsAvailable     bool
	CurrentLocation *types.Point

	Stats     Stats
	CreatedAt time.Time
}

// Stats counters move on every assignment, response, pickup, and delivery.
// AvgDeliveryTimeMin is a running mean over completed deliveries.
type Stats struct {
	Assigned            int
	Accepted            int
	PickupsCompleted    int
	DeliveriesCompleted int
	AvgDeliveryTimeMin  float64
	TotalDeliveries     int
	TotalEarnings       types.Money
	Rating              float64
}

// StatsDelta is an atomic increment applied to an agent's counters.
type StatsDelta struct {
	Assigned         int
	Accepted         int
	PickupsCompleted int
}
