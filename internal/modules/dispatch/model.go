// README: Assignment orchestrator types.
package dispatch

import (
	"errors"

	"courier/internal/types"
)

// ErrCapacityExceeded means the agent already holds the configured maximum of
// active orders.
var ErrCapacityExceeded = errors.New("agent capacity exceeded")

// Failure is one order that could not be processed in a bulk operation.
type Failure struct {
	OrderID types.ID `json:"orderId"`
	Reason  string   `json:"reason"`
}

// BulkResult summarizes a bulk accept/reject: per-order outcomes, partial
// success allowed. One order's failure never aborts the rest.
type BulkResult struct {
	Succeeded []types.ID `json:"succeeded"`
	Failed    []Failure  `json:"failed"`
	Total     int        `json:"total"`
}
