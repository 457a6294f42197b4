// README: Shared opaque identifier and geo types used across modules.
package types

import "github.com/google/uuid"

// ID is an opaque entity identifier. Authorization checks compare IDs by
// value; raw string coercion belongs only at the transport boundary.
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) IsZero() bool {
	return id == ""
}

type Point struct {
	Lat float64
	Lng float64
}
