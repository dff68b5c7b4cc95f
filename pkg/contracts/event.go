package contracts

import "time"

// EconomicEvent is the immutable audit record of one approved transition.
// Exactly one event exists per approval; events are never mutated or deleted.
type EconomicEvent struct {
	ID            string    `json:"id"`
	Action        Action    `json:"action"`
	Provider      string    `json:"provider"`
	Receiver      string    `json:"receiver"`
	ResourceID    string    `json:"resource_id"`
	QuantityDelta float64   `json:"quantity_delta"`
	Timestamp     time.Time `json:"timestamp"`
	Note          string    `json:"note,omitempty"`
}
