// Package order provides the order model and repository. Order status is
// derived from payment outcomes: pending until a payment completes,
// processing afterwards, cancelled when the active attempt fails for good.
package order

import "time"

// Status represents the fulfillment state of an order.
type Status string

// Order status values.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// statusRank orders the forward-only progression. Cancelled sits outside
// the progression and is reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// ValidTransition reports whether an order may move from one status to
// another. Status only moves forward, except the explicit cancelled arc.
func ValidTransition(from, to Status) bool {
	if from == to {
		return false
	}
	if from == StatusCancelled || from == StatusDelivered {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	fromRank, ok := statusRank[from]
	if !ok {
		return false
	}
	toRank, ok := statusRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}

// Order represents a customer order awaiting or past payment.
type Order struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	Email           string     `json:"email"`
	TotalAmount     int64      `json:"total_amount"` // Minor currency units
	Currency        string     `json:"currency"`
	Status          Status     `json:"status"`
	ShippingAddress string     `json:"shipping_address"`
	BillingAddress  string     `json:"billing_address"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	UpdatedAt       *time.Time `json:"updated_at,omitempty"`
}
