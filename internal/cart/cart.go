// Package cart provides the shopping cart model and storage. Carts are
// short-lived per-user documents, so they live in Redis rather than
// Postgres; an in-memory store backs tests and development.
package cart

import (
	"errors"
	"time"
)

// DefaultTTL is how long an untouched cart survives.
const DefaultTTL = 30 * 24 * time.Hour

// ErrCartNotFound is returned when a user has no cart.
var ErrCartNotFound = errors.New("cart not found")

// ErrItemNotFound is returned when the cart has no line for a product.
var ErrItemNotFound = errors.New("cart item not found")

// ErrInvalidQuantity is returned for non-positive quantities.
var ErrInvalidQuantity = errors.New("quantity must be positive")

// Item is one product line in a cart. UnitPrice is a snapshot of the
// product price at the time the line was added, in minor currency units.
type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
	Quantity  int    `json:"quantity"`
}

// Cart is the full cart document for one user.
type Cart struct {
	UserID    string    `json:"user_id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Total returns the cart total in minor currency units.
func (c *Cart) Total() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// Upsert adds the item or merges quantity into an existing line.
func (c *Cart) Upsert(item Item) {
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// SetQuantity replaces the quantity for a product line.
// Returns ErrItemNotFound when the line does not exist.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return nil
		}
	}
	return ErrItemNotFound
}

// Remove deletes a product line.
// Returns ErrItemNotFound when the line does not exist.
func (c *Cart) Remove(productID string) error {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}
