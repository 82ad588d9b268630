// Package catalog provides the product and category models and their
// repositories. Prices are integer minor currency units throughout.
package catalog

import "time"

// Product represents a purchasable item in the storefront.
type Product struct {
	ID          string     `json:"id"`
	CategoryID  string     `json:"category_id,omitempty"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Price       int64      `json:"price"` // Minor currency units
	Currency    string     `json:"currency"`
	Stock       int        `json:"stock"`
	Active      bool       `json:"active"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// InStock reports whether the requested quantity can be fulfilled.
func (p *Product) InStock(quantity int) bool {
	return p.Active && quantity > 0 && p.Stock >= quantity
}

// Category groups products. Categories form a single-level tree via
// ParentID.
type Category struct {
	ID       string `json:"id"`
	ParentID string `json:"parent_id,omitempty"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}
