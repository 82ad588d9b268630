// Package review provides product reviews with lightweight moderation.
// Reviews enter as pending and become visible once approved.
package review

import (
	"errors"
	"time"
)

// Status represents the moderation state of a review.
type Status string

// Review status values.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Validation errors.
var (
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrEmptyContent  = errors.New("review content is required")
)

// Review represents a customer review of a product.
type Review struct {
	ID        string     `json:"id"`
	ProductID string     `json:"product_id"`
	UserID    string     `json:"user_id"`
	Rating    int        `json:"rating"` // 1-5
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content"`
	Status    Status     `json:"status"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Validate checks rating bounds and content presence.
func (r *Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return ErrInvalidRating
	}
	if r.Content == "" {
		return ErrEmptyContent
	}
	return nil
}
