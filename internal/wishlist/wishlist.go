// Package wishlist provides per-user product wishlists.
package wishlist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrAlreadyListed is returned when the product is already on the wishlist.
var ErrAlreadyListed = errors.New("product already on wishlist")

// ErrNotListed is returned when the product is not on the wishlist.
var ErrNotListed = errors.New("product not on wishlist")

// Entry is one wishlist line.
type Entry struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	AddedAt   time.Time `json:"added_at"`
}

// Repository defines wishlist persistence.
type Repository interface {
	Add(ctx context.Context, userID, productID string) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]*Entry, error)
	Contains(ctx context.Context, userID, productID string) (bool, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry // userID -> productID -> entry
}

// NewInMemoryRepository creates a new in-memory wishlist repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{entries: make(map[string]map[string]*Entry)}
}

// Add puts a product on the user's wishlist.
func (r *InMemoryRepository) Add(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byProduct, ok := r.entries[userID]
	if !ok {
		byProduct = make(map[string]*Entry)
		r.entries[userID] = byProduct
	}
	if _, exists := byProduct[productID]; exists {
		return ErrAlreadyListed
	}
	byProduct[productID] = &Entry{
		UserID:    userID,
		ProductID: productID,
		AddedAt:   time.Now(),
	}
	return nil
}

// Remove takes a product off the user's wishlist.
func (r *InMemoryRepository) Remove(ctx context.Context, userID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byProduct, ok := r.entries[userID]
	if !ok {
		return ErrNotListed
	}
	if _, exists := byProduct[productID]; !exists {
		return ErrNotListed
	}
	delete(byProduct, productID)
	return nil
}

// List returns the user's wishlist, newest first.
func (r *InMemoryRepository) List(ctx context.Context, userID string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Entry
	for _, e := range r.entries[userID] {
		copied := *e
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.After(out[j].AddedAt) })
	return out, nil
}

// Contains reports whether the product is on the user's wishlist.
func (r *InMemoryRepository) Contains(ctx context.Context, userID, productID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byProduct, ok := r.entries[userID]
	if !ok {
		return false, nil
	}
	_, exists := byProduct[productID]
	return exists, nil
}
