package order

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrOrderNotFound is returned when an order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrInvalidTransition is returned when a status update would move
	// the order backwards.
	ErrInvalidTransition = errors.New("invalid order status transition")
)

// Repository defines persistence for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)

	// UpdateStatus transitions the order, rejecting regressions. The
	// check happens under the store's own synchronization so racing
	// webhook and retry paths cannot interleave a backwards move.
	UpdateStatus(ctx context.Context, id string, to Status) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu     sync.RWMutex
	orders map[string]*Order
}

// NewInMemoryRepository creates a new in-memory order repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{orders: make(map[string]*Order)}
}

// Create adds a new order.
func (r *InMemoryRepository) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now()
	if o.CreatedAt == nil {
		o.CreatedAt = &now
	}
	if o.UpdatedAt == nil {
		o.UpdatedAt = &now
	}

	copied := *o
	r.orders[o.ID] = &copied
	return nil
}

// GetByID retrieves an order by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

// ListByUser returns all orders belonging to a user.
func (r *InMemoryRepository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Order
	for _, o := range r.orders {
		if o.UserID == userID {
			copied := *o
			out = append(out, &copied)
		}
	}
	return out, nil
}

// UpdateStatus transitions the order status, rejecting invalid moves.
func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, to Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if !ValidTransition(o.Status, to) {
		return ErrInvalidTransition
	}
	now := time.Now()
	o.Status = to
	o.UpdatedAt = &now
	return nil
}
