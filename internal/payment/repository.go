package payment

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrPaymentNotFound is returned when a payment row does not exist.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDuplicateTransactionID is returned when a transaction ID is
	// already assigned to another payment for the same provider.
	ErrDuplicateTransactionID = errors.New("transaction id already in use")

	// ErrOrderAlreadyPaid is returned by CompleteExclusive when another
	// payment for the same order is already completed. This is the
	// enforcement point for the at-most-one-completed invariant; the
	// orchestrator's own check is advisory only.
	ErrOrderAlreadyPaid = errors.New("order already has a completed payment")
)

// Repository defines persistence for payment rows. Rows are created by
// the orchestrator and mutated via Update or CompleteExclusive; they are
// never deleted.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id string) (*Payment, error)

	// GetByTransactionID locates a payment by the gateway reference a
	// callback echoes back. Provider scopes the lookup because
	// references are only unique per gateway.
	GetByTransactionID(ctx context.Context, provider Provider, transactionID string) (*Payment, error)

	// ListByOrder returns every attempt for an order ordered by
	// creation time, oldest first. The last element is the active
	// attempt in the retry chain.
	ListByOrder(ctx context.Context, orderID string) ([]*Payment, error)

	Update(ctx context.Context, p *Payment) error

	// CompleteExclusive atomically marks the payment completed, sets its
	// payment date and gateway transaction ID, and guarantees no other
	// payment for the same order is completed. Calling it on an already
	// completed payment with the same transaction ID is a no-op.
	CompleteExclusive(ctx context.Context, paymentID, transactionID string, when time.Time) error

	// ListStalePending returns pending payments created before the
	// cutoff, for the reconciliation sweep.
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu       sync.RWMutex
	payments map[string]*Payment
}

// NewInMemoryRepository creates a new in-memory payment repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{payments: make(map[string]*Payment)}
}

// Create adds a new payment row.
func (r *InMemoryRepository) Create(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	for _, existing := range r.payments {
		if existing.Provider == p.Provider && existing.TransactionID == p.TransactionID {
			return ErrDuplicateTransactionID
		}
	}

	now := time.Now()
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	if p.UpdatedAt == nil {
		p.UpdatedAt = &now
	}

	copied := *p
	r.payments[p.ID] = &copied
	return nil
}

// GetByID retrieves a payment row by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	copied := *p
	return &copied, nil
}

// GetByTransactionID locates a payment by provider-scoped gateway reference.
func (r *InMemoryRepository) GetByTransactionID(ctx context.Context, provider Provider, transactionID string) (*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.payments {
		if p.Provider == provider && p.TransactionID == transactionID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, ErrPaymentNotFound
}

// ListByOrder returns all attempts for an order, oldest first.
func (r *InMemoryRepository) ListByOrder(ctx context.Context, orderID string) ([]*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(*out[j].CreatedAt)
	})
	return out, nil
}

// Update overwrites an existing payment row.
func (r *InMemoryRepository) Update(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.payments[p.ID]; !ok {
		return ErrPaymentNotFound
	}
	now := time.Now()
	p.UpdatedAt = &now

	copied := *p
	r.payments[p.ID] = &copied
	return nil
}

// CompleteExclusive marks a payment completed under the repository lock,
// enforcing at most one completed payment per order.
func (r *InMemoryRepository) CompleteExclusive(ctx context.Context, paymentID, transactionID string, when time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.payments[paymentID]
	if !ok {
		return ErrPaymentNotFound
	}
	if p.Status == StatusCompleted {
		// Duplicate delivery of the same completion is benign.
		return nil
	}
	for _, other := range r.payments {
		if other.OrderID == p.OrderID && other.ID != p.ID && other.Status == StatusCompleted {
			return ErrOrderAlreadyPaid
		}
	}

	now := time.Now()
	p.Status = StatusCompleted
	p.TransactionID = transactionID
	p.PaymentDate = &when
	p.UpdatedAt = &now
	return nil
}

// ListStalePending returns pending payments created before cutoff.
func (r *InMemoryRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Payment
	for _, p := range r.payments {
		if p.Status == StatusPending && p.CreatedAt != nil && p.CreatedAt.Before(cutoff) {
			copied := *p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(*out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
