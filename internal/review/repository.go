package review

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrReviewNotFound is returned when a review does not exist.
	ErrReviewNotFound = errors.New("review not found")

	// ErrDuplicateReview is returned when a user reviews the same
	// product twice.
	ErrDuplicateReview = errors.New("user already reviewed this product")
)

// Repository defines persistence for reviews.
type Repository interface {
	Create(ctx context.Context, rev *Review) error
	GetByID(ctx context.Context, id string) (*Review, error)

	// ListByProduct returns approved reviews for a product, newest first.
	ListByProduct(ctx context.Context, productID string) ([]*Review, error)

	// ListPending returns reviews awaiting moderation, oldest first.
	ListPending(ctx context.Context) ([]*Review, error)

	// SetStatus moves a review through moderation.
	SetStatus(ctx context.Context, id string, status Status) error
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reviews map[string]*Review
}

// NewInMemoryRepository creates a new in-memory review repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{reviews: make(map[string]*Review)}
}

// Create adds a new review in pending status.
func (r *InMemoryRepository) Create(ctx context.Context, rev *Review) error {
	if err := rev.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reviews {
		if existing.ProductID == rev.ProductID && existing.UserID == rev.UserID {
			return ErrDuplicateReview
		}
	}

	if rev.ID == "" {
		rev.ID = uuid.New().String()
	}
	if rev.Status == "" {
		rev.Status = StatusPending
	}
	now := time.Now()
	if rev.CreatedAt == nil {
		rev.CreatedAt = &now
	}
	if rev.UpdatedAt == nil {
		rev.UpdatedAt = &now
	}

	copied := *rev
	r.reviews[rev.ID] = &copied
	return nil
}

// GetByID retrieves a review by ID.
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rev, ok := r.reviews[id]
	if !ok {
		return nil, ErrReviewNotFound
	}
	copied := *rev
	return &copied, nil
}

// ListByProduct returns approved reviews for a product, newest first.
func (r *InMemoryRepository) ListByProduct(ctx context.Context, productID string) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Review
	for _, rev := range r.reviews {
		if rev.ProductID == productID && rev.Status == StatusApproved {
			copied := *rev
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(*out[j].CreatedAt) })
	return out, nil
}

// ListPending returns reviews awaiting moderation, oldest first.
func (r *InMemoryRepository) ListPending(ctx context.Context) ([]*Review, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Review
	for _, rev := range r.reviews {
		if rev.Status == StatusPending {
			copied := *rev
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(*out[j].CreatedAt) })
	return out, nil
}

// SetStatus moves a review through moderation.
func (r *InMemoryRepository) SetStatus(ctx context.Context, id string, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev, ok := r.reviews[id]
	if !ok {
		return ErrReviewNotFound
	}
	now := time.Now()
	rev.Status = status
	rev.UpdatedAt = &now
	return nil
}
