package catalog

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrProductNotFound is returned when a product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrCategoryNotFound is returned when a category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrInsufficientStock is returned when a stock reservation exceeds
	// the available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository defines persistence for the product catalog.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id string) (*Product, error)
	ListProducts(ctx context.Context, categoryID string) ([]*Product, error)
	UpdateProduct(ctx context.Context, p *Product) error

	// ReserveStock atomically decrements stock for a purchase.
	// Returns ErrInsufficientStock when quantity exceeds availability.
	ReserveStock(ctx context.Context, productID string, quantity int) error

	// ReleaseStock returns previously reserved stock, e.g. when a
	// payment fails for good or an order is cancelled.
	ReleaseStock(ctx context.Context, productID string, quantity int) error

	CreateCategory(ctx context.Context, c *Category) error
	GetCategory(ctx context.Context, id string) (*Category, error)
	ListCategories(ctx context.Context) ([]*Category, error)
}

// InMemoryRepository implements Repository with in-memory storage.
type InMemoryRepository struct {
	mu         sync.RWMutex
	products   map[string]*Product
	categories map[string]*Category
}

// NewInMemoryRepository creates a new in-memory catalog repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		products:   make(map[string]*Product),
		categories: make(map[string]*Category),
	}
}

// CreateProduct adds a new product.
func (r *InMemoryRepository) CreateProduct(ctx context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now()
	if p.CreatedAt == nil {
		p.CreatedAt = &now
	}
	if p.UpdatedAt == nil {
		p.UpdatedAt = &now
	}

	copied := *p
	r.products[p.ID] = &copied
	return nil
}

// GetProduct retrieves a product by ID.
func (r *InMemoryRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

// ListProducts returns active products, optionally filtered by category.
func (r *InMemoryRepository) ListProducts(ctx context.Context, categoryID string) ([]*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Product
	for _, p := range r.products {
		if !p.Active {
			continue
		}
		if categoryID != "" && p.CategoryID != categoryID {
			continue
		}
		copied := *p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateProduct overwrites a product.
func (r *InMemoryRepository) UpdateProduct(ctx context.Context, p *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[p.ID]
	if !ok {
		return ErrProductNotFound
	}
	now := time.Now()
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = &now

	copied := *p
	r.products[p.ID] = &copied
	return nil
}

// ReserveStock atomically decrements stock for a purchase.
func (r *InMemoryRepository) ReserveStock(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	if quantity <= 0 || p.Stock < quantity {
		return ErrInsufficientStock
	}
	p.Stock -= quantity
	now := time.Now()
	p.UpdatedAt = &now
	return nil
}

// ReleaseStock returns previously reserved stock.
func (r *InMemoryRepository) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[productID]
	if !ok {
		return ErrProductNotFound
	}
	p.Stock += quantity
	now := time.Now()
	p.UpdatedAt = &now
	return nil
}

// CreateCategory adds a new category.
func (r *InMemoryRepository) CreateCategory(ctx context.Context, c *Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	copied := *c
	r.categories[c.ID] = &copied
	return nil
}

// GetCategory retrieves a category by ID.
func (r *InMemoryRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	copied := *c
	return &copied, nil
}

// ListCategories returns all categories sorted by name.
func (r *InMemoryRepository) ListCategories(ctx context.Context) ([]*Category, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Category
	for _, c := range r.categories {
		copied := *c
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
