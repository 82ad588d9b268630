package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store defines cart persistence.
type Store interface {
	// Get returns the user's cart. Returns ErrCartNotFound when absent.
	Get(ctx context.Context, userID string) (*Cart, error)

	// Save overwrites the user's cart and refreshes its TTL.
	Save(ctx context.Context, c *Cart) error

	// Delete removes the user's cart, e.g. after checkout.
	Delete(ctx context.Context, userID string) error
}

// RedisStore implements Store on Redis. Each cart is one JSON document
// under carts:<user_id> with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed cart store with the default TTL.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, ttl: DefaultTTL}
}

func cartKey(userID string) string {
	return "carts:" + userID
}

// Get returns the user's cart.
func (s *RedisStore) Get(ctx context.Context, userID string) (*Cart, error) {
	data, err := s.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return &c, nil
}

// Save overwrites the user's cart and refreshes its TTL.
func (s *RedisStore) Save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = time.Now()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.client.Set(ctx, cartKey(c.UserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete removes the user's cart.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}

// InMemoryStore implements Store with an in-memory map.
type InMemoryStore struct {
	mu    sync.RWMutex
	carts map[string]*Cart
}

// NewInMemoryStore creates a new in-memory cart store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{carts: make(map[string]*Cart)}
}

// Get returns the user's cart.
func (s *InMemoryStore) Get(ctx context.Context, userID string) (*Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.carts[userID]
	if !ok {
		return nil, ErrCartNotFound
	}
	copied := *c
	copied.Items = append([]Item(nil), c.Items...)
	return &copied, nil
}

// Save overwrites the user's cart.
func (s *InMemoryStore) Save(ctx context.Context, c *Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c.UpdatedAt = time.Now()
	copied := *c
	copied.Items = append([]Item(nil), c.Items...)
	s.carts[c.UserID] = &copied
	return nil
}

// Delete removes the user's cart.
func (s *InMemoryStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.carts, userID)
	return nil
}
