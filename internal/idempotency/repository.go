// Package idempotency provides repository implementations for idempotency key storage.
package idempotency

import (
	"sync"
	"time"
)

// InMemoryRepository implements Repository with a map guarded by a
// RWMutex. Records are copied on the way in and out, so callers can
// never mutate the stored cache entry.
type InMemoryRepository struct {
	mu   sync.RWMutex
	keys map[string]*IdempotencyKey
}

// NewInMemoryRepository creates a new in-memory idempotency key repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		keys: make(map[string]*IdempotencyKey),
	}
}

// Get retrieves an idempotency key, or ErrKeyNotFound.
func (r *InMemoryRepository) Get(key string) (*IdempotencyKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.keys[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return cloneRecord(record), nil
}

// Store saves a new idempotency key. A key is written exactly once;
// storing a key that already exists returns ErrKeyExists so a racing
// duplicate request cannot overwrite the first response.
func (r *InMemoryRepository) Store(record *IdempotencyKey) error {
	if err := ValidateKey(record.Key); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[record.Key]; exists {
		return ErrKeyExists
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	r.keys[record.Key] = cloneRecord(record)
	return nil
}

// DeleteOlderThan drops keys created before now minus the given age and
// reports how many were removed. The cleanup job calls this on a timer;
// expired keys free their cached response bodies.
func (r *InMemoryRepository) DeleteOlderThan(age time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var deleted int64
	for key, record := range r.keys {
		if record.CreatedAt.Before(cutoff) {
			delete(r.keys, key)
			deleted++
		}
	}
	return deleted, nil
}

// cloneRecord returns an independent copy. Every field is a value
// except PaymentID, which needs its pointee duplicated.
func cloneRecord(record *IdempotencyKey) *IdempotencyKey {
	if record == nil {
		return nil
	}
	copied := *record
	if record.PaymentID != nil {
		paymentID := *record.PaymentID
		copied.PaymentID = &paymentID
	}
	return &copied
}
