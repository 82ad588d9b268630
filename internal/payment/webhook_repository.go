package payment

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrEventAlreadyProcessed is returned when attempting to record a
// webhook event that was already processed. Providers redeliver on
// timeout, so handlers treat this as a successful no-op.
var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEvent records one processed callback for idempotency tracking.
type WebhookEvent struct {
	ID          string
	Provider    Provider
	EventID     string
	EventType   string
	ProcessedAt time.Time
}

// WebhookRepository tracks processed webhook events so redeliveries
// become no-ops.
type WebhookRepository interface {
	// RecordEvent records a webhook event as processed. Returns
	// ErrEventAlreadyProcessed if the (provider, event ID) pair was
	// already recorded.
	RecordEvent(provider Provider, eventID, eventType string) error

	// HasProcessed checks whether an event has already been processed.
	HasProcessed(provider Provider, eventID string) (bool, error)
}

// InMemoryWebhookRepository implements WebhookRepository with in-memory
// storage.
type InMemoryWebhookRepository struct {
	mu     sync.RWMutex
	events map[string]*WebhookEvent
}

// NewInMemoryWebhookRepository creates a new in-memory webhook repository.
func NewInMemoryWebhookRepository() *InMemoryWebhookRepository {
	return &InMemoryWebhookRepository{events: make(map[string]*WebhookEvent)}
}

func webhookKey(provider Provider, eventID string) string {
	return string(provider) + "/" + eventID
}

// RecordEvent records a webhook event as processed.
func (r *InMemoryWebhookRepository) RecordEvent(provider Provider, eventID, eventType string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := webhookKey(provider, eventID)
	if _, exists := r.events[key]; exists {
		return ErrEventAlreadyProcessed
	}
	r.events[key] = &WebhookEvent{
		ID:          uuid.New().String(),
		Provider:    provider,
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	return nil
}

// HasProcessed checks whether an event has already been processed.
func (r *InMemoryWebhookRepository) HasProcessed(provider Provider, eventID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.events[webhookKey(provider, eventID)]
	return exists, nil
}
