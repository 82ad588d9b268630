package payment

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresWebhookRepository implements WebhookRepository using
// PostgreSQL. The webhook_events table carries
//
//	UNIQUE (provider, event_id)
//
// so a racing duplicate delivery loses at insert time.
type PostgresWebhookRepository struct {
	db *sql.DB
}

// NewPostgresWebhookRepository creates a new PostgresWebhookRepository.
func NewPostgresWebhookRepository(db *sql.DB) *PostgresWebhookRepository {
	return &PostgresWebhookRepository{db: db}
}

// RecordEvent inserts the event, returning ErrEventAlreadyProcessed if a
// delivery with the same provider and event ID was recorded before.
func (r *PostgresWebhookRepository) RecordEvent(provider Provider, eventID, eventType string) error {
	_, err := r.db.Exec(`
		INSERT INTO webhook_events (provider, event_id, event_type, received_at)
		VALUES ($1, $2, $3, now())`,
		provider, eventID, eventType)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrEventAlreadyProcessed
		}
		return fmt.Errorf("record webhook event: %w", err)
	}
	return nil
}

// HasProcessed reports whether an event was recorded before.
func (r *PostgresWebhookRepository) HasProcessed(provider Provider, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM webhook_events WHERE provider = $1 AND event_id = $2
		)`, provider, eventID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return exists, nil
}
