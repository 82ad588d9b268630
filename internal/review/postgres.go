package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const reviewColumns = `id, product_id, user_id, rating, title, content, status,
	created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL. The reviews
// table carries UNIQUE (product_id, user_id) so a user can review a
// product at most once.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new review row.
func (r *PostgresRepository) Create(ctx context.Context, rev *Review) error {
	if err := rev.Validate(); err != nil {
		return err
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

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reviews (`+reviewColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rev.ID, rev.ProductID, rev.UserID, rev.Rating,
		sql.NullString{String: rev.Title, Valid: rev.Title != ""},
		rev.Content, rev.Status, rev.CreatedAt, rev.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReview
		}
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

// GetByID retrieves a review by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Review, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	return scanReview(row)
}

// ListByProduct returns approved reviews for a product, newest first.
func (r *PostgresRepository) ListByProduct(ctx context.Context, productID string) ([]*Review, error) {
	return r.list(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE product_id = $1 AND status = 'approved'
		ORDER BY created_at DESC`, productID)
}

// ListPending returns reviews awaiting moderation, oldest first.
func (r *PostgresRepository) ListPending(ctx context.Context) ([]*Review, error) {
	return r.list(ctx, `
		SELECT `+reviewColumns+` FROM reviews
		WHERE status = 'pending'
		ORDER BY created_at ASC`)
}

// SetStatus moves a review through moderation.
func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE reviews SET status = $2, updated_at = now() WHERE id = $1`,
		id, status)
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update review status: %w", err)
	}
	if n == 0 {
		return ErrReviewNotFound
	}
	return nil
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*Review, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(s scanner) (*Review, error) {
	var rev Review
	var title sql.NullString
	if err := s.Scan(
		&rev.ID, &rev.ProductID, &rev.UserID, &rev.Rating, &title,
		&rev.Content, &rev.Status, &rev.CreatedAt, &rev.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("scan review: %w", err)
	}
	rev.Title = title.String
	return &rev, nil
}
