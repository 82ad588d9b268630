package wishlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresRepository implements Repository using PostgreSQL. The
// wishlists table has a composite primary key (user_id, product_id).
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Add puts a product on the user's wishlist.
func (r *PostgresRepository) Add(ctx context.Context, userID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wishlists (user_id, product_id, added_at)
		VALUES ($1, $2, now())`,
		userID, productID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrAlreadyListed
		}
		return fmt.Errorf("add wishlist entry: %w", err)
	}
	return nil
}

// Remove takes a product off the user's wishlist.
func (r *PostgresRepository) Remove(ctx context.Context, userID, productID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM wishlists WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove wishlist entry: %w", err)
	}
	if n == 0 {
		return ErrNotListed
	}
	return nil
}

// List returns the user's wishlist, newest first.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id, product_id, added_at FROM wishlists
		WHERE user_id = $1 ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	var out []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.UserID, &e.ProductID, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("scan wishlist entry: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wishlist: %w", err)
	}
	return out, nil
}

// Contains reports whether the product is on the user's wishlist.
func (r *PostgresRepository) Contains(ctx context.Context, userID, productID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM wishlists WHERE user_id = $1 AND product_id = $2
		)`, userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}
