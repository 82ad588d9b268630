package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const productColumns = `id, category_id, sku, name, description, price, currency,
	stock, active, created_at, updated_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{db: db, logger: logger}
}

// CreateProduct inserts a new product row.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *Product) error {
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

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, nullIfEmpty(p.CategoryID), p.SKU, p.Name, nullIfEmpty(p.Description),
		p.Price, p.Currency, p.Stock, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (r *PostgresRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// ListProducts returns active products, optionally filtered by category.
func (r *PostgresRepository) ListProducts(ctx context.Context, categoryID string) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE active = true`
	args := []any{}
	if categoryID != "" {
		query += ` AND category_id = $1`
		args = append(args, categoryID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	return out, nil
}

// UpdateProduct overwrites the mutable columns of a product row.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, p *Product) error {
	now := time.Now()
	p.UpdatedAt = &now

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET category_id = $2, sku = $3, name = $4, description = $5,
		    price = $6, currency = $7, stock = $8, active = $9, updated_at = $10
		WHERE id = $1`,
		p.ID, nullIfEmpty(p.CategoryID), p.SKU, p.Name, nullIfEmpty(p.Description),
		p.Price, p.Currency, p.Stock, p.Active, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// ReserveStock atomically decrements stock for a purchase. The guard in
// the WHERE clause makes overselling impossible even under concurrency.
func (r *PostgresRepository) ReserveStock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return ErrInsufficientStock
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reserve stock: %w", err)
	}
	if n == 0 {
		// Distinguish missing product from insufficient stock
		var exists bool
		if err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("reserve stock: %w", err)
		}
		if !exists {
			return ErrProductNotFound
		}
		return ErrInsufficientStock
	}
	return nil
}

// ReleaseStock returns previously reserved stock.
func (r *PostgresRepository) ReleaseStock(ctx context.Context, productID string, quantity int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products SET stock = stock + $2, updated_at = now() WHERE id = $1`,
		productID, quantity)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// CreateCategory inserts a new category row.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *Category) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, parent_id, name, slug)
		VALUES ($1, $2, $3, $4)`,
		c.ID, nullIfEmpty(c.ParentID), c.Name, c.Slug)
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetCategory retrieves a category by ID.
func (r *PostgresRepository) GetCategory(ctx context.Context, id string) (*Category, error) {
	var c Category
	var parentID sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, parent_id, name, slug FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &parentID, &c.Name, &c.Slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	c.ParentID = parentID.String
	return &c, nil
}

// ListCategories returns all categories sorted by name.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]*Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, parent_id, name, slug FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []*Category
	for rows.Next() {
		var c Category
		var parentID sql.NullString
		if err := rows.Scan(&c.ID, &parentID, &c.Name, &c.Slug); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentID = parentID.String
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	var p Product
	var categoryID, description sql.NullString
	if err := s.Scan(
		&p.ID, &categoryID, &p.SKU, &p.Name, &description, &p.Price,
		&p.Currency, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}
	p.CategoryID = categoryID.String
	p.Description = description.String
	return &p, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
