package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Schema notes: the payments table carries
//
//	UNIQUE (provider, transaction_id)
//	CREATE UNIQUE INDEX payments_one_completed_per_order
//	    ON payments (order_id) WHERE status = 'completed';
//
// The partial unique index is the database-level enforcement of the
// at-most-one-completed-payment-per-order invariant; application checks
// are advisory.
const paymentColumns = `id, order_id, amount, currency, items, method, provider, status,
	transaction_id, superseded_by, failure_reason, payment_date, created_at, updated_at`

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

// Create inserts a new payment row.
func (r *PostgresRepository) Create(ctx context.Context, p *Payment) error {
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

	items, err := itemsValue(p.Items)
	if err != nil {
		return fmt.Errorf("encode payment items: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.OrderID, p.Amount, p.Currency, items, p.Method, p.Provider, p.Status,
		p.TransactionID, p.SupersededBy, nullIfEmpty(p.FailureReason),
		p.PaymentDate, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_provider_transaction_id_key") {
			return ErrDuplicateTransactionID
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByID retrieves a payment by ID.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id)
	return scanPayment(row)
}

// GetByTransactionID retrieves a payment by provider-scoped gateway
// reference.
func (r *PostgresRepository) GetByTransactionID(ctx context.Context, provider Provider, transactionID string) (*Payment, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE provider = $1 AND transaction_id = $2`, provider, transactionID)
	return scanPayment(row)
}

// ListByOrder returns every attempt for an order, oldest first.
func (r *PostgresRepository) ListByOrder(ctx context.Context, orderID string) ([]*Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE order_id = $1 ORDER BY created_at ASC`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// Update overwrites the mutable columns of a payment row.
func (r *PostgresRepository) Update(ctx context.Context, p *Payment) error {
	now := time.Now()
	p.UpdatedAt = &now

	res, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = $3, superseded_by = $4,
		    failure_reason = $5, payment_date = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Status, p.TransactionID, p.SupersededBy,
		nullIfEmpty(p.FailureReason), p.PaymentDate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// CompleteExclusive marks a payment completed inside a transaction. The
// partial unique index on completed payments turns a racing double
// completion into a unique violation, which maps to ErrOrderAlreadyPaid.
func (r *PostgresRepository) CompleteExclusive(ctx context.Context, paymentID, transactionID string, when time.Time) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.Warn("failed to rollback transaction", slog.String("error", err.Error()))
		}
	}()

	var status Status
	if err := tx.QueryRowContext(ctx,
		`SELECT status FROM payments WHERE id = $1 FOR UPDATE`, paymentID,
	).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("lock payment: %w", err)
	}
	if status == StatusCompleted {
		return nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE payments
		SET status = $2, transaction_id = $3, payment_date = $4, updated_at = now()
		WHERE id = $1`,
		paymentID, StatusCompleted, transactionID, when)
	if err != nil {
		if isUniqueViolation(err, "payments_one_completed_per_order") {
			return ErrOrderAlreadyPaid
		}
		return fmt.Errorf("complete payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err, "payments_one_completed_per_order") {
			return ErrOrderAlreadyPaid
		}
		return fmt.Errorf("commit completion: %w", err)
	}
	return nil
}

// ListStalePending returns pending payments created before cutoff.
func (r *PostgresRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*Payment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3`, StatusPending, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list stale payments: %w", err)
	}
	defer rows.Close()
	return collectPayments(rows)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(s scanner) (*Payment, error) {
	var p Payment
	var failureReason sql.NullString
	var itemsRaw []byte
	if err := s.Scan(
		&p.ID, &p.OrderID, &p.Amount, &p.Currency, &itemsRaw, &p.Method, &p.Provider,
		&p.Status, &p.TransactionID, &p.SupersededBy, &failureReason,
		&p.PaymentDate, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	p.FailureReason = failureReason.String
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &p.Items); err != nil {
			return nil, fmt.Errorf("decode payment items: %w", err)
		}
	}
	return &p, nil
}

func collectPayments(rows *sql.Rows) ([]*Payment, error) {
	var out []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// itemsValue encodes line items for the jsonb items column. An empty
// basket stores as NULL.
func itemsValue(items []LineItem) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return json.Marshal(items)
}

// isUniqueViolation reports whether err is a Postgres unique violation
// on the named constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23505" && pqErr.Constraint == constraint
}
