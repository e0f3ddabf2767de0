package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

const (
	attemptColumns = `id, status, customer, address, agreement, lines, shipping,
		discount_code, discount, discount_issue, breakdown, order_number, order_reference,
		payment, failure_reason, reopened_from, version, created_at, updated_at`

	insertAttemptSQL = `INSERT INTO checkout_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, 1, $17, $18)`

	getAttemptSQL = `SELECT ` + attemptColumns + ` FROM checkout_attempts WHERE id = $1`

	updateAttemptSQL = `UPDATE checkout_attempts SET
		status = $2, customer = $3, address = $4, agreement = $5, lines = $6, shipping = $7,
		discount_code = $8, discount = $9, discount_issue = $10, breakdown = $11,
		order_number = $12, order_reference = $13, payment = $14, failure_reason = $15,
		version = version + 1, updated_at = $16
		WHERE id = $1 AND version = $17`

	attemptExistsSQL = `SELECT EXISTS (SELECT 1 FROM checkout_attempts WHERE id = $1)`
)

var _ checkout.Repository = (*AttemptRepository)(nil)

// AttemptRepository implements checkout.Repository backed by PostgreSQL.
// Structured fields are stored in JSONB columns.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository returns an AttemptRepository that uses the given pool.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt at version 1.
func (r *AttemptRepository) Create(ctx context.Context, a *checkout.Attempt) error {
	_, err := r.pool.Exec(ctx, insertAttemptSQL,
		a.ID, string(a.Status), a.Customer, a.Address, a.Agreement, a.Lines, string(a.Shipping),
		a.DiscountCode, a.Discount, discountIssue(a), a.Breakdown, nullableNumber(a.OrderNumber),
		a.OrderReference, a.Payment, a.FailureReason, a.ReopenedFrom, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating checkout attempt %s: %w", a.ID, err)
	}
	a.Version = 1
	return nil
}

// Get loads an attempt. Returns checkout.ErrNotFound when no row matches.
func (r *AttemptRepository) Get(ctx context.Context, id uuid.UUID) (*checkout.Attempt, error) {
	rows, err := r.pool.Query(ctx, getAttemptSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting checkout attempt %s: %w", id, err)
	}

	a, err := pgx.CollectExactlyOneRow(rows, scanAttempt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrNotFound
		}
		return nil, fmt.Errorf("getting checkout attempt %s: %w", id, err)
	}
	return &a, nil
}

// Update writes a when its version matches the stored row and bumps the
// version. A stale version yields checkout.ErrConflict.
func (r *AttemptRepository) Update(ctx context.Context, a *checkout.Attempt) error {
	tag, err := r.pool.Exec(ctx, updateAttemptSQL,
		a.ID, string(a.Status), a.Customer, a.Address, a.Agreement, a.Lines, string(a.Shipping),
		a.DiscountCode, a.Discount, discountIssue(a), a.Breakdown, nullableNumber(a.OrderNumber),
		a.OrderReference, a.Payment, a.FailureReason, a.UpdatedAt, a.Version,
	)
	if err != nil {
		return fmt.Errorf("updating checkout attempt %s: %w", a.ID, err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, attemptExistsSQL, a.ID).Scan(&exists); err != nil {
			return fmt.Errorf("updating checkout attempt %s: %w", a.ID, err)
		}
		if !exists {
			return checkout.ErrNotFound
		}
		return checkout.ErrConflict
	}

	a.Version++
	return nil
}

func scanAttempt(row pgx.CollectableRow) (checkout.Attempt, error) {
	var (
		a           checkout.Attempt
		status      string
		shipping    string
		issue       string
		orderNumber *int64
	)
	err := row.Scan(
		&a.ID, &status, &a.Customer, &a.Address, &a.Agreement, &a.Lines, &shipping,
		&a.DiscountCode, &a.Discount, &issue, &a.Breakdown, &orderNumber, &a.OrderReference,
		&a.Payment, &a.FailureReason, &a.ReopenedFrom, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	a.Status = checkout.Status(status)
	a.Shipping = pricing.ShippingKey(shipping)
	a.DiscountErr = checkout.DiscountErrorFromIssue(a.DiscountCode, issue)
	if orderNumber != nil {
		a.OrderNumber = *orderNumber
	}
	return a, err
}

func discountIssue(a *checkout.Attempt) string {
	if a.DiscountErr == nil {
		return ""
	}
	return a.DiscountErr.Issue()
}

func nullableNumber(n int64) *int64 {
	if n == 0 {
		return nil
	}
	return &n
}
