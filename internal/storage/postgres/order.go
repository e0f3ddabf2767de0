package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

const (
	orderColumns = `number, reference, attempt_id, customer, address, lines,
		subtotal, tax, discount_amount, shipping_cost, total,
		discount_code, shipping, payment, invoice_url, created_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE number = $1`

	listOrdersByEmailSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE LOWER(email) = $1 ORDER BY created_at DESC`

	attachInvoiceSQL = `UPDATE orders SET invoice_url = $2
		WHERE number = $1 AND (invoice_url = '' OR invoice_url = $2)`

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE number = $1)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a paid order. A second write for the same number or
// attempt returns order.ErrAlreadyExists.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	b := o.Breakdown.Rounded()
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.Number, o.Reference, o.AttemptID, o.Customer, o.Address, o.Lines,
		b.Subtotal, b.Tax, b.DiscountAmount, b.ShippingCost, b.Total,
		o.DiscountCode, string(o.Shipping), o.Payment, o.InvoiceURL, o.CreatedAt,
		o.Customer.Email,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return order.ErrAlreadyExists
		}
		return fmt.Errorf("creating order %s: %w", o.Reference, err)
	}
	return nil
}

// Get returns the order with the given number or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, number int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, number)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", number, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", number, err)
	}
	return &o, nil
}

// ListByEmail returns the customer's orders, newest first.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByEmailSQL, strings.ToLower(email))
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return orders, nil
}

// AttachInvoice records the invoice URL. Re-attaching the same URL is a
// no-op; a different URL returns order.ErrInvoiceAttached.
func (r *OrderRepository) AttachInvoice(ctx context.Context, number int64, url string) error {
	tag, err := r.pool.Exec(ctx, attachInvoiceSQL, number, url)
	if err != nil {
		return fmt.Errorf("attaching invoice to order %d: %w", number, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, number).Scan(&exists); err != nil {
		return fmt.Errorf("attaching invoice to order %d: %w", number, err)
	}
	if !exists {
		return order.ErrNotFound
	}
	return order.ErrInvoiceAttached
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o        order.Order
		shipping string
	)
	err := row.Scan(
		&o.Number, &o.Reference, &o.AttemptID, &o.Customer, &o.Address, &o.Lines,
		&o.Breakdown.Subtotal, &o.Breakdown.Tax, &o.Breakdown.DiscountAmount,
		&o.Breakdown.ShippingCost, &o.Breakdown.Total,
		&o.DiscountCode, &shipping, &o.Payment, &o.InvoiceURL, &o.CreatedAt,
	)
	o.Shipping = pricing.ShippingKey(shipping)
	return o, err
}
