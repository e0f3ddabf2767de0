package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

const (
	listShippingSQL = `SELECT key, name, base_cost, free_threshold
		FROM shipping_options ORDER BY position, key`

	upsertShippingSQL = `INSERT INTO shipping_options (key, name, base_cost, free_threshold, position)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET name = EXCLUDED.name, base_cost = EXCLUDED.base_cost,
			free_threshold = EXCLUDED.free_threshold, position = EXCLUDED.position`
)

var _ pricing.ShippingRepository = (*ShippingRepository)(nil)

// ShippingRepository implements pricing.ShippingRepository backed by
// PostgreSQL.
type ShippingRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRepository returns a ShippingRepository that uses the given pool.
func NewShippingRepository(pool *pgxpool.Pool) *ShippingRepository {
	return &ShippingRepository{pool: pool}
}

// List returns the offered tiers in display order.
func (r *ShippingRepository) List(ctx context.Context) ([]pricing.ShippingOption, error) {
	rows, err := r.pool.Query(ctx, listShippingSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shipping options: %w", err)
	}

	options, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (pricing.ShippingOption, error) {
		var (
			o   pricing.ShippingOption
			key string
		)
		err := row.Scan(&key, &o.Name, &o.BaseCost, &o.FreeThreshold)
		o.Key = pricing.ShippingKey(key)
		return o, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing shipping options: %w", err)
	}
	return options, nil
}

// Upsert replaces the given tiers, keeping their order as display position.
func (r *ShippingRepository) Upsert(ctx context.Context, options []pricing.ShippingOption) error {
	b := &pgx.Batch{}
	for i, o := range options {
		b.Queue(upsertShippingSQL, string(o.Key), o.Name, o.BaseCost, o.FreeThreshold, i)
	}

	br := r.pool.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for _, o := range options {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting shipping option %q: %w", o.Key, err)
		}
	}
	return nil
}
