package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-checkout/internal/domain/order"
)

// nextCounterSQL creates the counter at start+1 or increments it. The row
// lock taken by the upsert serialises concurrent callers.
const nextCounterSQL = `INSERT INTO counters (name, last_value) VALUES ($1, $2 + 1)
	ON CONFLICT (name) DO UPDATE SET last_value = counters.last_value + 1
	RETURNING last_value`

var _ order.CounterStore = (*CounterStore)(nil)

// CounterStore implements order.CounterStore backed by PostgreSQL.
type CounterStore struct {
	pool *pgxpool.Pool
}

// NewCounterStore returns a CounterStore that uses the given pool.
func NewCounterStore(pool *pgxpool.Pool) *CounterStore {
	return &CounterStore{pool: pool}
}

// Next increments the named counter and returns the new value.
func (s *CounterStore) Next(ctx context.Context, name string, start int64) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, nextCounterSQL, name, start).Scan(&n); err != nil {
		return 0, fmt.Errorf("incrementing counter %q: %w", name, err)
	}
	return n, nil
}

// Ensure creates the counter holding start unless it already exists. It
// reports whether a row was created.
func (s *CounterStore) Ensure(ctx context.Context, name string, start int64) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO counters (name, last_value) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, start)
	if err != nil {
		return false, fmt.Errorf("ensuring counter %q: %w", name, err)
	}
	return tag.RowsAffected() == 1, nil
}
