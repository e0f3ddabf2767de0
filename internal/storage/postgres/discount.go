package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-checkout/internal/domain/discount"
)

const (
	findDiscountSQL = `SELECT code, name, kind, value, active
		FROM discount_codes WHERE code = UPPER($1)`

	upsertDiscountSQL = `INSERT INTO discount_codes (code, name, kind, value, active)
		VALUES (UPPER($1), $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, kind = EXCLUDED.kind, value = EXCLUDED.value, active = EXCLUDED.active`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// FindByCode returns the code whether or not it is active.
// Returns discount.ErrNotFound when no row matches.
func (r *DiscountRepository) FindByCode(ctx context.Context, code string) (*discount.Code, error) {
	rows, err := r.pool.Query(ctx, findDiscountSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanDiscount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, discount.ErrNotFound
		}
		return nil, fmt.Errorf("finding discount %q: %w", code, err)
	}
	return &c, nil
}

// Upsert writes codes in one batch, replacing existing rows with the same
// code.
func (r *DiscountRepository) Upsert(ctx context.Context, codes []discount.Code) error {
	if len(codes) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, c := range codes {
		b.Queue(upsertDiscountSQL, c.Code, c.Name, string(c.Kind), c.Value, c.Active)
	}

	br := r.pool.SendBatch(ctx, b)
	defer func() { _ = br.Close() }()

	for _, c := range codes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting discount %q: %w", c.Code, err)
		}
	}
	return nil
}

func scanDiscount(row pgx.CollectableRow) (discount.Code, error) {
	var (
		c    discount.Code
		kind string
	)
	err := row.Scan(&c.Code, &c.Name, &kind, &c.Value, &c.Active)
	c.Kind = discount.Kind(kind)
	return c, err
}
