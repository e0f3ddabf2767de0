//go:build integration

package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

func setupPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("candle"),
		tcpostgres.WithUsername("candle"),
		tcpostgres.WithPassword("candle"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	return pool
}

func TestStorage(t *testing.T) {
	pool := setupPool(t)

	t.Run("discounts", func(t *testing.T) {
		ctx := context.Background()
		repo := NewDiscountRepository(pool)
		require.NoError(t, repo.Upsert(ctx, []discount.Code{
			{Code: "welcome10", Name: "Welcome", Kind: discount.KindPercentage, Value: decimal.NewFromInt(10), Active: true},
			{Code: "OLD50", Kind: discount.KindFlat, Value: decimal.NewFromInt(50)},
		}))

		c, err := repo.FindByCode(ctx, "Welcome10")
		require.NoError(t, err)
		assert.Equal(t, "WELCOME10", c.Code)
		assert.Equal(t, discount.KindPercentage, c.Kind)
		assert.True(t, c.Value.Equal(decimal.NewFromInt(10)))

		old, err := repo.FindByCode(ctx, "OLD50")
		require.NoError(t, err)
		assert.False(t, old.Active)

		_, err = repo.FindByCode(ctx, "MISSING")
		assert.ErrorIs(t, err, discount.ErrNotFound)
	})

	t.Run("shipping", func(t *testing.T) {
		ctx := context.Background()
		repo := NewShippingRepository(pool)
		defaults := pricing.DefaultShippingOptions()
		require.NoError(t, repo.Upsert(ctx, []pricing.ShippingOption{
			defaults[pricing.ShippingStandard],
			defaults[pricing.ShippingExpress],
		}))

		list, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, pricing.ShippingStandard, list[0].Key)
		assert.True(t, list[0].FreeThreshold.Valid)
		assert.False(t, list[1].FreeThreshold.Valid)
	})

	t.Run("counter is unique under contention", func(t *testing.T) {
		ctx := context.Background()
		store := NewCounterStore(pool)

		const workers = 32
		var (
			mu   sync.Mutex
			seen = make(map[int64]bool)
		)
		g, gctx := errgroup.WithContext(ctx)
		for range workers {
			g.Go(func() error {
				n, err := store.Next(gctx, "orders-test", 1000)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[n] = true
				mu.Unlock()
				return nil
			})
		}
		require.NoError(t, g.Wait())

		assert.Len(t, seen, workers)
		for n := int64(1001); n <= 1000+workers; n++ {
			assert.True(t, seen[n], "missing %d", n)
		}
	})

	t.Run("ensure keeps an existing counter", func(t *testing.T) {
		ctx := context.Background()
		store := NewCounterStore(pool)

		created, err := store.Ensure(ctx, "seeded", 5000)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = store.Ensure(ctx, "seeded", 1)
		require.NoError(t, err)
		assert.False(t, created)

		n, err := store.Next(ctx, "seeded", 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(5001), n)
	})

	t.Run("attempt lifecycle", func(t *testing.T) {
		ctx := context.Background()
		attempts := NewAttemptRepository(pool)
		orders := NewOrderRepository(pool)
		now := time.Now().UTC().Truncate(time.Microsecond)

		a := &checkout.Attempt{
			ID:     uuid.New(),
			Status: checkout.StatusDraft,
			Inputs: checkout.Inputs{
				Customer: order.Customer{Name: "Asha Rao", Email: "Asha@Example.com", Phone: "9876543210"},
				Address:  order.Address{Line1: "12 Lake Road", City: "Pune", State: "MH", PostalCode: "411001", Country: "IN"},
				Lines: []pricing.CartLine{
					{ProductID: "lavender-jar", UnitPrice: decimal.NewFromInt(500), Quantity: 2},
				},
				Shipping:     pricing.ShippingStandard,
				DiscountCode: "OLD50",
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, attempts.Create(ctx, a))
		assert.Equal(t, 1, a.Version)

		stale := *a
		a.Status = checkout.StatusPricingComputed
		a.DiscountErr = &checkout.DiscountError{Code: "OLD50", Err: discount.ErrInactive}
		a.Breakdown = pricing.Breakdown{Subtotal: decimal.NewFromInt(1000), Total: decimal.NewFromInt(1420)}
		require.NoError(t, attempts.Update(ctx, a))
		assert.Equal(t, 2, a.Version)

		stale.Status = checkout.StatusCancelled
		assert.ErrorIs(t, attempts.Update(ctx, &stale), checkout.ErrConflict)

		got, err := attempts.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, checkout.StatusPricingComputed, got.Status)
		assert.Equal(t, "inactive", got.DiscountErr.Issue())
		assert.True(t, got.Breakdown.Total.Equal(decimal.NewFromInt(1420)))
		assert.Equal(t, a.Customer, got.Customer)
		assert.Zero(t, got.OrderNumber)

		_, err = attempts.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, checkout.ErrNotFound)

		o := &order.Order{
			Number:    1001,
			Reference: "#UA1001",
			AttemptID: a.ID,
			Customer:  a.Customer,
			Address:   a.Address,
			Lines:     a.Lines,
			Breakdown: a.Breakdown,
			Shipping:  a.Shipping,
			Payment:   order.Payment{GatewayOrderID: "order_1", PaymentID: "pay_1", Amount: 142000, Currency: "INR"},
			CreatedAt: now,
		}
		require.NoError(t, orders.Create(ctx, o))
		assert.ErrorIs(t, orders.Create(ctx, o), order.ErrAlreadyExists)

		list, err := orders.ListByEmail(ctx, "asha@example.com")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "#UA1001", list[0].Reference)

		require.NoError(t, orders.AttachInvoice(ctx, 1001, "https://invoices.example.com/1001.pdf"))
		require.NoError(t, orders.AttachInvoice(ctx, 1001, "https://invoices.example.com/1001.pdf"))
		assert.ErrorIs(t, orders.AttachInvoice(ctx, 1001, "https://other"), order.ErrInvoiceAttached)
		assert.ErrorIs(t, orders.AttachInvoice(ctx, 42, "https://other"), order.ErrNotFound)

		stored, err := orders.Get(ctx, 1001)
		require.NoError(t, err)
		assert.Equal(t, "https://invoices.example.com/1001.pdf", stored.InvoiceURL)
		assert.Equal(t, "pay_1", stored.Payment.PaymentID)
	})
}
