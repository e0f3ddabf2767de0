package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
	"github.com/xenking/candle-checkout/internal/storage/postgres"
)

type seedFile struct {
	Discounts []discountJSON `json:"discounts"`
	Shipping  []shippingJSON `json:"shipping"`
	Counters  []counterJSON  `json:"counters"`
}

type discountJSON struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Kind   string          `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Active bool            `json:"active"`
}

type shippingJSON struct {
	Key           string              `json:"key"`
	Name          string              `json:"name"`
	BaseCost      decimal.Decimal     `json:"baseCost"`
	FreeThreshold decimal.NullDecimal `json:"freeThreshold"`
}

type counterJSON struct {
	Name  string `json:"name"`
	Start int64  `json:"start"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/storefront.json", "path to the storefront seed file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	seed, err := readSeed(seedPath)
	if err != nil {
		return err
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.Migrate(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	codes, err := seed.discountCodes()
	if err != nil {
		return err
	}
	if err := postgres.NewDiscountRepository(pool).Upsert(ctx, codes); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	slog.Info("upserted discount codes", slog.Int("count", len(codes)))

	options := seed.shippingOptions()
	if err := postgres.NewShippingRepository(pool).Upsert(ctx, options); err != nil {
		return errors.Wrap(err, "seed shipping options")
	}
	slog.Info("upserted shipping options", slog.Int("count", len(options)))

	counters := postgres.NewCounterStore(pool)
	for _, c := range seed.Counters {
		created, err := counters.Ensure(ctx, c.Name, c.Start)
		if err != nil {
			return errors.Wrapf(err, "seed counter %s", c.Name)
		}
		slog.Info("counter", slog.String("name", c.Name), slog.Int64("start", c.Start), slog.Bool("created", created))
	}

	return nil
}

func readSeed(path string) (*seedFile, error) {
	slog.Info("reading seed file", slog.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &seed, nil
}

func (s *seedFile) discountCodes() ([]discount.Code, error) {
	out := make([]discount.Code, 0, len(s.Discounts))
	for _, d := range s.Discounts {
		kind, err := discount.ParseKind(d.Kind)
		if err != nil {
			return nil, errors.Wrapf(err, "discount %s", d.Code)
		}
		out = append(out, discount.Code{
			Code:   discount.Normalize(d.Code),
			Name:   d.Name,
			Kind:   kind,
			Value:  d.Value,
			Active: d.Active,
		})
	}
	return out, nil
}

func (s *seedFile) shippingOptions() []pricing.ShippingOption {
	out := make([]pricing.ShippingOption, 0, len(s.Shipping))
	for _, o := range s.Shipping {
		out = append(out, pricing.ShippingOption{
			Key:           pricing.ShippingKey(o.Key),
			Name:          o.Name,
			BaseCost:      o.BaseCost,
			FreeThreshold: o.FreeThreshold,
		})
	}
	return out
}
