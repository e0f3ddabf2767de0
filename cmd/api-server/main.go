// Command api-server serves the checkout and pricing API.
package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	candle "github.com/xenking/candle-checkout/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := candle.LoadConfig()
		if err != nil {
			return errors.Wrap(err, "config")
		}
		lg.Info("Checkout configuration",
			zap.String("currency", cfg.Currency),
			zap.String("tax_rate", cfg.TaxRate),
			zap.String("order_counter", cfg.Orders.Backend+"/"+cfg.Orders.Counter),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend),
			zap.Bool("identities", cfg.Auth.JWTSecret != ""),
			zap.Bool("order_events", cfg.PubSub.ProjectID != ""),
		)
		return candle.Run(ctx, lg, m, cfg)
	})
}
