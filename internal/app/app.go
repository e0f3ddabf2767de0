// Package app wires the checkout API together.
package app

import (
	"context"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
	"github.com/xenking/candle-checkout/internal/events"
	"github.com/xenking/candle-checkout/internal/gateway"
	"github.com/xenking/candle-checkout/internal/gateway/razorpay"
	"github.com/xenking/candle-checkout/internal/handler"
	"github.com/xenking/candle-checkout/internal/storage/postgres"
	"github.com/xenking/candle-checkout/internal/storage/redis"
	"github.com/xenking/candle-checkout/pkg/health"
	"github.com/xenking/candle-checkout/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	var rdb *goredis.Client
	if cfg.needsRedis() {
		rdb, err = redis.NewClient(ctx, redis.Config{
			URL:      cfg.Redis.URL,
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = rdb.Close() }()
	}

	notifier, closeNotifier, err := newNotifier(ctx, cfg.PubSub, lg)
	if err != nil {
		return errors.Wrap(err, "create notifier")
	}
	defer closeNotifier()

	tax, err := cfg.Tax()
	if err != nil {
		return err
	}

	// Repositories.
	attempts := postgres.NewAttemptRepository(pool)
	discounts := postgres.NewDiscountRepository(pool)
	shipping := postgres.NewShippingRepository(pool)
	orders := postgres.NewOrderRepository(pool)

	allocator := order.NewAllocator(counterStore(cfg.Orders.Backend, pool, rdb), order.AllocatorConfig{
		Counter: cfg.Orders.Counter,
		Start:   cfg.Orders.Start,
		Prefix:  cfg.Orders.Prefix,
	})

	payments := gateway.NewBreaker(
		razorpay.New(razorpay.Config{
			BaseURL:   cfg.Razorpay.BaseURL,
			KeyID:     cfg.Razorpay.KeyID,
			KeySecret: cfg.Razorpay.KeySecret,
			Timeout:   cfg.Razorpay.Timeout,
		}),
		gateway.BreakerConfig{
			ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
			Interval:            cfg.Breaker.Interval,
			Timeout:             cfg.Breaker.Timeout,
		},
		lg.Named("gateway"),
	)

	lookup := discount.NewRepoLookup(discounts)
	svc := checkout.NewService(checkout.Dependencies{
		Attempts:  attempts,
		Discounts: lookup,
		Shipping:  shipping,
		Engine:    pricing.NewEngine(tax),
		Numbers:   allocator,
		Gateway:   payments,
		Orders:    orders,
		Notifier:  notifier,
	},
		checkout.WithCurrency(cfg.Currency),
		checkout.WithMinimumCharge(cfg.MinimumCharge),
		checkout.WithMeterProvider(m.MeterProvider()),
	)

	deps := handler.Dependencies{
		Checkout:  svc,
		Discounts: lookup,
		Shipping:  shipping,
		Orders:    orders,
	}
	if cfg.Auth.JWTSecret != "" {
		verifier, err := auth.NewVerifier(auth.Config{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.JWTIssuer,
			TTL:    cfg.Auth.JWTTTL,
		})
		if err != nil {
			return errors.Wrap(err, "create token verifier")
		}
		deps.Identities = verifier
	}
	if len(cfg.Auth.ServiceTokenHashes) > 0 {
		tokens, err := auth.NewServiceTokens([]byte(cfg.Auth.ServiceTokenPepper), cfg.Auth.ServiceTokenHashes)
		if err != nil {
			return errors.Wrap(err, "load service tokens")
		}
		deps.ServiceTokens = tokens
	}
	h := handler.New(deps)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	if rdb != nil {
		healthSvc.Add(health.Check{
			Name:  "redis",
			Probe: health.Readiness,
			Func:  health.RedisCheck(rdb),
			// Only the order counter cannot work without redis.
			Optional: cfg.Orders.Backend != BackendRedis,
		})
	}
	healthSvc.Add(health.Check{
		Name:             "payment-gateway",
		Probe:            health.Readiness,
		Func:             payments.Check,
		Optional:         true,
		FailureThreshold: 1,
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	limiter := rateLimiter(ctx, cfg.RateLimit, rdb)

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests(), httpmiddleware.Labeler())
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.Group(func(r chi.Router) {
		r.Use(httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:     cfg.RateLimit.Max,
			Window:  cfg.RateLimit.Window,
			Limiter: limiter,
		}))
		h.Mount(r)
	})

	var root http.Handler = httpmiddleware.Wrap(r,
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", handler.HeaderServiceToken, httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{"Location", httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
	)
	root = otelhttp.NewHandler(root, "candle-api",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           root,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

func counterStore(backend string, pool *pgxpool.Pool, rdb *goredis.Client) order.CounterStore {
	if backend == BackendRedis {
		return redis.NewCounterStore(rdb)
	}
	return postgres.NewCounterStore(pool)
}

func rateLimiter(ctx context.Context, cfg RateLimitConfig, rdb *goredis.Client) httpmiddleware.Limiter {
	if cfg.Backend == BackendRedis {
		return httpmiddleware.NewRedisLimiter(rdb, cfg.Max, cfg.Window)
	}
	l := httpmiddleware.NewMemoryLimiter(cfg.Max, cfg.Window)
	go l.RunSweeper(ctx)
	return l
}

// newNotifier publishes to Pub/Sub when a project is configured and only
// logs otherwise.
func newNotifier(ctx context.Context, cfg PubSubConfig, lg *zap.Logger) (checkout.Notifier, func(), error) {
	if cfg.ProjectID == "" {
		lg.Info("Pub/Sub project not set, order events are only logged")
		return events.LogNotifier{}, func() {}, nil
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create pubsub client")
	}
	publisher := client.Publisher(cfg.Topic)
	notifier := events.NewPubSubNotifier(publisher)
	closeFn := func() {
		publisher.Stop()
		notifier.Wait()
		if err := client.Close(); err != nil {
			lg.Warn("Close pubsub client", zap.Error(err))
		}
	}
	return notifier, closeFn, nil
}
