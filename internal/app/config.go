package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Backends of the order counter and the rate limiter.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (CANDLE_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (CANDLE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TaxRate       string `default:"0.12" usage:"Flat tax rate applied to the subtotal" flag:"tax-rate"`
	Currency      string `default:"INR" usage:"Charge currency"`
	MinimumCharge int64  `default:"100" usage:"Smallest chargeable amount in minor units" flag:"minimum-charge"`
	Orders        OrdersConfig
	Redis         RedisConfig
	Razorpay      RazorpayConfig
	Breaker       BreakerConfig
	PubSub        PubSubConfig
	Auth          AuthConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Graceful      GracefulConfig
}

// OrdersConfig controls order number allocation.
type OrdersConfig struct {
	Counter string `default:"orders" usage:"Counter the order numbers are drawn from"`
	Start   int64  `default:"1000" usage:"Counter value before the first order"`
	Prefix  string `default:"#UA" usage:"Prefix of the human readable order reference"`
	Backend string `default:"postgres" usage:"Counter store: postgres or redis"`
}

// RedisConfig is required when a redis backend is selected.
type RedisConfig struct {
	URL      string `usage:"Redis URL, e.g. redis://localhost:6379/0 (CANDLE_REDIS_URL or REDIS_URL)"`
	Address  string `usage:"Redis host:port, used when URL is empty"`
	Password string `usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database"`
}

// RazorpayConfig holds the payment gateway credentials.
type RazorpayConfig struct {
	BaseURL   string        `default:"https://api.razorpay.com" usage:"Gateway API base URL"`
	KeyID     string        `usage:"Gateway key id (CANDLE_RAZORPAY_KEY_ID)"`
	KeySecret string        `usage:"Gateway key secret (CANDLE_RAZORPAY_KEY_SECRET)"`
	Timeout   time.Duration `default:"10s" usage:"Gateway request timeout"`
}

// BreakerConfig controls the gateway circuit breaker.
type BreakerConfig struct {
	ConsecutiveFailures uint32        `default:"5" usage:"Consecutive transient failures that open the breaker"`
	Interval            time.Duration `default:"0s" usage:"Period after which closed-state counts reset"`
	Timeout             time.Duration `default:"30s" usage:"How long the breaker stays open"`
}

// PubSubConfig selects the topic order events go to. Without a project the
// events are only logged.
type PubSubConfig struct {
	ProjectID string `usage:"GCP project of the order events topic"`
	Topic     string `default:"order-events" usage:"Topic receiving order.confirmed events"`
}

// AuthConfig configures customer tokens and service tokens.
type AuthConfig struct {
	JWTSecret          string        `usage:"HMAC secret of customer access tokens; empty disables identities" flag:"jwt-secret"`
	JWTIssuer          string        `usage:"Expected token issuer" flag:"jwt-issuer"`
	JWTTTL             time.Duration `default:"1h" usage:"Lifetime of minted tokens" flag:"jwt-ttl"`
	ServiceTokenPepper string        `usage:"HMAC pepper of service token hashes" flag:"service-token-pepper"`
	ServiceTokenHashes []string      `usage:"Hex HMAC hashes of accepted service tokens" flag:"service-token-hashes"`
}

// RateLimitConfig controls the per-client rate limiter.
type RateLimitConfig struct {
	Max     int           `default:"100" usage:"Max requests per window"`
	Window  time.Duration `default:"1m"  usage:"Rate limit window duration"`
	Backend string        `default:"memory" usage:"Limiter store: memory or redis"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CANDLE",
		Files:     []string{"config.yaml", "/etc/candle/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CANDLE_DATABASE_URL or DATABASE_URL")
	}
	if _, err := c.Tax(); err != nil {
		return err
	}
	if c.Razorpay.KeyID == "" || c.Razorpay.KeySecret == "" {
		return errors.New("razorpay key id and secret are required")
	}
	switch c.Orders.Backend {
	case BackendPostgres, BackendRedis:
	default:
		return errors.Errorf("unknown order counter backend %q", c.Orders.Backend)
	}
	switch c.RateLimit.Backend {
	case BackendMemory, BackendRedis:
	default:
		return errors.Errorf("unknown rate limit backend %q", c.RateLimit.Backend)
	}
	if c.needsRedis() && c.Redis.URL == "" && c.Redis.Address == "" {
		return errors.New("redis backend selected but no redis URL or address is set")
	}
	if len(c.Auth.ServiceTokenHashes) > 0 && c.Auth.ServiceTokenPepper == "" {
		return errors.New("service token hashes need a pepper")
	}
	return nil
}

// Tax parses the configured tax rate.
func (c *Config) Tax() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.TaxRate)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parse tax rate %q", c.TaxRate)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Decimal{}, errors.Errorf("tax rate %s out of range [0, 1)", rate)
	}
	return rate, nil
}

func (c *Config) needsRedis() bool {
	return c.Orders.Backend == BackendRedis || c.RateLimit.Backend == BackendRedis
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CANDLE_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
