// Package gateway wraps payment gateways with a circuit breaker.
package gateway

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
)

// BreakerConfig tunes when the breaker opens and how it recovers.
type BreakerConfig struct {
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// MaxRequests is the number of probes let through while half-open.
	MaxRequests uint32
	// Interval clears the failure counts while closed. Zero never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open.
	Timeout time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.ConsecutiveFailures == 0 {
		c.ConsecutiveFailures = 5
	}
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

var _ checkout.Gateway = (*Breaker)(nil)

// Breaker stops calling the gateway after repeated transient failures.
// Rejected requests and signature checks never count against it.
type Breaker struct {
	next checkout.Gateway
	cb   *gobreaker.CircuitBreaker[*checkout.Intent]
}

// NewBreaker wraps next.
func NewBreaker(next checkout.Gateway, cfg BreakerConfig, lg *zap.Logger) *Breaker {
	cfg = cfg.withDefaults()
	cb := gobreaker.NewCircuitBreaker[*checkout.Intent](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !transient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			lg.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.Stringer("from", from),
				zap.Stringer("to", to),
			)
		},
	})
	return &Breaker{next: next, cb: cb}
}

// CreateIntent calls the gateway unless the breaker is open.
func (b *Breaker) CreateIntent(ctx context.Context, req checkout.IntentRequest) (*checkout.Intent, error) {
	return b.cb.Execute(func() (*checkout.Intent, error) {
		return b.next.CreateIntent(ctx, req)
	})
}

// VerifyPayment is a local check and bypasses the breaker.
func (b *Breaker) VerifyPayment(c checkout.Confirmation) error {
	return b.next.VerifyPayment(c)
}

// State returns the breaker state for health reporting.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Check fails while the breaker is open. It backs an optional readiness
// check.
func (b *Breaker) Check(context.Context) error {
	if b.cb.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	return nil
}

// transient reports whether err says the gateway itself is unwell.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return true
}
