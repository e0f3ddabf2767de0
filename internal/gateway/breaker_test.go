package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
)

type mockGateway struct {
	err   error
	calls int
}

func (m *mockGateway) CreateIntent(_ context.Context, req checkout.IntentRequest) (*checkout.Intent, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &checkout.Intent{GatewayOrderID: "order_1", Amount: req.Amount}, nil
}

func (m *mockGateway) VerifyPayment(checkout.Confirmation) error {
	return m.err
}

type statusError struct{ temporary bool }

func (e statusError) Error() string   { return "status error" }
func (e statusError) Temporary() bool { return e.temporary }

func TestBreaker_OpensOnTransientFailures(t *testing.T) {
	next := &mockGateway{err: statusError{temporary: true}}
	b := NewBreaker(next, BreakerConfig{ConsecutiveFailures: 3, Timeout: time.Minute}, zap.NewNop())
	ctx := context.Background()

	for range 3 {
		_, err := b.CreateIntent(ctx, checkout.IntentRequest{Amount: 100})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.ErrorIs(t, b.Check(ctx), gobreaker.ErrOpenState)

	_, err := b.CreateIntent(ctx, checkout.IntentRequest{Amount: 100})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, next.calls)
}

func TestBreaker_IgnoresRejectedRequests(t *testing.T) {
	next := &mockGateway{err: statusError{temporary: false}}
	b := NewBreaker(next, BreakerConfig{ConsecutiveFailures: 2}, zap.NewNop())

	for range 5 {
		_, err := b.CreateIntent(context.Background(), checkout.IntentRequest{Amount: 100})
		require.Error(t, err)
	}

	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 5, next.calls)
}

func TestBreaker_PassesThrough(t *testing.T) {
	next := &mockGateway{}
	b := NewBreaker(next, BreakerConfig{}, zap.NewNop())

	intent, err := b.CreateIntent(context.Background(), checkout.IntentRequest{Amount: 142000})
	require.NoError(t, err)
	assert.Equal(t, int64(142000), intent.Amount)

	next.err = checkout.ErrSignatureMismatch
	assert.ErrorIs(t, b.VerifyPayment(checkout.Confirmation{}), checkout.ErrSignatureMismatch)
}

func TestTransient(t *testing.T) {
	assert.True(t, transient(errors.New("connection refused")))
	assert.True(t, transient(errors.Wrap(statusError{temporary: true}, "send")))
	assert.False(t, transient(statusError{temporary: false}))
	assert.False(t, transient(context.Canceled))
}
