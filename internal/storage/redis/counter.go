// Package redis implements order number counters on Redis.
package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/xenking/candle-checkout/internal/domain/order"
)

const (
	keyNamespace  = "candle"
	counterPrefix = "counter"
)

// Config holds the Redis connection settings.
type Config struct {
	URL      string
	Address  string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	var opts *redis.Options
	switch {
	case cfg.URL != "":
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	case cfg.Address != "":
		opts = &redis.Options{Addr: cfg.Address, Password: cfg.Password, DB: cfg.DB}
	default:
		return nil, fmt.Errorf("redis url or address is required")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

var _ order.CounterStore = (*CounterStore)(nil)

// CounterStore implements order.CounterStore with INCR. The counter is
// seeded with SETNX in the same transaction, so the first caller gets
// start+1 and every later caller a strictly larger value.
type CounterStore struct {
	client redis.Cmdable
}

// NewCounterStore returns a CounterStore on the given client.
func NewCounterStore(client redis.Cmdable) *CounterStore {
	return &CounterStore{client: client}
}

// Next increments the named counter and returns the new value.
func (s *CounterStore) Next(ctx context.Context, name string, start int64) (int64, error) {
	key := CounterKey(name)

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, start, 0)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("incrementing counter %q: %w", name, err)
	}
	return incr.Val(), nil
}

// CounterKey returns the namespaced key of a counter.
func CounterKey(name string) string {
	return strings.Join([]string{keyNamespace, counterPrefix, name}, ":")
}
