package order

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultCounter is the counter name order numbers are drawn from.
	DefaultCounter = "orders"
	// DefaultStart is the value a fresh counter holds; the first order is
	// DefaultStart+1.
	DefaultStart int64 = 1000
	// DefaultPrefix is prepended to the number in the human readable form.
	DefaultPrefix = "#UA"
)

// ErrInvalidReference is returned when a reference cannot be parsed.
var ErrInvalidReference = errors.New("invalid order reference")

// CounterStore is a shared sequence. Next must be an atomic
// increment-and-read in the backing store: two concurrent callers never see
// the same value.
type CounterStore interface {
	// Next increments the named counter and returns the new value. A counter
	// that does not exist yet is created holding start before incrementing.
	Next(ctx context.Context, name string, start int64) (int64, error)
}

// AllocatorConfig names the counter and the reference format.
type AllocatorConfig struct {
	Counter string
	Start   int64
	Prefix  string
}

// Allocation is a reserved order number.
type Allocation struct {
	Number    int64
	Reference string
}

// Allocator hands out order numbers from a CounterStore.
type Allocator struct {
	store CounterStore
	cfg   AllocatorConfig
}

// NewAllocator creates an Allocator. Zero config fields take the defaults.
func NewAllocator(store CounterStore, cfg AllocatorConfig) *Allocator {
	if cfg.Counter == "" {
		cfg.Counter = DefaultCounter
	}
	if cfg.Start <= 0 {
		cfg.Start = DefaultStart
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	return &Allocator{store: store, cfg: cfg}
}

// Prefix reports the reference prefix.
func (a *Allocator) Prefix() string {
	return a.cfg.Prefix
}

// Allocate reserves the next order number.
func (a *Allocator) Allocate(ctx context.Context) (Allocation, error) {
	n, err := a.store.Next(ctx, a.cfg.Counter, a.cfg.Start)
	if err != nil {
		return Allocation{}, errors.Wrapf(err, "increment counter %q", a.cfg.Counter)
	}
	if n <= a.cfg.Start {
		return Allocation{}, errors.Errorf("counter %q returned %d, expected above %d", a.cfg.Counter, n, a.cfg.Start)
	}

	alloc := Allocation{Number: n, Reference: FormatReference(a.cfg.Prefix, n)}
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int64("order.number", alloc.Number),
		attribute.String("order.reference", alloc.Reference),
	)
	return alloc, nil
}

// FormatReference renders an order number for humans, e.g. #UA1001.
func FormatReference(prefix string, n int64) string {
	return fmt.Sprintf("%s%d", prefix, n)
}

// ParseReference accepts "#UA1001", "UA1001" or "1001".
func ParseReference(prefix, s string) (int64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, prefix)
	s = strings.TrimPrefix(s, strings.TrimPrefix(prefix, "#"))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, errors.Wrapf(ErrInvalidReference, "%q", s)
	}
	return n, nil
}
