package checkout

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/candle-checkout/internal/domain/discount"
)

var (
	// ErrNotFound is returned when no attempt has the requested ID.
	ErrNotFound = errors.New("checkout attempt not found")
	// ErrConflict is returned when an attempt changed since it was read.
	ErrConflict = errors.New("checkout attempt was modified concurrently")
	// ErrSignatureMismatch is returned by gateways when a payment
	// confirmation does not verify.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)

// ValidationError lists the inputs that must be corrected before the
// checkout can proceed. Keys are JSON field paths.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// DiscountError reports a code that could not be applied. Pricing goes on
// without the discount.
type DiscountError struct {
	Code string
	Err  error
}

func (e *DiscountError) Error() string {
	return fmt.Sprintf("discount %q: %v", e.Code, e.Err)
}

func (e *DiscountError) Unwrap() error { return e.Err }

// Issue is the persisted form of the error.
func (e *DiscountError) Issue() string {
	switch {
	case errors.Is(e.Err, discount.ErrNotFound):
		return "not_found"
	case errors.Is(e.Err, discount.ErrInactive):
		return "inactive"
	default:
		return "unavailable"
	}
}

var errDiscountUnavailable = errors.New("discount lookup unavailable")

// DiscountErrorFromIssue rebuilds a DiscountError from its persisted form.
// An empty issue yields nil.
func DiscountErrorFromIssue(code, issue string) *DiscountError {
	switch issue {
	case "":
		return nil
	case "not_found":
		return &DiscountError{Code: code, Err: discount.ErrNotFound}
	case "inactive":
		return &DiscountError{Code: code, Err: discount.ErrInactive}
	default:
		return &DiscountError{Code: code, Err: errDiscountUnavailable}
	}
}

// PaymentError reports a gateway failure or a rejected confirmation. The
// attempt is left in a state the user can reopen from.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Err == nil {
		return "payment failed: " + e.Reason
	}
	return fmt.Sprintf("payment failed: %s: %v", e.Reason, e.Err)
}

func (e *PaymentError) Unwrap() error { return e.Err }

// PersistenceError reports a storage failure that aborts the current step.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// TransitionError is returned when an operation is not allowed in the
// attempt's current status.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot move checkout from %s to %s", e.From, e.To)
}
