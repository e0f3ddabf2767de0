// Package discount models storefront discount codes and the reduction they
// grant on an order amount.
package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindPercentage reduces the amount by Value percent.
	KindPercentage Kind = "Percentage"
	// KindFlat reduces the amount by a fixed Value, capped at the amount.
	KindFlat Kind = "Flat"
)

var (
	// ErrNotFound is returned when no discount code matches the lookup.
	ErrNotFound = errors.New("discount code not found")
	// ErrInactive is returned when a code exists but is switched off.
	ErrInactive = errors.New("discount code is not active")
	// ErrUnknownKind is returned for a code whose kind is not supported.
	ErrUnknownKind = errors.New("unknown discount kind")
)

// ParseKind maps a stored or user supplied kind to a Kind, ignoring case.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "percentage", "percent":
		return KindPercentage, nil
	case "flat", "fixed":
		return KindFlat, nil
	default:
		return "", errors.Wrapf(ErrUnknownKind, "%q", s)
	}
}

// Code is a discount code record as authored by the storefront admins.
// It is immutable for the duration of a checkout.
type Code struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Kind   Kind            `json:"kind"`
	Value  decimal.Decimal `json:"value"`
	Active bool            `json:"active"`
}

// Repository provides lookup of discount codes.
type Repository interface {
	// FindByCode returns the code regardless of its active flag, or
	// ErrNotFound.
	FindByCode(ctx context.Context, code string) (*Code, error)
}

// Normalize trims and upper-cases a code so lookups are case-insensitive.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
