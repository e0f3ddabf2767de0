package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Bounds of a single cart line.
var (
	// MaxAmount is the largest unit price a line may carry.
	MaxAmount = decimal.NewFromInt(1_000_000_000)
	// MaxQuantity is the largest quantity a line may carry.
	MaxQuantity = 10_000
)

const (
	maxAmountLen = 32
	// Exponents outside this window are rejected before any arithmetic,
	// which would otherwise expand the coefficient to 10^|exp| digits.
	minAmountExp = -10
	maxAmountExp = 10
)

var (
	// ErrAmountSyntax is returned for text that is not a decimal amount.
	ErrAmountSyntax = errors.New("not a decimal amount")
	// ErrAmountRange is returned for amounts above MaxAmount or with an
	// absurd exponent.
	ErrAmountRange = errors.New("amount out of range")
	// ErrAmountPrecision is returned for amounts finer than one paisa.
	ErrAmountPrecision = errors.New("amount has more than 2 decimal places")
	// ErrAmountNegative is returned for amounts below zero.
	ErrAmountNegative = errors.New("amount is negative")
)

// ParseAmount parses s without ever materialising a huge value. It only
// checks the shape; CheckAmount applies the price rules.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLen {
		return decimal.Decimal{}, ErrAmountSyntax
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrAmountSyntax
	}
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return decimal.Decimal{}, ErrAmountRange
	}
	return d, nil
}

// CheckAmount reports why d cannot be a unit price, or nil.
func CheckAmount(d decimal.Decimal) error {
	if exp := d.Exponent(); exp < minAmountExp || exp > maxAmountExp {
		return ErrAmountRange
	}
	switch {
	case d.IsNegative():
		return ErrAmountNegative
	case d.GreaterThan(MaxAmount):
		return ErrAmountRange
	case !d.Equal(d.Truncate(2)):
		return ErrAmountPrecision
	}
	return nil
}
