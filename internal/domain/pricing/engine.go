package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-checkout/internal/domain/discount"
)

// ComputeSubtotal sums effective price times quantity over all lines.
func ComputeSubtotal(lines []CartLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.EffectiveQuantity()))
		sum = sum.Add(floorAtZero(l.EffectivePrice()).Mul(qty))
	}
	return sum
}

// ComputeTax applies rate to subtotal without rounding.
func ComputeTax(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate)
}

// ComputeShipping prices the selected tier. Only a tier with a threshold can
// become free, and only when subtotalPlusTax is strictly above it.
func ComputeShipping(selection ShippingKey, subtotalPlusTax decimal.Decimal, options ShippingOptions) (decimal.Decimal, error) {
	opt, ok := options[selection]
	if !ok {
		return decimal.Zero, errors.Wrapf(ErrUnknownShipping, "%q", selection)
	}
	if opt.FreeThreshold.Valid && subtotalPlusTax.GreaterThan(opt.FreeThreshold.Decimal) {
		return decimal.Zero, nil
	}
	return opt.BaseCost, nil
}

// ComputeTotal is subtotal + tax - discount + shipping, floored at zero.
func ComputeTotal(b Breakdown) decimal.Decimal {
	return floorAtZero(b.Subtotal.Add(b.Tax).Sub(b.DiscountAmount).Add(b.ShippingCost))
}

// Input is everything a breakdown depends on.
type Input struct {
	Lines    []CartLine
	Shipping ShippingKey
	Discount *discount.Code
	Options  ShippingOptions
}

// Result is a computed breakdown. DiscountErr is set when a code was given
// but could not be applied; the breakdown then carries a zero discount.
type Result struct {
	Breakdown   Breakdown
	DiscountErr error
}

// Engine prices carts at a fixed tax rate.
type Engine struct {
	taxRate decimal.Decimal
}

// NewEngine creates an Engine. A zero or negative rate falls back to
// DefaultTaxRate.
func NewEngine(taxRate decimal.Decimal) *Engine {
	if !taxRate.IsPositive() {
		taxRate = DefaultTaxRate
	}
	return &Engine{taxRate: taxRate}
}

// TaxRate reports the rate the engine applies.
func (e *Engine) TaxRate() decimal.Decimal {
	return e.taxRate
}

// Compute prices in. The discount applies to subtotal plus tax. An empty
// shipping selection means standard.
func (e *Engine) Compute(in Input) (Result, error) {
	selection := in.Shipping
	if selection == "" {
		selection = ShippingStandard
	}
	options := in.Options
	if len(options) == 0 {
		options = DefaultShippingOptions()
	}

	var b Breakdown
	b.Subtotal = ComputeSubtotal(in.Lines)
	b.Tax = ComputeTax(b.Subtotal, e.taxRate)
	beforeDiscount := b.Subtotal.Add(b.Tax)

	var res Result
	amount, err := discount.Apply(beforeDiscount, in.Discount)
	if err != nil {
		res.DiscountErr = err
		amount = decimal.Zero
	}
	b.DiscountAmount = amount

	shipping, err := ComputeShipping(selection, beforeDiscount, options)
	if err != nil {
		return Result{}, err
	}
	b.ShippingCost = shipping
	b.Total = ComputeTotal(b)

	res.Breakdown = b
	return res, nil
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
