// Package pricing turns a cart, a shipping selection and an optional discount
// code into a price breakdown.
//
// Every function here is pure. Callers recompute the whole breakdown whenever
// an input changes; nothing is cached between calls. Amounts are kept at full
// precision and only rounded by Breakdown.Rounded when displayed or persisted.
package pricing

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultTaxRate is the flat tax applied to the cart subtotal.
var DefaultTaxRate = decimal.RequireFromString("0.12")

// ErrUnknownShipping is returned when the selected shipping option is not
// offered.
var ErrUnknownShipping = errors.New("unknown shipping option")

// Option is a product variant choice attached to a cart line, e.g. scent or
// wick size.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// CartLine is one product in the cart.
type CartLine struct {
	ProductID         string              `json:"productId"`
	Title             string              `json:"title"`
	UnitPrice         decimal.Decimal     `json:"unitPrice"`
	DiscountUnitPrice decimal.NullDecimal `json:"discountUnitPrice"`
	Quantity          int                 `json:"quantity"`
	Options           []Option            `json:"options,omitempty"`
}

// EffectivePrice is the sale price when one is set, else the list price.
func (l CartLine) EffectivePrice() decimal.Decimal {
	if l.DiscountUnitPrice.Valid {
		return l.DiscountUnitPrice.Decimal
	}
	return l.UnitPrice
}

// EffectiveQuantity treats anything below one as a single unit.
func (l CartLine) EffectiveQuantity() int {
	if l.Quantity < 1 {
		return 1
	}
	return l.Quantity
}

// ShippingKey identifies a delivery tier.
type ShippingKey string

const (
	ShippingStandard ShippingKey = "standard"
	ShippingExpress  ShippingKey = "express"
)

// ShippingOption is a delivery tier. A tier with a FreeThreshold costs
// nothing once subtotal plus tax exceeds it.
type ShippingOption struct {
	Key           ShippingKey
	Name          string
	BaseCost      decimal.Decimal
	FreeThreshold decimal.NullDecimal
}

// ShippingOptions indexes the offered tiers by key.
type ShippingOptions map[ShippingKey]ShippingOption

// NewShippingOptions indexes a list of tiers.
func NewShippingOptions(list []ShippingOption) ShippingOptions {
	out := make(ShippingOptions, len(list))
	for _, o := range list {
		out[o.Key] = o
	}
	return out
}

// DefaultShippingOptions is the storefront's stock configuration, used when
// storage has no rows yet.
func DefaultShippingOptions() ShippingOptions {
	return NewShippingOptions([]ShippingOption{
		{
			Key:           ShippingStandard,
			Name:          "Standard delivery",
			BaseCost:      decimal.NewFromInt(300),
			FreeThreshold: decimal.NewNullDecimal(decimal.NewFromInt(2500)),
		},
		{
			Key:      ShippingExpress,
			Name:     "Express delivery",
			BaseCost: decimal.NewFromInt(1200),
		},
	})
}

// ShippingRepository lists the offered shipping tiers.
type ShippingRepository interface {
	List(ctx context.Context) ([]ShippingOption, error)
}

// Breakdown is the full price of a cart.
type Breakdown struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	Tax            decimal.Decimal `json:"tax"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	ShippingCost   decimal.Decimal `json:"shippingCost"`
	Total          decimal.Decimal `json:"total"`
}

// Rounded returns a copy with every amount rounded to currency precision.
// Total is recomputed from the rounded parts so a displayed or stored
// breakdown always adds up.
func (b Breakdown) Rounded() Breakdown {
	r := Breakdown{
		Subtotal:       b.Subtotal.Round(2),
		Tax:            b.Tax.Round(2),
		DiscountAmount: b.DiscountAmount.Round(2),
		ShippingCost:   b.ShippingCost.Round(2),
	}
	r.Total = ComputeTotal(r)
	return r
}
