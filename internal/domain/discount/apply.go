package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply returns the reduction code grants on amount.
//
// A nil code grants nothing. An inactive code grants nothing and returns
// ErrInactive. The result is always within [0, amount].
func Apply(amount decimal.Decimal, code *Code) (decimal.Decimal, error) {
	if code == nil {
		return decimal.Zero, nil
	}
	if !code.Active {
		return decimal.Zero, ErrInactive
	}

	var reduction decimal.Decimal
	switch code.Kind {
	case KindPercentage:
		reduction = amount.Mul(code.Value).Div(hundred)
	case KindFlat:
		reduction = code.Value
	default:
		return decimal.Zero, errors.Wrapf(ErrUnknownKind, "%q", code.Kind)
	}

	return clamp(reduction, floorAtZero(amount)), nil
}

// clamp bounds v to [0, upper].
func clamp(v, upper decimal.Decimal) decimal.Decimal {
	return decimal.Min(floorAtZero(v), upper)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
