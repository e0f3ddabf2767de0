package checkout

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateLines rejects carts that cannot be priced.
func validateLines(in Inputs) *ValidationError {
	if len(in.Lines) == 0 {
		return invalid("lines", "cart is empty")
	}
	fields := make(map[string]string)
	for i, l := range in.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			fields[linePath(i, "productId")] = "required"
		}
		if err := pricing.CheckAmount(l.UnitPrice); err != nil {
			fields[linePath(i, "unitPrice")] = describeAmount(err)
		}
		if l.DiscountUnitPrice.Valid {
			if err := pricing.CheckAmount(l.DiscountUnitPrice.Decimal); err != nil {
				fields[linePath(i, "discountUnitPrice")] = describeAmount(err)
			}
		}
		if l.Quantity > pricing.MaxQuantity {
			fields[linePath(i, "quantity")] = "must be at most " + strconv.Itoa(pricing.MaxQuantity)
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// validateForPayment checks contact, address and agreement.
func (s *Service) validateForPayment(in Inputs) error {
	fields := make(map[string]string)

	collect := func(prefix string, v any) error {
		err := s.validate.Struct(v)
		if err == nil {
			return nil
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[prefix+"."+fe.Field()] = describe(fe)
		}
		return nil
	}

	if err := collect("customer", in.Customer); err != nil {
		return errors.Wrap(err, "validate customer")
	}
	if err := collect("address", in.Address); err != nil {
		return errors.Wrap(err, "validate address")
	}
	if !in.Agreement {
		fields["agreement"] = "terms must be accepted"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain digits only"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag()
	}
}

func describeAmount(err error) string {
	switch {
	case errors.Is(err, pricing.ErrAmountNegative):
		return "must not be negative"
	case errors.Is(err, pricing.ErrAmountPrecision):
		return "must have at most 2 decimal places"
	default:
		return "must be at most " + pricing.MaxAmount.String()
	}
}

func linePath(i int, field string) string {
	return "lines[" + strconv.Itoa(i) + "]." + field
}
