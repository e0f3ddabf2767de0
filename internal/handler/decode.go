package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// decodeInputs reads the checkout form. Unknown fields are ignored.
func decodeInputs(data []byte) (checkout.Inputs, error) {
	var in checkout.Inputs
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "customer":
			return decodeCustomer(d, &in.Customer)
		case "address":
			return decodeAddress(d, &in.Address)
		case "agreement":
			v, err := d.Bool()
			in.Agreement = v
			return err
		case "lines":
			return d.Arr(func(d *jx.Decoder) error {
				l, err := decodeLine(d)
				if err != nil {
					return errors.Wrapf(err, "lines[%d]", len(in.Lines))
				}
				in.Lines = append(in.Lines, l)
				return nil
			})
		case "shipping":
			s, err := optStr(d)
			in.Shipping = pricing.ShippingKey(s)
			return err
		case "discountCode":
			s, err := optStr(d)
			in.DiscountCode = s
			return err
		default:
			return d.Skip()
		}
	})
	return in, err
}

func decodeCustomer(d *jx.Decoder, c *order.Customer) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			c.Name, err = optStr(d)
		case "email":
			c.Email, err = optStr(d)
		case "phone":
			c.Phone, err = optStr(d)
		default:
			// uid comes from the caller's identity only.
			err = d.Skip()
		}
		return err
	})
}

func decodeAddress(d *jx.Decoder, a *order.Address) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "line1":
			a.Line1, err = optStr(d)
		case "line2":
			a.Line2, err = optStr(d)
		case "city":
			a.City, err = optStr(d)
		case "state":
			a.State, err = optStr(d)
		case "postalCode":
			a.PostalCode, err = optStr(d)
		case "country":
			a.Country, err = optStr(d)
		default:
			err = d.Skip()
		}
		return err
	})
}

func decodeLine(d *jx.Decoder) (pricing.CartLine, error) {
	var l pricing.CartLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			l.ProductID, err = d.Str()
		case "title":
			l.Title, err = optStr(d)
		case "unitPrice":
			l.UnitPrice, err = decodeDecimal(d)
		case "discountUnitPrice":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v decimal.Decimal
			v, err = decodeDecimal(d)
			l.DiscountUnitPrice = decimal.NewNullDecimal(v)
		case "quantity":
			l.Quantity, err = d.Int()
		case "options":
			err = d.Arr(func(d *jx.Decoder) error {
				var o pricing.Option
				if err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "name":
						o.Name, err = d.Str()
					case "value":
						o.Value, err = d.Str()
					default:
						err = d.Skip()
					}
					return err
				}); err != nil {
					return err
				}
				l.Options = append(l.Options, o)
				return nil
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	return l, err
}

// decodeDecimal accepts both 12.5 and "12.5". Amounts with an absurd
// exponent are rejected before they can be expanded.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var s string
	switch d.Next() {
	case jx.String:
		v, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		s = v
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		s = n.String()
	default:
		return decimal.Decimal{}, errors.New("expected a number")
	}
	return pricing.ParseAmount(s)
}

func optStr(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}

func decodeConfirmation(data []byte) (checkout.Confirmation, error) {
	var c checkout.Confirmation
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "gatewayOrderId":
			c.GatewayOrderID, err = d.Str()
		case "paymentId":
			c.PaymentID, err = d.Str()
		case "signature":
			c.Signature, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, err
}

// decodeField reads a single optional string field of an object body. An
// empty body yields "".
func decodeField(data []byte, field string) (string, error) {
	if len(data) == 0 {
		return "", nil
	}
	var out string
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != field {
			return d.Skip()
		}
		s, err := optStr(d)
		out = s
		return err
	})
	return out, err
}

