package handler

import (
	"time"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// Money goes over the wire as a string with two decimals.
func money(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.StringFixed(2))
}

func timestamp(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeCustomer(e *jx.Encoder, c order.Customer) {
	e.Obj(func(e *jx.Encoder) {
		if c.UID != "" {
			e.Field("uid", func(e *jx.Encoder) { e.Str(c.UID) })
		}
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("email", func(e *jx.Encoder) { e.Str(c.Email) })
		e.Field("phone", func(e *jx.Encoder) { e.Str(c.Phone) })
	})
}

func encodeAddress(e *jx.Encoder, a order.Address) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("line1", func(e *jx.Encoder) { e.Str(a.Line1) })
		if a.Line2 != "" {
			e.Field("line2", func(e *jx.Encoder) { e.Str(a.Line2) })
		}
		e.Field("city", func(e *jx.Encoder) { e.Str(a.City) })
		e.Field("state", func(e *jx.Encoder) { e.Str(a.State) })
		e.Field("postalCode", func(e *jx.Encoder) { e.Str(a.PostalCode) })
		e.Field("country", func(e *jx.Encoder) { e.Str(a.Country) })
	})
}

func encodeLines(e *jx.Encoder, lines []pricing.CartLine) {
	e.Arr(func(e *jx.Encoder) {
		for _, l := range lines {
			e.Obj(func(e *jx.Encoder) {
				e.Field("productId", func(e *jx.Encoder) { e.Str(l.ProductID) })
				e.Field("title", func(e *jx.Encoder) { e.Str(l.Title) })
				e.Field("unitPrice", func(e *jx.Encoder) { money(e, l.UnitPrice) })
				if l.DiscountUnitPrice.Valid {
					e.Field("discountUnitPrice", func(e *jx.Encoder) { money(e, l.DiscountUnitPrice.Decimal) })
				}
				e.Field("quantity", func(e *jx.Encoder) { e.Int(l.EffectiveQuantity()) })
				if len(l.Options) > 0 {
					e.Field("options", func(e *jx.Encoder) {
						e.Arr(func(e *jx.Encoder) {
							for _, o := range l.Options {
								e.Obj(func(e *jx.Encoder) {
									e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
									e.Field("value", func(e *jx.Encoder) { e.Str(o.Value) })
								})
							}
						})
					})
				}
			})
		}
	})
}

func encodeBreakdown(e *jx.Encoder, b pricing.Breakdown) {
	b = b.Rounded()
	e.Obj(func(e *jx.Encoder) {
		e.Field("subtotal", func(e *jx.Encoder) { money(e, b.Subtotal) })
		e.Field("tax", func(e *jx.Encoder) { money(e, b.Tax) })
		e.Field("discountAmount", func(e *jx.Encoder) { money(e, b.DiscountAmount) })
		e.Field("shippingCost", func(e *jx.Encoder) { money(e, b.ShippingCost) })
		e.Field("total", func(e *jx.Encoder) { money(e, b.Total) })
	})
}

func encodeDiscount(e *jx.Encoder, c *discount.Code) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
		e.Field("value", func(e *jx.Encoder) { e.Str(c.Value.String()) })
		e.Field("active", func(e *jx.Encoder) { e.Bool(c.Active) })
	})
}

func encodeDiscountError(e *jx.Encoder, de *checkout.DiscountError) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(de.Code) })
		e.Field("issue", func(e *jx.Encoder) { e.Str(de.Issue()) })
		e.Field("message", func(e *jx.Encoder) { e.Str(de.Err.Error()) })
	})
}

// pricingFields writes the fields shared by quotes and attempts.
func pricingFields(e *jx.Encoder, b pricing.Breakdown, c *discount.Code, de *checkout.DiscountError) {
	e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, b) })
	if c != nil {
		e.Field("discount", func(e *jx.Encoder) { encodeDiscount(e, c) })
	}
	if de != nil {
		e.Field("discountError", func(e *jx.Encoder) { encodeDiscountError(e, de) })
	}
}

func encodeQuote(e *jx.Encoder, q *checkout.Quote) {
	e.Obj(func(e *jx.Encoder) {
		pricingFields(e, q.Breakdown, q.Discount, q.DiscountErr)
	})
}

func encodeAttempt(e *jx.Encoder, a *checkout.Attempt) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(a.ID.String()) })
		e.Field("status", func(e *jx.Encoder) { e.Str(a.Status.String()) })
		e.Field("customer", func(e *jx.Encoder) { encodeCustomer(e, a.Customer) })
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, a.Address) })
		e.Field("agreement", func(e *jx.Encoder) { e.Bool(a.Agreement) })
		e.Field("lines", func(e *jx.Encoder) { encodeLines(e, a.Lines) })
		e.Field("shipping", func(e *jx.Encoder) { e.Str(string(a.Shipping)) })
		if a.DiscountCode != "" {
			e.Field("discountCode", func(e *jx.Encoder) { e.Str(a.DiscountCode) })
		}
		if a.Status != checkout.StatusDraft {
			pricingFields(e, a.Breakdown, a.Discount, a.DiscountErr)
		}
		if a.OrderNumber != 0 {
			e.Field("orderNumber", func(e *jx.Encoder) { e.Int64(a.OrderNumber) })
			e.Field("orderReference", func(e *jx.Encoder) { e.Str(a.OrderReference) })
		}
		if a.Payment.GatewayOrderID != "" {
			e.Field("payment", func(e *jx.Encoder) { encodePayment(e, a.Payment) })
		}
		if a.FailureReason != "" {
			e.Field("failureReason", func(e *jx.Encoder) { e.Str(a.FailureReason) })
		}
		if a.ReopenedFrom.Valid {
			e.Field("reopenedFrom", func(e *jx.Encoder) { e.Str(a.ReopenedFrom.UUID.String()) })
		}
		e.Field("version", func(e *jx.Encoder) { e.Int(a.Version) })
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, a.CreatedAt) })
		e.Field("updatedAt", func(e *jx.Encoder) { timestamp(e, a.UpdatedAt) })
	})
}

func encodePayment(e *jx.Encoder, p order.Payment) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("gatewayOrderId", func(e *jx.Encoder) { e.Str(p.GatewayOrderID) })
		if p.PaymentID != "" {
			e.Field("paymentId", func(e *jx.Encoder) { e.Str(p.PaymentID) })
		}
		e.Field("amount", func(e *jx.Encoder) { e.Int64(p.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(p.Currency) })
	})
}

func encodeIntent(e *jx.Encoder, in *checkout.Intent) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("gatewayOrderId", func(e *jx.Encoder) { e.Str(in.GatewayOrderID) })
		e.Field("keyId", func(e *jx.Encoder) { e.Str(in.KeyID) })
		e.Field("amount", func(e *jx.Encoder) { e.Int64(in.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(in.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(in.Receipt) })
	})
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("number", func(e *jx.Encoder) { e.Int64(o.Number) })
		e.Field("reference", func(e *jx.Encoder) { e.Str(o.Reference) })
		e.Field("attemptId", func(e *jx.Encoder) { e.Str(o.AttemptID.String()) })
		e.Field("customer", func(e *jx.Encoder) { encodeCustomer(e, o.Customer) })
		e.Field("address", func(e *jx.Encoder) { encodeAddress(e, o.Address) })
		e.Field("lines", func(e *jx.Encoder) { encodeLines(e, o.Lines) })
		e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, o.Breakdown) })
		if o.DiscountCode != "" {
			e.Field("discountCode", func(e *jx.Encoder) { e.Str(o.DiscountCode) })
		}
		e.Field("shipping", func(e *jx.Encoder) { e.Str(string(o.Shipping)) })
		e.Field("payment", func(e *jx.Encoder) { encodePayment(e, o.Payment) })
		if o.InvoiceURL != "" {
			e.Field("invoiceUrl", func(e *jx.Encoder) { e.Str(o.InvoiceURL) })
		}
		e.Field("createdAt", func(e *jx.Encoder) { timestamp(e, o.CreatedAt) })
	})
}

func encodeShippingOption(e *jx.Encoder, o pricing.ShippingOption) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("key", func(e *jx.Encoder) { e.Str(string(o.Key)) })
		e.Field("name", func(e *jx.Encoder) { e.Str(o.Name) })
		e.Field("baseCost", func(e *jx.Encoder) { money(e, o.BaseCost) })
		if o.FreeThreshold.Valid {
			e.Field("freeThreshold", func(e *jx.Encoder) { money(e, o.FreeThreshold.Decimal) })
		}
	})
}
