package handler

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// Quote handles POST /api/pricing/quote. Nothing is stored.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	in, ok := h.inputs(w, r)
	if !ok {
		return
	}
	q, err := h.checkout.Quote(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	encodeQuote(&e, q)
	writeJSON(w, http.StatusOK, &e)
}

// ShippingOptions handles GET /api/shipping-options.
func (h *Handler) ShippingOptions(w http.ResponseWriter, r *http.Request) {
	list, err := h.shipping.List(r.Context())
	if err != nil {
		fail(w, r, &checkout.PersistenceError{Op: "list shipping options", Err: err})
		return
	}
	if len(list) == 0 {
		for _, o := range pricing.DefaultShippingOptions() {
			list = append(list, o)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].BaseCost.LessThan(list[j].BaseCost)
		})
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, o := range list {
			encodeShippingOption(e, o)
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// Discount handles GET /api/discounts/{code}. Inactive codes answer 422 so
// the form can explain why the code will not apply.
func (h *Handler) Discount(w http.ResponseWriter, r *http.Request) {
	code := discount.Normalize(chi.URLParam(r, "code"))
	c, err := h.discounts.Lookup(r.Context(), code)
	if err != nil {
		fail(w, r, &checkout.DiscountError{Code: code, Err: err})
		return
	}
	if !c.Active {
		fail(w, r, &checkout.DiscountError{Code: code, Err: discount.ErrInactive})
		return
	}
	var e jx.Encoder
	encodeDiscount(&e, c)
	writeJSON(w, http.StatusOK, &e)
}
