package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/order"
)

// ListOrders handles GET /api/orders for the caller's email.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	if id.Email == "" {
		writeError(w, http.StatusUnprocessableEntity, "identity has no email", nil)
		return
	}
	orders, err := h.orders.ListByEmail(r.Context(), id.Email)
	if err != nil {
		fail(w, r, &checkout.PersistenceError{Op: "list orders", Err: err})
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for i := range orders {
			encodeOrder(e, &orders[i])
		}
	})
	writeJSON(w, http.StatusOK, &e)
}

// GetOrder handles GET /api/orders/{number}. Orders are visible to the
// service collaborators and to the customer who placed them; anyone else
// gets 404.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	if !h.isService(r) && !ownsOrder(r, o) {
		fail(w, r, order.ErrNotFound)
		return
	}
	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// AttachInvoice handles PUT /api/orders/{number}/invoice.
func (h *Handler) AttachInvoice(w http.ResponseWriter, r *http.Request) {
	if !h.isService(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	number, err := order.ParseReference(order.DefaultPrefix, chi.URLParam(r, "number"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, "cannot read request body")
		return
	}
	raw, err := decodeField(data, "url")
	if err != nil {
		badRequest(w, "malformed invoice body")
		return
	}
	if u, err := url.Parse(raw); err != nil || !u.IsAbs() {
		writeError(w, http.StatusUnprocessableEntity, "validation failed", map[string]string{"url": "must be an absolute URL"})
		return
	}

	if err := h.orders.AttachInvoice(r.Context(), number, raw); err != nil {
		fail(w, r, orderErr("attach invoice", err))
		return
	}
	zctx.From(r.Context()).Info("Invoice attached", zap.Int64("order_number", number))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadOrder(w http.ResponseWriter, r *http.Request) (*order.Order, bool) {
	number, err := order.ParseReference(order.DefaultPrefix, chi.URLParam(r, "number"))
	if err != nil {
		badRequest(w, err.Error())
		return nil, false
	}
	o, err := h.orders.Get(r.Context(), number)
	if err != nil {
		fail(w, r, orderErr("load order", err))
		return nil, false
	}
	return o, true
}

func ownsOrder(r *http.Request, o *order.Order) bool {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		return false
	}
	if id.UID != "" && id.UID == o.Customer.UID {
		return true
	}
	return id.Email != "" && strings.EqualFold(id.Email, o.Customer.Email)
}

// orderErr keeps the order sentinels and marks everything else as a storage
// failure.
func orderErr(op string, err error) error {
	if errors.Is(err, order.ErrNotFound) || errors.Is(err, order.ErrInvoiceAttached) {
		return err
	}
	return &checkout.PersistenceError{Op: op, Err: err}
}
