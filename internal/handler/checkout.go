package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/google/uuid"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/order"
)

func attemptID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid checkout id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) inputs(w http.ResponseWriter, r *http.Request) (checkout.Inputs, bool) {
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, "cannot read request body")
		return checkout.Inputs{}, false
	}
	in, err := decodeInputs(data)
	if err != nil {
		badRequest(w, "malformed checkout body: "+err.Error())
		return checkout.Inputs{}, false
	}
	prefill(r.Context(), &in)
	return in, true
}

func writeAttempt(w http.ResponseWriter, status int, a *checkout.Attempt) {
	var e jx.Encoder
	encodeAttempt(&e, a)
	writeJSON(w, status, &e)
}

// StartCheckout handles POST /api/checkout.
func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	in, ok := h.inputs(w, r)
	if !ok {
		return
	}
	a, err := h.checkout.Start(r.Context(), in)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/checkout/"+a.ID.String())
	writeAttempt(w, http.StatusCreated, a)
}

// GetCheckout handles GET /api/checkout/{id}.
func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	a, err := h.checkout.Get(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeAttempt(w, http.StatusOK, a)
}

// PriceCheckout handles PUT /api/checkout/{id}/pricing.
func (h *Handler) PriceCheckout(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	in, ok := h.inputs(w, r)
	if !ok {
		return
	}
	a, err := h.checkout.Price(r.Context(), id, in)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeAttempt(w, http.StatusOK, a)
}

// InitiatePayment handles POST /api/checkout/{id}/payment.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	a, intent, err := h.checkout.InitiatePayment(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("attempt", func(e *jx.Encoder) { encodeAttempt(e, a) })
		e.Field("intent", func(e *jx.Encoder) { encodeIntent(e, intent) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// ConfirmPayment handles POST /api/checkout/{id}/payment/confirm.
func (h *Handler) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, "cannot read request body")
		return
	}
	conf, err := decodeConfirmation(data)
	if err != nil {
		badRequest(w, "malformed confirmation body")
		return
	}

	a, o, err := h.checkout.ConfirmPayment(r.Context(), id, conf)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeConfirmed(w, a, o)
}

func writeConfirmed(w http.ResponseWriter, a *checkout.Attempt, o *order.Order) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("attempt", func(e *jx.Encoder) { encodeAttempt(e, a) })
		e.Field("order", func(e *jx.Encoder) { encodeOrder(e, o) })
	})
	writeJSON(w, http.StatusOK, &e)
}

// FailPayment handles POST /api/checkout/{id}/payment/fail.
func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	data, err := readBody(w, r)
	if err != nil {
		badRequest(w, "cannot read request body")
		return
	}
	reason, err := decodeField(data, "reason")
	if err != nil {
		badRequest(w, "malformed failure body")
		return
	}
	if reason == "" {
		reason = "payment failed at gateway"
	}

	a, err := h.checkout.FailPayment(r.Context(), id, reason)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeAttempt(w, http.StatusOK, a)
}

// CancelPayment handles POST /api/checkout/{id}/payment/cancel.
func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	a, err := h.checkout.Cancel(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeAttempt(w, http.StatusOK, a)
}

// Reopen handles POST /api/checkout/{id}/reopen.
func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	id, ok := attemptID(w, r)
	if !ok {
		return
	}
	a, err := h.checkout.Reopen(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/checkout/"+a.ID.String())
	writeAttempt(w, http.StatusCreated, a)
}
