// Package handler exposes checkout, pricing and orders over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// Checkout is implemented by *checkout.Service.
type Checkout interface {
	Start(ctx context.Context, in checkout.Inputs) (*checkout.Attempt, error)
	Get(ctx context.Context, id uuid.UUID) (*checkout.Attempt, error)
	Quote(ctx context.Context, in checkout.Inputs) (*checkout.Quote, error)
	Price(ctx context.Context, id uuid.UUID, in checkout.Inputs) (*checkout.Attempt, error)
	InitiatePayment(ctx context.Context, id uuid.UUID) (*checkout.Attempt, *checkout.Intent, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID, c checkout.Confirmation) (*checkout.Attempt, *order.Order, error)
	FailPayment(ctx context.Context, id uuid.UUID, reason string) (*checkout.Attempt, error)
	Cancel(ctx context.Context, id uuid.UUID) (*checkout.Attempt, error)
	Reopen(ctx context.Context, id uuid.UUID) (*checkout.Attempt, error)
}

// IdentityParser is implemented by *auth.Verifier.
type IdentityParser interface {
	Parse(token string) (auth.Identity, error)
}

// TokenChecker is implemented by *auth.ServiceTokens.
type TokenChecker interface {
	Check(token string) error
}

// Dependencies of the Handler. Identities and ServiceTokens may be nil, in
// which case bearer tokens are ignored and invoice attach is refused.
type Dependencies struct {
	Checkout      Checkout
	Discounts     discount.Lookup
	Shipping      pricing.ShippingRepository
	Orders        order.Repository
	Identities    IdentityParser
	ServiceTokens TokenChecker
}

// Handler serves the /api routes.
type Handler struct {
	checkout  Checkout
	discounts discount.Lookup
	shipping  pricing.ShippingRepository
	orders    order.Repository
	ids       IdentityParser
	tokens    TokenChecker
}

// New creates a Handler.
func New(deps Dependencies) *Handler {
	return &Handler{
		checkout:  deps.Checkout,
		discounts: deps.Discounts,
		shipping:  deps.Shipping,
		orders:    deps.Orders,
		ids:       deps.Identities,
		tokens:    deps.ServiceTokens,
	}
}

// Mount registers the API under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(h.Authenticate)

		r.Post("/pricing/quote", h.Quote)
		r.Get("/shipping-options", h.ShippingOptions)
		r.Get("/discounts/{code}", h.Discount)

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.StartCheckout)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetCheckout)
				r.Put("/pricing", h.PriceCheckout)
				r.Post("/payment", h.InitiatePayment)
				r.Post("/payment/confirm", h.ConfirmPayment)
				r.Post("/payment/fail", h.FailPayment)
				r.Post("/payment/cancel", h.CancelPayment)
				r.Post("/reopen", h.Reopen)
			})
		})

		r.Route("/orders", func(r chi.Router) {
			r.With(RequireIdentity).Get("/", h.ListOrders)
			r.Get("/{number}", h.GetOrder)
			r.Put("/{number}/invoice", h.AttachInvoice)
		})
	})
}

// Router returns a chi router with the API mounted and mws applied in order.
func (h *Handler) Router(mws ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(mws...)
	h.Mount(r)
	return r
}
