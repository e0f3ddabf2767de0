package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
)

// HeaderServiceToken carries the token of the invoice collaborator.
const HeaderServiceToken = "X-Service-Token"

// Authenticate attaches the caller's identity when a bearer token is sent.
// Anonymous requests pass through; a bad token is rejected.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := auth.BearerToken(r.Header.Get("Authorization"))
		if !ok || h.ids == nil {
			next.ServeHTTP(w, r)
			return
		}
		id, err := h.ids.Parse(token)
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected bearer token", zap.Error(err))
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		ctx := auth.WithIdentity(r.Context(), id)
		ctx = zctx.With(ctx, zap.String("uid", id.UID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireIdentity rejects anonymous requests.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// isService reports whether the request carries a valid service token.
func (h *Handler) isService(r *http.Request) bool {
	if h.tokens == nil {
		return false
	}
	return h.tokens.Check(r.Header.Get(HeaderServiceToken)) == nil
}

// prefill copies the caller's identity into empty contact fields. The uid
// always follows the identity so clients cannot claim another account.
func prefill(ctx context.Context, in *checkout.Inputs) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		in.Customer.UID = ""
		return
	}
	in.Customer.UID = id.UID
	if strings.TrimSpace(in.Customer.Name) == "" {
		in.Customer.Name = id.Name
	}
	if strings.TrimSpace(in.Customer.Email) == "" {
		in.Customer.Email = id.Email
	}
	if strings.TrimSpace(in.Customer.Phone) == "" {
		in.Customer.Phone = id.Phone
	}
}
