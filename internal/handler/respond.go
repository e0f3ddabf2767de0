package handler

import (
	"io"
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/order"
)

const maxBodyBytes = 1 << 20

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return data, nil
}

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, message string, fields map[string]string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Int(status) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
		if len(fields) > 0 {
			keys := make([]string, 0, len(fields))
			for k := range fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			e.Field("fields", func(e *jx.Encoder) {
				e.Obj(func(e *jx.Encoder) {
					for _, k := range keys {
						e.Field(k, func(e *jx.Encoder) { e.Str(fields[k]) })
					}
				})
			})
		}
	})
	writeJSON(w, status, &e)
}

func badRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message, nil)
}

// fail maps a domain error to its HTTP status. Unexpected errors are logged
// and answered with a generic 500.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *checkout.ValidationError
		derr  *checkout.DiscountError
		perr  *checkout.PaymentError
		sterr *checkout.PersistenceError
		terr  *checkout.TransitionError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "validation failed", verr.Fields)
	case errors.As(err, &perr):
		writeError(w, http.StatusPaymentRequired, perr.Error(), nil)
	case errors.As(err, &terr), errors.Is(err, checkout.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, order.ErrInvoiceAttached):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, checkout.ErrNotFound), errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.As(err, &derr):
		switch derr.Issue() {
		case "not_found":
			writeError(w, http.StatusNotFound, derr.Error(), nil)
		case "inactive":
			writeError(w, http.StatusUnprocessableEntity, derr.Error(), nil)
		default:
			unavailable(w, r, err)
		}
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.As(err, &sterr):
		unavailable(w, r, err)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

func unavailable(w http.ResponseWriter, r *http.Request, err error) {
	zctx.From(r.Context()).Warn("Dependency unavailable", zap.Error(err))
	writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable", nil)
}

