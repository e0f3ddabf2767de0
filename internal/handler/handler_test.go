package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/candle-checkout/internal/auth"
	"github.com/xenking/candle-checkout/internal/domain/checkout"
	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// --- Mock implementations ---

type mockCheckout struct {
	attempt *checkout.Attempt
	intent  *checkout.Intent
	order   *order.Order
	quote   *checkout.Quote
	err     error

	gotInputs checkout.Inputs
	gotID     uuid.UUID
	gotConf   checkout.Confirmation
	gotReason string
}

func (m *mockCheckout) Start(_ context.Context, in checkout.Inputs) (*checkout.Attempt, error) {
	m.gotInputs = in
	return m.attempt, m.err
}

func (m *mockCheckout) Get(_ context.Context, id uuid.UUID) (*checkout.Attempt, error) {
	m.gotID = id
	return m.attempt, m.err
}

func (m *mockCheckout) Quote(_ context.Context, in checkout.Inputs) (*checkout.Quote, error) {
	m.gotInputs = in
	return m.quote, m.err
}

func (m *mockCheckout) Price(_ context.Context, id uuid.UUID, in checkout.Inputs) (*checkout.Attempt, error) {
	m.gotID, m.gotInputs = id, in
	return m.attempt, m.err
}

func (m *mockCheckout) InitiatePayment(_ context.Context, id uuid.UUID) (*checkout.Attempt, *checkout.Intent, error) {
	m.gotID = id
	return m.attempt, m.intent, m.err
}

func (m *mockCheckout) ConfirmPayment(_ context.Context, id uuid.UUID, c checkout.Confirmation) (*checkout.Attempt, *order.Order, error) {
	m.gotID, m.gotConf = id, c
	return m.attempt, m.order, m.err
}

func (m *mockCheckout) FailPayment(_ context.Context, id uuid.UUID, reason string) (*checkout.Attempt, error) {
	m.gotID, m.gotReason = id, reason
	return m.attempt, m.err
}

func (m *mockCheckout) Cancel(_ context.Context, id uuid.UUID) (*checkout.Attempt, error) {
	m.gotID = id
	return m.attempt, m.err
}

func (m *mockCheckout) Reopen(_ context.Context, id uuid.UUID) (*checkout.Attempt, error) {
	m.gotID = id
	return m.attempt, m.err
}

type mockLookup struct {
	code *discount.Code
	err  error
}

func (m *mockLookup) Lookup(_ context.Context, _ string) (*discount.Code, error) {
	return m.code, m.err
}

type mockShipping struct {
	options []pricing.ShippingOption
	err     error
}

func (m *mockShipping) List(_ context.Context) ([]pricing.ShippingOption, error) {
	return m.options, m.err
}

type mockOrders struct {
	byNumber  map[int64]*order.Order
	listErr   error
	attachErr error

	gotEmail   string
	gotInvoice string
}

func (m *mockOrders) Create(_ context.Context, o *order.Order) error {
	m.byNumber[o.Number] = o
	return nil
}

func (m *mockOrders) Get(_ context.Context, number int64) (*order.Order, error) {
	o, ok := m.byNumber[number]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

func (m *mockOrders) ListByEmail(_ context.Context, email string) ([]order.Order, error) {
	m.gotEmail = email
	var out []order.Order
	for _, o := range m.byNumber {
		if strings.EqualFold(o.Customer.Email, email) {
			out = append(out, *o)
		}
	}
	return out, m.listErr
}

func (m *mockOrders) AttachInvoice(_ context.Context, number int64, url string) error {
	if m.attachErr != nil {
		return m.attachErr
	}
	if _, ok := m.byNumber[number]; !ok {
		return order.ErrNotFound
	}
	m.gotInvoice = url
	return nil
}

type staticIdentities map[string]auth.Identity

func (s staticIdentities) Parse(token string) (auth.Identity, error) {
	id, ok := s[token]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return id, nil
}

type staticTokens string

func (s staticTokens) Check(token string) error {
	if token == "" || token != string(s) {
		return auth.ErrUnauthorized
	}
	return nil
}

// --- Fixture ---

var (
	attemptUUID = uuid.MustParse("6f1c7a52-3d7e-4b8e-9f0a-2c1d5e6f7a8b")
	createdAt   = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	alice       = auth.Identity{UID: "u-alice", Email: "alice@example.com", Name: "Alice", Phone: "9876543210"}
)

type fixture struct {
	checkout *mockCheckout
	lookup   *mockLookup
	shipping *mockShipping
	orders   *mockOrders
	router   http.Handler
}

func newFixture() *fixture {
	f := &fixture{
		checkout: &mockCheckout{attempt: sampleAttempt()},
		lookup:   &mockLookup{},
		shipping: &mockShipping{},
		orders:   &mockOrders{byNumber: map[int64]*order.Order{1001: sampleOrder()}},
	}
	f.router = New(Dependencies{
		Checkout:      f.checkout,
		Discounts:     f.lookup,
		Shipping:      f.shipping,
		Orders:        f.orders,
		Identities:    staticIdentities{"alice-token": alice},
		ServiceTokens: staticTokens("svc-secret"),
	}).Router()
	return f
}

func sampleAttempt() *checkout.Attempt {
	return &checkout.Attempt{
		ID:     attemptUUID,
		Status: checkout.StatusPricingComputed,
		Inputs: checkout.Inputs{
			Lines: []pricing.CartLine{{
				ProductID: "lavender-jar",
				Title:     "Lavender jar",
				UnitPrice: decimal.NewFromInt(500),
				Quantity:  2,
			}},
			Shipping: pricing.ShippingStandard,
		},
		Breakdown: pricing.Breakdown{
			Subtotal:     decimal.NewFromInt(1000),
			Tax:          decimal.NewFromInt(120),
			ShippingCost: decimal.NewFromInt(300),
			Total:        decimal.NewFromInt(1420),
		},
		Version:   2,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func sampleOrder() *order.Order {
	return &order.Order{
		Number:    1001,
		Reference: "#UA1001",
		AttemptID: attemptUUID,
		Customer:  order.Customer{Name: "Alice", Email: "Alice@Example.com", Phone: "9876543210"},
		Shipping:  pricing.ShippingStandard,
		Payment:   order.Payment{GatewayOrderID: "order_1", PaymentID: "pay_1", Amount: 142000, Currency: "INR"},
		CreatedAt: createdAt,
	}
}

type call struct {
	method  string
	path    string
	body    string
	headers map[string]string
}

func (f *fixture) do(t *testing.T, c call) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(c.method, c.path, strings.NewReader(c.body))
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var body map[string]any
	if w.Body.Len() > 0 && strings.HasPrefix(strings.TrimSpace(w.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	}
	return w, body
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

const checkoutBody = `{
	"customer": {"name": "", "email": "", "phone": "", "uid": "u-mallory"},
	"address": {"line1": "12 Wax Lane", "city": "Pune", "state": "MH", "postalCode": "411001", "country": "IN"},
	"agreement": true,
	"lines": [
		{"productId": "lavender-jar", "title": "Lavender jar", "unitPrice": 500, "quantity": 2,
		 "options": [{"name": "wick", "value": "wood"}]},
		{"productId": "amber-tin", "unitPrice": "350.50", "discountUnitPrice": "299.99", "quantity": 1}
	],
	"shipping": "express",
	"discountCode": "festive10",
	"unknown": {"ignored": true}
}`

// --- Tests ---

func TestStartCheckout(t *testing.T) {
	f := newFixture()
	w, body := f.do(t, call{method: http.MethodPost, path: "/api/checkout", body: checkoutBody, headers: bearer("alice-token")})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/checkout/"+attemptUUID.String(), w.Header().Get("Location"))
	assert.Equal(t, attemptUUID.String(), body["id"])
	assert.Equal(t, "PricingComputed", body["status"])

	in := f.checkout.gotInputs
	assert.Equal(t, "u-alice", in.Customer.UID, "uid comes from the identity")
	assert.Equal(t, "Alice", in.Customer.Name)
	assert.Equal(t, "alice@example.com", in.Customer.Email)
	assert.Equal(t, "9876543210", in.Customer.Phone)
	assert.Equal(t, "Pune", in.Address.City)
	assert.True(t, in.Agreement)
	assert.Equal(t, pricing.ShippingExpress, in.Shipping)
	assert.Equal(t, "festive10", in.DiscountCode)

	require.Len(t, in.Lines, 2)
	assert.True(t, decimal.NewFromInt(500).Equal(in.Lines[0].UnitPrice))
	assert.Equal(t, []pricing.Option{{Name: "wick", Value: "wood"}}, in.Lines[0].Options)
	assert.True(t, decimal.RequireFromString("350.50").Equal(in.Lines[1].UnitPrice))
	require.True(t, in.Lines[1].DiscountUnitPrice.Valid)
	assert.True(t, decimal.RequireFromString("299.99").Equal(in.Lines[1].DiscountUnitPrice.Decimal))
}

func TestStartCheckout_AnonymousCannotClaimUID(t *testing.T) {
	f := newFixture()
	w, _ := f.do(t, call{method: http.MethodPost, path: "/api/checkout", body: checkoutBody})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, f.checkout.gotInputs.Customer.UID)
	assert.Empty(t, f.checkout.gotInputs.Customer.Email)
}

func TestStartCheckout_Malformed(t *testing.T) {
	for _, tt := range []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"lines not an array", `{"lines": {}}`},
		{"price not a number", `{"lines": [{"productId": "x", "unitPrice": true}]}`},
		{"price not decimal", `{"lines": [{"productId": "x", "unitPrice": "abc"}]}`},
		{"price exponent as string", `{"lines": [{"productId": "x", "unitPrice": "1e100000000", "quantity": 1}]}`},
		{"price exponent as number", `{"lines": [{"productId": "x", "unitPrice": 1e100000000, "quantity": 1}]}`},
		{"sale price exponent", `{"lines": [{"productId": "x", "unitPrice": 5, "discountUnitPrice": "1e-999999"}]}`},
		{"price too long", `{"lines": [{"productId": "x", "unitPrice": "` + strings.Repeat("9", 64) + `"}]}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w, body := f.do(t, call{method: http.MethodPost, path: "/api/checkout", body: tt.body})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.EqualValues(t, 400, body["code"])
		})
	}
}

func TestQuote_HugeAmountNeverReachesPricing(t *testing.T) {
	f := newFixture()
	w, _ := f.do(t, call{
		method: http.MethodPost,
		path:   "/api/pricing/quote",
		body:   `{"lines": [{"productId": "c", "unitPrice": "1e100000000", "quantity": 1}]}`,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, f.checkout.gotInputs.Lines)
}

func TestAuthenticate_RejectsBadToken(t *testing.T) {
	f := newFixture()
	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/checkout/" + attemptUUID.String(), headers: bearer("forged")})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestErrorMapping(t *testing.T) {
	for _, tt := range []struct {
		name     string
		err      error
		wantCode int
	}{
		{"validation", &checkout.ValidationError{Fields: map[string]string{"customer.email": "required"}}, http.StatusUnprocessableEntity},
		{"payment", &checkout.PaymentError{Reason: "declined"}, http.StatusPaymentRequired},
		{"transition", &checkout.TransitionError{From: checkout.StatusDraft, To: checkout.StatusPaymentInitiated}, http.StatusConflict},
		{"conflict", errors.Wrap(checkout.ErrConflict, "save"), http.StatusConflict},
		{"not found", checkout.ErrNotFound, http.StatusNotFound},
		{"persistence", &checkout.PersistenceError{Op: "save checkout attempt", Err: errors.New("conn reset")}, http.StatusServiceUnavailable},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.checkout.err = tt.err

			w, body := f.do(t, call{method: http.MethodGet, path: "/api/checkout/" + attemptUUID.String()})
			assert.Equal(t, tt.wantCode, w.Code)
			assert.EqualValues(t, tt.wantCode, body["code"])
		})
	}
}

func TestErrorMapping_ValidationFields(t *testing.T) {
	f := newFixture()
	f.checkout.err = &checkout.ValidationError{Fields: map[string]string{
		"customer.email": "must be a valid email address",
		"agreement":      "terms must be accepted",
	}}

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/checkout/" + attemptUUID.String() + "/payment"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, map[string]any{
		"customer.email": "must be a valid email address",
		"agreement":      "terms must be accepted",
	}, body["fields"])
}

func TestCheckout_InvalidID(t *testing.T) {
	f := newFixture()
	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/checkout/not-a-uuid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCheckout(t *testing.T) {
	f := newFixture()
	w, body := f.do(t, call{method: http.MethodGet, path: "/api/checkout/" + attemptUUID.String()})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, attemptUUID, f.checkout.gotID)
	assert.Equal(t, map[string]any{
		"subtotal":       "1000.00",
		"tax":            "120.00",
		"discountAmount": "0.00",
		"shippingCost":   "300.00",
		"total":          "1420.00",
	}, body["breakdown"])
	assert.EqualValues(t, 2, body["version"])
	assert.Equal(t, "2026-03-01T10:00:00Z", body["createdAt"])
}

func TestGetCheckout_DraftHasNoBreakdown(t *testing.T) {
	f := newFixture()
	f.checkout.attempt.Status = checkout.StatusDraft

	_, body := f.do(t, call{method: http.MethodGet, path: "/api/checkout/" + attemptUUID.String()})
	assert.NotContains(t, body, "breakdown")
}

func TestPriceCheckout_ReportsDiscountError(t *testing.T) {
	f := newFixture()
	f.checkout.attempt.DiscountCode = "GONE"
	f.checkout.attempt.DiscountErr = &checkout.DiscountError{Code: "GONE", Err: discount.ErrNotFound}

	w, body := f.do(t, call{method: http.MethodPut, path: "/api/checkout/" + attemptUUID.String() + "/pricing", body: checkoutBody})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "not_found", body["discountError"].(map[string]any)["issue"])
	assert.Equal(t, pricing.ShippingExpress, f.checkout.gotInputs.Shipping)
}

func TestInitiatePayment(t *testing.T) {
	f := newFixture()
	f.checkout.attempt.Status = checkout.StatusPaymentInitiated
	f.checkout.attempt.OrderNumber = 1001
	f.checkout.attempt.OrderReference = "#UA1001"
	f.checkout.intent = &checkout.Intent{GatewayOrderID: "order_1", KeyID: "rzp_test", Amount: 142000, Currency: "INR", Receipt: "#UA1001"}

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/checkout/" + attemptUUID.String() + "/payment"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{
		"gatewayOrderId": "order_1",
		"keyId":          "rzp_test",
		"amount":         float64(142000),
		"currency":       "INR",
		"receipt":        "#UA1001",
	}, body["intent"])
	assert.Equal(t, "#UA1001", body["attempt"].(map[string]any)["orderReference"])
}

func TestConfirmPayment(t *testing.T) {
	f := newFixture()
	f.checkout.attempt.Status = checkout.StatusPaymentSucceeded
	f.checkout.order = sampleOrder()

	w, body := f.do(t, call{
		method: http.MethodPost,
		path:   "/api/checkout/" + attemptUUID.String() + "/payment/confirm",
		body:   `{"gatewayOrderId":"order_1","paymentId":"pay_1","signature":"abcd"}`,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, checkout.Confirmation{GatewayOrderID: "order_1", PaymentID: "pay_1", Signature: "abcd"}, f.checkout.gotConf)
	assert.Equal(t, "#UA1001", body["order"].(map[string]any)["reference"])
}

func TestFailPayment(t *testing.T) {
	for _, tt := range []struct {
		name       string
		body       string
		wantReason string
	}{
		{"with reason", `{"reason":"card declined"}`, "card declined"},
		{"empty body", ``, "payment failed at gateway"},
		{"null reason", `{"reason":null}`, "payment failed at gateway"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w, _ := f.do(t, call{method: http.MethodPost, path: "/api/checkout/" + attemptUUID.String() + "/payment/fail", body: tt.body})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.wantReason, f.checkout.gotReason)
		})
	}
}

func TestCancelAndReopen(t *testing.T) {
	f := newFixture()
	w, _ := f.do(t, call{method: http.MethodPost, path: "/api/checkout/" + attemptUUID.String() + "/payment/cancel"})
	assert.Equal(t, http.StatusOK, w.Code)

	reopened := sampleAttempt()
	reopened.ID = uuid.New()
	reopened.Status = checkout.StatusDraft
	reopened.ReopenedFrom = uuid.NullUUID{UUID: attemptUUID, Valid: true}
	f.checkout.attempt = reopened

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/checkout/" + attemptUUID.String() + "/reopen"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/checkout/"+reopened.ID.String(), w.Header().Get("Location"))
	assert.Equal(t, attemptUUID.String(), body["reopenedFrom"])
}

func TestQuote(t *testing.T) {
	f := newFixture()
	f.checkout.quote = &checkout.Quote{
		Breakdown: pricing.Breakdown{
			Subtotal:       decimal.NewFromInt(1000),
			Tax:            decimal.NewFromInt(120),
			DiscountAmount: decimal.RequireFromString("112.004"),
			ShippingCost:   decimal.NewFromInt(300),
			Total:          decimal.RequireFromString("1307.996"),
		},
		Discount: &discount.Code{Code: "FESTIVE10", Name: "Festive", Kind: discount.KindPercentage, Value: decimal.NewFromInt(10), Active: true},
	}

	w, body := f.do(t, call{method: http.MethodPost, path: "/api/pricing/quote", body: checkoutBody})
	require.Equal(t, http.StatusOK, w.Code)
	b := body["breakdown"].(map[string]any)
	assert.Equal(t, "112.00", b["discountAmount"])
	assert.Equal(t, "1308.00", b["total"])
	assert.Equal(t, "FESTIVE10", body["discount"].(map[string]any)["code"])
}

func TestShippingOptions(t *testing.T) {
	t.Run("defaults when storage is empty", func(t *testing.T) {
		f := newFixture()
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/shipping-options", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var list []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "standard", list[0]["key"])
		assert.Equal(t, "2500.00", list[0]["freeThreshold"])
		assert.Equal(t, "express", list[1]["key"])
		assert.NotContains(t, list[1], "freeThreshold")
	})
	t.Run("storage failure", func(t *testing.T) {
		f := newFixture()
		f.shipping.err = errors.New("pool closed")
		w, _ := f.do(t, call{method: http.MethodGet, path: "/api/shipping-options"})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestDiscount(t *testing.T) {
	festive := &discount.Code{Code: "FESTIVE10", Name: "Festive", Kind: discount.KindPercentage, Value: decimal.NewFromInt(10), Active: true}
	expired := &discount.Code{Code: "SUMMER", Kind: discount.KindFlat, Value: decimal.NewFromInt(100)}

	for _, tt := range []struct {
		name     string
		code     *discount.Code
		err      error
		wantCode int
	}{
		{"active", festive, nil, http.StatusOK},
		{"inactive", expired, nil, http.StatusUnprocessableEntity},
		{"unknown", nil, discount.ErrNotFound, http.StatusNotFound},
		{"lookup failure", nil, errors.New("timeout"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.lookup.code, f.lookup.err = tt.code, tt.err

			w, body := f.do(t, call{method: http.MethodGet, path: "/api/discounts/festive10"})
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "Percentage", body["kind"])
				assert.Equal(t, "10", body["value"])
			}
		})
	}
}

func TestListOrders(t *testing.T) {
	f := newFixture()

	w, _ := f.do(t, call{method: http.MethodGet, path: "/api/orders"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set("Authorization", "Bearer alice-token")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", f.orders.gotEmail)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.EqualValues(t, 1001, list[0]["number"])
}

func TestGetOrder(t *testing.T) {
	for _, tt := range []struct {
		name     string
		path     string
		headers  map[string]string
		wantCode int
	}{
		{"owner by email", "/api/orders/1001", bearer("alice-token"), http.StatusOK},
		{"reference form", "/api/orders/UA1001", bearer("alice-token"), http.StatusOK},
		{"service token", "/api/orders/1001", map[string]string{HeaderServiceToken: "svc-secret"}, http.StatusOK},
		{"anonymous", "/api/orders/1001", nil, http.StatusNotFound},
		{"missing", "/api/orders/9999", bearer("alice-token"), http.StatusNotFound},
		{"garbage", "/api/orders/abc", nil, http.StatusBadRequest},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			w, _ := f.do(t, call{method: http.MethodGet, path: tt.path, headers: tt.headers})
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}

func TestAttachInvoice(t *testing.T) {
	svc := map[string]string{HeaderServiceToken: "svc-secret"}
	for _, tt := range []struct {
		name      string
		headers   map[string]string
		body      string
		attachErr error
		wantCode  int
	}{
		{"attached", svc, `{"url":"https://files.example.com/inv/1001.pdf"}`, nil, http.StatusNoContent},
		{"no token", nil, `{"url":"https://files.example.com/inv/1001.pdf"}`, nil, http.StatusUnauthorized},
		{"customer token is not enough", bearer("alice-token"), `{"url":"https://files.example.com/inv/1001.pdf"}`, nil, http.StatusUnauthorized},
		{"relative url", svc, `{"url":"/inv/1001.pdf"}`, nil, http.StatusUnprocessableEntity},
		{"already attached", svc, `{"url":"https://files.example.com/other.pdf"}`, order.ErrInvoiceAttached, http.StatusConflict},
		{"storage failure", svc, `{"url":"https://files.example.com/inv/1001.pdf"}`, errors.New("conn reset"), http.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.orders.attachErr = tt.attachErr

			w, _ := f.do(t, call{method: http.MethodPut, path: "/api/orders/1001/invoice", body: tt.body, headers: tt.headers})
			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusNoContent {
				assert.Equal(t, "https://files.example.com/inv/1001.pdf", f.orders.gotInvoice)
			}
		})
	}
}
