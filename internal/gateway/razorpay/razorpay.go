// Package razorpay is a minimal Razorpay Orders API client.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/xenking/candle-checkout/internal/domain/checkout"
)

const (
	// DefaultBaseURL is the production API endpoint.
	DefaultBaseURL = "https://api.razorpay.com"

	maxResponseSize = 1 << 20
)

// Config holds the API credentials.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("razorpay: status %d", e.StatusCode)
	}
	return fmt.Sprintf("razorpay: status %d: %s: %s", e.StatusCode, e.Code, e.Description)
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

var _ checkout.Gateway = (*Client)(nil)

// Client creates payment orders and verifies checkout signatures.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New returns a Client for the given credentials.
func New(cfg Config, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL:   baseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type orderResponse struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// CreateIntent opens a payment order for the hosted checkout widget.
func (c *Client) CreateIntent(ctx context.Context, req checkout.IntentRequest) (*checkout.Intent, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders",
		bytes.NewReader(encodeOrderRequest(req)))
	if err != nil {
		return nil, errors.Wrap(err, "build order request")
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(err, "send order request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read order response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, decodeAPIError(resp.StatusCode, data)
	}

	o, err := decodeOrder(data)
	if err != nil {
		return nil, errors.Wrap(err, "decode order response")
	}
	if o.ID == "" {
		return nil, errors.New("order response has no id")
	}

	return &checkout.Intent{
		GatewayOrderID: o.ID,
		KeyID:          c.keyID,
		Amount:         o.Amount,
		Currency:       o.Currency,
		Receipt:        o.Receipt,
	}, nil
}

// VerifyPayment checks the checkout signature, an HMAC-SHA256 of
// "<order id>|<payment id>" keyed with the API secret.
func (c *Client) VerifyPayment(conf checkout.Confirmation) error {
	if conf.PaymentID == "" || conf.Signature == "" {
		return checkout.ErrSignatureMismatch
	}
	got, err := hex.DecodeString(conf.Signature)
	if err != nil {
		return checkout.ErrSignatureMismatch
	}
	if !hmac.Equal(got, Sign(c.keySecret, conf.GatewayOrderID, conf.PaymentID)) {
		return checkout.ErrSignatureMismatch
	}
	return nil
}

// Sign computes the raw checkout signature.
func Sign(secret, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

func encodeOrderRequest(req checkout.IntentRequest) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("amount", func(e *jx.Encoder) { e.Int64(req.Amount) })
		e.Field("currency", func(e *jx.Encoder) { e.Str(req.Currency) })
		e.Field("receipt", func(e *jx.Encoder) { e.Str(req.Receipt) })
		if len(req.Notes) == 0 {
			return
		}
		keys := make([]string, 0, len(req.Notes))
		for k := range req.Notes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		e.Field("notes", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, k := range keys {
					e.Field(k, func(e *jx.Encoder) { e.Str(req.Notes[k]) })
				}
			})
		})
	})
	return e.Bytes()
}

func decodeOrder(data []byte) (orderResponse, error) {
	var o orderResponse
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			o.ID, err = d.Str()
		case "amount":
			o.Amount, err = d.Int64()
		case "currency":
			o.Currency, err = d.Str()
		case "receipt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			o.Receipt, err = d.Str()
		case "status":
			o.Status, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return o, err
}

func decodeAPIError(status int, data []byte) error {
	apiErr := &APIError{StatusCode: status}
	_ = jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		if key != "error" {
			return d.Skip()
		}
		return d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "code":
				apiErr.Code, err = d.Str()
			case "description":
				apiErr.Description, err = d.Str()
			default:
				err = d.Skip()
			}
			return err
		})
	})
	return apiErr
}
