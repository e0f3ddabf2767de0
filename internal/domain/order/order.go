package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when no order has the requested number.
	ErrNotFound = errors.New("order not found")
	// ErrAlreadyExists is returned when an order with the same number was
	// already persisted.
	ErrAlreadyExists = errors.New("order already exists")
	// ErrInvoiceAttached is returned when an invoice URL is already set.
	ErrInvoiceAttached = errors.New("invoice already attached")
)

// Customer is the contact snapshot taken at checkout.
type Customer struct {
	UID   string `json:"uid,omitempty"`
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"required,min=10,max=15"`
}

// Address is the delivery address snapshot taken at checkout.
type Address struct {
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required,numeric,min=4,max=10"`
	Country    string `json:"country" validate:"required,len=2"`
}

// Payment is the gateway reference of a charge. Amount is in minor units.
type Payment struct {
	GatewayOrderID string `json:"gatewayOrderId,omitempty"`
	PaymentID      string `json:"paymentId,omitempty"`
	Amount         int64  `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
}

// Order is a paid checkout. It is written once after a successful payment
// and only ever updated to attach the invoice URL.
type Order struct {
	Number       int64
	Reference    string
	AttemptID    uuid.UUID
	Customer     Customer
	Address      Address
	Lines        []pricing.CartLine
	Breakdown    pricing.Breakdown
	DiscountCode string
	Shipping     pricing.ShippingKey
	Payment      Payment
	InvoiceURL   string
	CreatedAt    time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, number int64) (*Order, error)
	ListByEmail(ctx context.Context, email string) ([]Order, error)
	AttachInvoice(ctx context.Context, number int64, url string) error
}
