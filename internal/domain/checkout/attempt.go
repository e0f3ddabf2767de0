// Package checkout drives a single checkout attempt from draft through
// payment.
//
// An attempt moves Draft → PricingComputed → PaymentInitiated and ends in
// PaymentSucceeded, PaymentFailed or Cancelled. A failed or cancelled attempt
// is never resumed; Reopen starts a new draft from its inputs.
package checkout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

// Inputs is what the customer edits during checkout.
type Inputs struct {
	Customer     order.Customer
	Address      order.Address
	Agreement    bool
	Lines        []pricing.CartLine
	Shipping     pricing.ShippingKey
	DiscountCode string
}

// Attempt is one pass through pricing, payment and confirmation.
type Attempt struct {
	ID     uuid.UUID
	Status Status
	Inputs

	// Discount is the applied code, nil when none applies.
	Discount    *discount.Code
	DiscountErr *DiscountError
	Breakdown   pricing.Breakdown

	OrderNumber    int64
	OrderReference string
	Payment        order.Payment
	FailureReason  string
	ReopenedFrom   uuid.NullUUID

	// Version guards concurrent updates. Repositories bump it on every write.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Intent is a gateway payment order the hosted payment UI is opened for.
type Intent struct {
	GatewayOrderID string
	KeyID          string
	Amount         int64
	Currency       string
	Receipt        string
}

// IntentRequest asks the gateway for a payment order. Amount is in minor
// units.
type IntentRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// Confirmation is the success callback of the hosted payment UI.
type Confirmation struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Repository persists attempts.
type Repository interface {
	Create(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, id uuid.UUID) (*Attempt, error)
	// Update writes a if its Version still matches storage and bumps it.
	// It returns ErrConflict otherwise.
	Update(ctx context.Context, a *Attempt) error
}

// Gateway is the payment processor.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	// VerifyPayment checks the confirmation came from the gateway. It returns
	// ErrSignatureMismatch when it did not.
	VerifyPayment(c Confirmation) error
}

// Notifier tells the invoice and email collaborators about a paid order.
type Notifier interface {
	OrderConfirmed(ctx context.Context, o *order.Order) error
}

// OrderNumbers reserves order numbers.
type OrderNumbers interface {
	Allocate(ctx context.Context) (order.Allocation, error)
}
