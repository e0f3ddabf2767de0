package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/candle-checkout/internal/domain/discount"
	"github.com/xenking/candle-checkout/internal/domain/order"
	"github.com/xenking/candle-checkout/internal/domain/pricing"
)

const (
	// DefaultCurrency is the ISO code amounts are charged in.
	DefaultCurrency = "INR"
	// DefaultMinimumCharge is the smallest amount, in minor units, the
	// gateway accepts.
	DefaultMinimumCharge int64 = 100

	settleAttempts = 3
)

var minorUnits = decimal.NewFromInt(100)

// Dependencies are the collaborators a Service needs.
type Dependencies struct {
	Attempts  Repository
	Discounts discount.Lookup
	Shipping  pricing.ShippingRepository
	Engine    *pricing.Engine
	Numbers   OrderNumbers
	Gateway   Gateway
	Orders    order.Repository
	Notifier  Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithCurrency sets the charge currency.
func WithCurrency(currency string) Option {
	return func(s *Service) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// WithMinimumCharge sets the smallest chargeable total in minor units.
func WithMinimumCharge(minor int64) Option {
	return func(s *Service) {
		s.minCharge = minor
	}
}

// WithMeterProvider records status transitions on the given provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.meter = mp.Meter("github.com/xenking/candle-checkout/internal/domain/checkout")
	}
}

// Quote is a priced set of inputs that belongs to no attempt.
type Quote struct {
	Breakdown   pricing.Breakdown
	Discount    *discount.Code
	DiscountErr *DiscountError
}

// Service encapsulates checkout business logic.
type Service struct {
	attempts  Repository
	discounts discount.Lookup
	shipping  pricing.ShippingRepository
	engine    *pricing.Engine
	numbers   OrderNumbers
	gateway   Gateway
	orders    order.Repository
	notifier  Notifier

	currency    string
	minCharge   int64
	validate    *validator.Validate
	meter       metric.Meter
	transitions metric.Int64Counter
	now         func() time.Time
}

// NewService creates a checkout Service.
func NewService(deps Dependencies, opts ...Option) *Service {
	s := &Service{
		attempts:  deps.Attempts,
		discounts: deps.Discounts,
		shipping:  deps.Shipping,
		engine:    deps.Engine,
		numbers:   deps.Numbers,
		gateway:   deps.Gateway,
		orders:    deps.Orders,
		notifier:  deps.Notifier,
		currency:  DefaultCurrency,
		minCharge: DefaultMinimumCharge,
		validate:  newValidator(),
		meter:     noop.NewMeterProvider().Meter(""),
		now:       time.Now,
	}
	if s.engine == nil {
		s.engine = pricing.NewEngine(pricing.DefaultTaxRate)
	}
	for _, o := range opts {
		o(s)
	}

	counter, err := s.meter.Int64Counter("checkout.transitions",
		metric.WithDescription("Checkout attempts entering a status"),
	)
	if err != nil {
		counter, _ = noop.NewMeterProvider().Meter("").Int64Counter("checkout.transitions")
	}
	s.transitions = counter
	return s
}

// Start opens a draft attempt for the given inputs.
func (s *Service) Start(ctx context.Context, in Inputs) (*Attempt, error) {
	if verr := validateLines(in); verr != nil {
		return nil, verr
	}

	now := s.now()
	a := &Attempt{
		ID:        uuid.New(),
		Status:    StatusDraft,
		Inputs:    normalizeInputs(in),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, &PersistenceError{Op: "create checkout attempt", Err: err}
	}
	s.record(ctx, a.Status)

	zctx.From(ctx).Info("Checkout started",
		zap.Stringer("attempt_id", a.ID),
		zap.Int("lines", len(a.Lines)),
	)
	return a, nil
}

// Get returns the attempt with the given ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	a, err := s.attempts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, &PersistenceError{Op: "load checkout attempt", Err: err}
	}
	return a, nil
}

// Quote prices in without creating or touching an attempt.
func (s *Service) Quote(ctx context.Context, in Inputs) (*Quote, error) {
	if verr := validateLines(in); verr != nil {
		return nil, verr
	}
	return s.price(ctx, normalizeInputs(in))
}

// Price replaces the attempt's inputs and recomputes its breakdown from
// scratch. A code that cannot be applied is reported on the attempt's
// DiscountErr; pricing still succeeds without it.
func (s *Service) Price(ctx context.Context, id uuid.UUID, in Inputs) (*Attempt, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(StatusPricingComputed) {
		return nil, &TransitionError{From: a.Status, To: StatusPricingComputed}
	}
	if verr := validateLines(in); verr != nil {
		return nil, verr
	}

	in = normalizeInputs(in)
	q, err := s.price(ctx, in)
	if err != nil {
		return nil, err
	}

	a.Inputs = in
	a.Breakdown = q.Breakdown
	a.Discount = q.Discount
	a.DiscountErr = q.DiscountErr
	if err := s.transition(ctx, a, StatusPricingComputed); err != nil {
		return nil, err
	}
	return a, nil
}

// InitiatePayment validates the customer details, reserves an order number
// and opens a gateway payment order. Nothing is charged if the order number
// cannot be reserved.
func (s *Service) InitiatePayment(ctx context.Context, id uuid.UUID) (*Attempt, *Intent, error) {
	lg := zctx.From(ctx)

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if a.Status != StatusPricingComputed {
		return nil, nil, &TransitionError{From: a.Status, To: StatusPaymentInitiated}
	}
	if err := s.validateForPayment(a.Inputs); err != nil {
		return nil, nil, err
	}

	amount := toMinor(a.Breakdown.Total)
	if amount < s.minCharge {
		return nil, nil, invalid("total", "below the minimum chargeable amount")
	}

	alloc, err := s.numbers.Allocate(ctx)
	if err != nil {
		lg.Error("Order number allocation failed", zap.Stringer("attempt_id", a.ID), zap.Error(err))
		return nil, nil, &PersistenceError{Op: "allocate order number", Err: err}
	}
	a.OrderNumber = alloc.Number
	a.OrderReference = alloc.Reference
	a.Payment = order.Payment{Amount: amount, Currency: s.currency}
	if err := s.transition(ctx, a, StatusPaymentInitiated); err != nil {
		return nil, nil, err
	}

	intent, err := s.gateway.CreateIntent(ctx, IntentRequest{
		Amount:   amount,
		Currency: s.currency,
		Receipt:  alloc.Reference,
		Notes: map[string]string{
			"attempt_id": a.ID.String(),
			"email":      a.Customer.Email,
		},
	})
	if err != nil {
		return nil, nil, s.failPayment(ctx, a, &PaymentError{Reason: "could not open payment", Err: err})
	}

	a.Payment.GatewayOrderID = intent.GatewayOrderID
	a.UpdatedAt = s.now()
	if err := s.save(ctx, a); err != nil {
		return nil, nil, err
	}

	lg.Info("Payment initiated",
		zap.Stringer("attempt_id", a.ID),
		zap.String("order_reference", a.OrderReference),
		zap.String("gateway_order_id", intent.GatewayOrderID),
		zap.Int64("amount", amount),
	)
	return a, intent, nil
}

// ConfirmPayment handles the gateway's success callback. A verified payment
// is stored as an order exactly once and announced to the notifier.
func (s *Service) ConfirmPayment(ctx context.Context, id uuid.UUID, c Confirmation) (*Attempt, *order.Order, error) {
	lg := zctx.From(ctx)

	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !a.Status.AcceptsPayment() {
		return nil, nil, &TransitionError{From: a.Status, To: StatusPaymentSucceeded}
	}
	if c.GatewayOrderID == "" || c.GatewayOrderID != a.Payment.GatewayOrderID {
		return nil, nil, &PaymentError{Reason: "payment does not belong to this checkout"}
	}
	if err := s.gateway.VerifyPayment(c); err != nil {
		perr := &PaymentError{Reason: "payment could not be verified", Err: err}
		if a.Status != StatusPaymentInitiated {
			return nil, nil, perr
		}
		return nil, nil, s.failPayment(ctx, a, perr)
	}

	a.Payment.PaymentID = c.PaymentID
	o := newOrder(a, s.now())
	if err := s.orders.Create(ctx, o); err != nil && !errors.Is(err, order.ErrAlreadyExists) {
		// The customer has been charged; this needs an operator.
		lg.Error("Paid order could not be stored",
			zap.String("order_reference", o.Reference),
			zap.String("payment_id", c.PaymentID),
			zap.Error(err),
		)
		return nil, nil, &PersistenceError{Op: "store order", Err: err}
	}

	settled, err := s.settle(ctx, a, c.PaymentID)
	if err != nil {
		return nil, nil, err
	}
	if !settled {
		// A concurrent confirmation settled the attempt and announced the order.
		return a, o, nil
	}

	if err := s.notifier.OrderConfirmed(ctx, o); err != nil {
		lg.Warn("Order confirmation not delivered",
			zap.String("order_reference", o.Reference),
			zap.Error(err),
		)
	}
	return a, o, nil
}

// FailPayment handles the gateway's failure callback.
func (s *Service) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*Attempt, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusPaymentInitiated {
		return nil, &TransitionError{From: a.Status, To: StatusPaymentFailed}
	}
	if reason == "" {
		reason = "payment failed at gateway"
	}
	a.FailureReason = reason
	if err := s.transition(ctx, a, StatusPaymentFailed); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel handles the payment UI being dismissed. The cart is left as is.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	a, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return nil, &TransitionError{From: a.Status, To: StatusCancelled}
	}
	a.FailureReason = "cancelled by customer"
	if err := s.transition(ctx, a, StatusCancelled); err != nil {
		return nil, err
	}
	return a, nil
}

// Reopen starts a new draft carrying the inputs of a failed or cancelled
// attempt.
func (s *Service) Reopen(ctx context.Context, id uuid.UUID) (*Attempt, error) {
	prev, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !prev.Status.CanReopen() {
		return nil, &TransitionError{From: prev.Status, To: StatusDraft}
	}

	now := s.now()
	a := &Attempt{
		ID:           uuid.New(),
		Status:       StatusDraft,
		Inputs:       prev.Inputs,
		ReopenedFrom: uuid.NullUUID{UUID: prev.ID, Valid: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		return nil, &PersistenceError{Op: "create checkout attempt", Err: err}
	}
	s.record(ctx, a.Status)
	return a, nil
}

func (s *Service) price(ctx context.Context, in Inputs) (*Quote, error) {
	q := &Quote{}

	var code *discount.Code
	if in.DiscountCode != "" {
		c, err := s.discounts.Lookup(ctx, in.DiscountCode)
		switch {
		case err == nil:
			code = c
		case errors.Is(err, discount.ErrNotFound):
			q.DiscountErr = &DiscountError{Code: in.DiscountCode, Err: err}
		default:
			zctx.From(ctx).Warn("Discount lookup failed", zap.String("code", in.DiscountCode), zap.Error(err))
			q.DiscountErr = &DiscountError{Code: in.DiscountCode, Err: err}
		}
	}

	options, err := s.shippingOptions(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Compute(pricing.Input{
		Lines:    in.Lines,
		Shipping: in.Shipping,
		Discount: code,
		Options:  options,
	})
	if err != nil {
		if errors.Is(err, pricing.ErrUnknownShipping) {
			return nil, invalid("shipping", "unknown shipping option")
		}
		return nil, errors.Wrap(err, "compute pricing")
	}
	if res.DiscountErr != nil {
		q.DiscountErr = &DiscountError{Code: in.DiscountCode, Err: res.DiscountErr}
		code = nil
	}

	q.Breakdown = res.Breakdown
	q.Discount = code
	return q, nil
}

func (s *Service) shippingOptions(ctx context.Context) (pricing.ShippingOptions, error) {
	list, err := s.shipping.List(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "load shipping options", Err: err}
	}
	if len(list) == 0 {
		return pricing.DefaultShippingOptions(), nil
	}
	return pricing.NewShippingOptions(list), nil
}

// failPayment marks a as failed and returns perr for the caller.
func (s *Service) failPayment(ctx context.Context, a *Attempt, perr *PaymentError) error {
	a.FailureReason = perr.Error()
	if err := s.transition(ctx, a, StatusPaymentFailed); err != nil {
		zctx.From(ctx).Error("Could not record failed payment",
			zap.Stringer("attempt_id", a.ID),
			zap.Error(err),
		)
	}
	return perr
}

// settle marks a as paid. A version conflict means a dismiss or failure
// callback landed after the order was stored; the attempt is re-read and the
// payment applied on top of it. settled is false when another confirmation
// got there first.
func (s *Service) settle(ctx context.Context, a *Attempt, paymentID string) (settled bool, err error) {
	for try := 1; ; try++ {
		prev := a.Status
		switch {
		case prev == StatusPaymentSucceeded:
			return false, nil
		case !prev.AcceptsPayment():
			return false, &TransitionError{From: prev, To: StatusPaymentSucceeded}
		}

		a.Status = StatusPaymentSucceeded
		a.Payment.PaymentID = paymentID
		a.FailureReason = ""
		a.UpdatedAt = s.now()
		err := s.save(ctx, a)
		if err == nil {
			s.record(ctx, StatusPaymentSucceeded)
			zctx.From(ctx).Debug("Checkout transition",
				zap.Stringer("attempt_id", a.ID),
				zap.Stringer("from", prev),
				zap.Stringer("to", StatusPaymentSucceeded),
			)
			return true, nil
		}
		a.Status = prev
		if !errors.Is(err, ErrConflict) || try == settleAttempts {
			return false, err
		}

		fresh, err := s.Get(ctx, a.ID)
		if err != nil {
			return false, err
		}
		if prev == StatusPaymentInitiated && fresh.Status != prev {
			zctx.From(ctx).Warn("Verified payment overrides concurrent update",
				zap.Stringer("attempt_id", a.ID),
				zap.Stringer("status", fresh.Status),
				zap.String("payment_id", paymentID),
			)
		}
		*a = *fresh
	}
}

// transition moves a to next and persists it.
func (s *Service) transition(ctx context.Context, a *Attempt, next Status) error {
	prev := a.Status
	if !prev.CanTransitionTo(next) {
		return &TransitionError{From: prev, To: next}
	}

	a.Status = next
	a.UpdatedAt = s.now()
	if err := s.save(ctx, a); err != nil {
		a.Status = prev
		return err
	}
	s.record(ctx, next)

	zctx.From(ctx).Debug("Checkout transition",
		zap.Stringer("attempt_id", a.ID),
		zap.Stringer("from", prev),
		zap.Stringer("to", next),
	)
	return nil
}

func (s *Service) save(ctx context.Context, a *Attempt) error {
	if err := s.attempts.Update(ctx, a); err != nil {
		if errors.Is(err, ErrConflict) {
			return ErrConflict
		}
		return &PersistenceError{Op: "save checkout attempt", Err: err}
	}
	return nil
}

func (s *Service) record(ctx context.Context, status Status) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status.String())))
}

func normalizeInputs(in Inputs) Inputs {
	in.DiscountCode = discount.Normalize(in.DiscountCode)
	if in.Shipping == "" {
		in.Shipping = pricing.ShippingStandard
	}
	return in
}

func newOrder(a *Attempt, now time.Time) *order.Order {
	var code string
	if a.Discount != nil {
		code = a.Discount.Code
	}
	return &order.Order{
		Number:       a.OrderNumber,
		Reference:    a.OrderReference,
		AttemptID:    a.ID,
		Customer:     a.Customer,
		Address:      a.Address,
		Lines:        a.Lines,
		Breakdown:    a.Breakdown.Rounded(),
		DiscountCode: code,
		Shipping:     a.Shipping,
		Payment:      a.Payment,
		CreatedAt:    now,
	}
}

// toMinor converts a rupee amount to paise.
func toMinor(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(minorUnits).IntPart()
}
