package checkout

// Status is the lifecycle position of a checkout attempt.
type Status string

const (
	StatusDraft            Status = "Draft"
	StatusPricingComputed  Status = "PricingComputed"
	StatusPaymentInitiated Status = "PaymentInitiated"
	StatusPaymentSucceeded Status = "PaymentSucceeded"
	StatusPaymentFailed    Status = "PaymentFailed"
	StatusCancelled        Status = "Cancelled"
)

var transitions = map[Status][]Status{
	StatusDraft:            {StatusPricingComputed},
	StatusPricingComputed:  {StatusPricingComputed, StatusPaymentInitiated},
	StatusPaymentInitiated: {StatusPaymentSucceeded, StatusPaymentFailed, StatusCancelled},
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusPaymentSucceeded || s == StatusPaymentFailed || s == StatusCancelled
}

// CanReopen reports whether a fresh draft may be started from s.
func (s Status) CanReopen() bool {
	return s == StatusPaymentFailed || s == StatusCancelled
}

// AcceptsPayment reports whether a verified payment may still settle an
// attempt in s. A dismiss or failure callback can race the gateway's success
// callback; the charge wins over both.
func (s Status) AcceptsPayment() bool {
	return s == StatusPaymentInitiated || s == StatusPaymentFailed || s == StatusCancelled
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPricingComputed, StatusPaymentInitiated,
		StatusPaymentSucceeded, StatusPaymentFailed, StatusCancelled:
		return true
	}
	return false
}

// String representation (for logging)
func (s Status) String() string {
	return string(s)
}
