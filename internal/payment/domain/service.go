package domain

import (
	"context"
	"errors"
)

// OutcomeCode classifies the result of a charge attempt.
type OutcomeCode string

const (
	// OutcomePaid covers both successful card charges and fully-credited
	// invoices that never reach the processor.
	OutcomePaid OutcomeCode = "paid"
	// OutcomeCardDeclined is a processor-reported card failure: the payment
	// is FAILED and eligible for one retry next cycle.
	OutcomeCardDeclined OutcomeCode = "card_declined"
	// OutcomeNoPaymentMethod means the account has no processor customer
	// record to charge.
	OutcomeNoPaymentMethod OutcomeCode = "no_payment_method"
	// OutcomeTransient is an unexpected processor error. Account state is
	// left untouched so the next run re-attempts cleanly.
	OutcomeTransient OutcomeCode = "transient"
)

// Outcome is the classified result of one charge or retry attempt.
type Outcome struct {
	Code      OutcomeCode
	Err       error
	CardLast4 string
}

var (
	ErrNoPaymentMethod = errors.New("payment: no payment method on file")
	ErrAccountMissing  = errors.New("payment: account not found")
	ErrCardNotFound    = errors.New("payment: card not found")
)

// Service submits invoice charges against the payment processor.
type Service interface {
	// Charge attempts the first charge for an INITIATED payment.
	Charge(ctx context.Context, payment *Payment) Outcome
	// Retry re-attempts a FAILED payment from the previous period. A second
	// card failure is terminal: the account's license gets deactivated and
	// blocked, and the remote license server is updated.
	Retry(ctx context.Context, payment *Payment) Outcome
	// EnsureCustomer creates (or returns) the processor customer for an
	// account and attaches the given card token.
	EnsureCustomer(ctx context.Context, accountID int64, cardToken string) (*StripeCustomer, *StripeCard, error)
	// RemoveCard detaches a stored card at the processor and deletes the
	// local reference.
	RemoveCard(ctx context.Context, accountID int64, cardID string) error
	// CustomerForAccount loads the processor customer link, or nil.
	CustomerForAccount(ctx context.Context, accountID int64) (*StripeCustomer, error)
	// DefaultCardLast4 returns the display digits of the account's default
	// card, or "" when unavailable.
	DefaultCardLast4(ctx context.Context, accountID int64) string
}

// Gateway is the thin boundary over the processor SDK, kept narrow so tests
// can stub it.
type Gateway interface {
	CreateCharge(ctx context.Context, customerID string, amountCents int64, currency, description string) (string, error)
	CreateCustomer(ctx context.Context, email, description, cardToken string) (string, error)
	AttachCard(ctx context.Context, customerID, cardToken string) (cardID, last4 string, err error)
	DefaultCardLast4(ctx context.Context, customerID string) (string, error)
	DeleteCard(ctx context.Context, customerID, cardID string) error
	// IsCardError reports whether err is a processor-reported card failure.
	IsCardError(err error) bool
}
