package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind selects how the buyer completes a gateway payment.
type Kind string

const (
	KindQR       Kind = "qr"
	KindRedirect Kind = "redirect"
)

func (k Kind) IsValid() bool {
	return k == KindQR || k == KindRedirect
}

var (
	// ErrRejected means the provider definitively refused the payment request.
	ErrRejected = errors.New("gateway rejected payment request")
	// ErrUnreachable means the outcome is unknown: timeout, transport failure or provider outage.
	ErrUnreachable = errors.New("gateway unreachable")
)

// Request is what the dispatcher asks the gateway for.
type Request struct {
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	CallbackURL string
	Kind        Kind
}

// Display tells the client how to hand the buyer over to the provider.
type Display struct {
	Kind        Kind
	RedirectURL string
	QRContent   string
}

type Result struct {
	ReferenceCode string
	Display       Display
}

// CheckoutRequest is the provider-facing shape of a payment request.
type CheckoutRequest struct {
	Reference   string
	AmountCents int64
	ReturnURL   string
	Description string
}

// Checkout is a hosted checkout opened by a provider.
type Checkout struct {
	Reference string
	URL       string
}

// Provider opens hosted checkouts. Implementations report transport failures with a
// pkg/errors DEPENDENCY_ERROR so the adapter can tell ambiguous failures from refusals.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
}
