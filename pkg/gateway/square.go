package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/marketplace-orders/pkg/square"
)

type paymentLinkCreator interface {
	CreatePaymentLink(ctx context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error)
}

// SquareProvider opens Square quick-pay payment links.
type SquareProvider struct {
	client paymentLinkCreator
}

func NewSquareProvider(client paymentLinkCreator) (*SquareProvider, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareProvider{client: client}, nil
}

// CreateCheckout uses the Square order id as the reference because payment.updated
// webhooks carry it on the payment object.
func (p *SquareProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	link, err := p.client.CreatePaymentLink(ctx, square.PaymentLinkParams{
		OrderReference: req.Reference,
		Name:           req.Description,
		AmountCents:    req.AmountCents,
		RedirectURL:    req.ReturnURL,
		IdempotencyKey: "order-" + req.Reference,
	})
	if err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(link.SquareOrderID)
	if reference == "" {
		reference = link.ID
	}
	return &Checkout{Reference: reference, URL: link.URL}, nil
}
