package square

import (
	"context"
	"strings"

	sq "github.com/square/square-go-sdk"
	"github.com/square/square-go-sdk/checkout"
)

// PaymentLinkParams describes a quick-pay hosted checkout for a single order.
type PaymentLinkParams struct {
	OrderReference string
	Name           string
	AmountCents    int64
	RedirectURL    string
	IdempotencyKey string
}

// PaymentLink is the subset of the Square payment link the marketplace keeps.
type PaymentLink struct {
	ID            string
	URL           string
	SquareOrderID string
}

func (p PaymentLinkParams) toSquareRequest(idempotencyKey, locationID, currency string) *checkout.CreatePaymentLinkRequest {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = "Order " + p.OrderReference
	}
	req := &checkout.CreatePaymentLinkRequest{
		IdempotencyKey: ptrString(idempotencyKey),
		QuickPay: &sq.QuickPay{
			Name:       name,
			PriceMoney: moneyPtr(p.AmountCents, currency),
			LocationID: locationID,
		},
		PaymentNote: ptrString(p.OrderReference),
	}
	if redirect := ptrString(strings.TrimSpace(p.RedirectURL)); redirect != nil {
		req.CheckoutOptions = &sq.CheckoutOptions{RedirectURL: redirect}
	}
	return req
}

// CreatePaymentLink opens a hosted checkout. The order reference doubles as the idempotency key
// so a retried dispatch for the same order returns the same link.
func (c *Client) CreatePaymentLink(ctx context.Context, params PaymentLinkParams) (*PaymentLink, error) {
	if c == nil || c.sdk == nil {
		return nil, errAccessTokenRequired
	}
	key := c.ensureIdempotencyKey("payment_link", params.IdempotencyKey)
	req := params.toSquareRequest(key, c.locationID, c.currency)
	c.log(ctx, "request", "create_payment_link", map[string]any{
		"order_reference": params.OrderReference,
		"amount":          params.AmountCents,
		"location_id":     c.locationID,
	})

	resp, err := c.sdk.Checkout.PaymentLinks.Create(ctx, req)
	if err != nil {
		c.log(ctx, "error", "create_payment_link", map[string]any{"error": err.Error()})
		return nil, c.mapSquareError(err, "create payment link")
	}

	link := resp.GetPaymentLink()
	out := &PaymentLink{
		ID:            stringValue(link.GetID()),
		URL:           stringValue(link.GetURL()),
		SquareOrderID: stringValue(link.GetOrderID()),
	}
	c.log(ctx, "response", "create_payment_link", map[string]any{
		"payment_link_id": out.ID,
		"square_order_id": out.SquareOrderID,
	})
	return out, nil
}

func ptrString(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}

func currencyPtr(code string) *sq.Currency {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if trimmed == "" {
		return nil
	}
	c := sq.Currency(trimmed)
	return &c
}

func moneyPtr(amount int64, currency string) *sq.Money {
	return &sq.Money{
		Amount:   &amount,
		Currency: currencyPtr(currency),
	}
}
