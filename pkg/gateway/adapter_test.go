package gateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/square"
)

type fakeProvider struct {
	checkout *Checkout
	err      error
	delay    time.Duration
	calls    int
	last     CheckoutRequest
}

func (f *fakeProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	f.calls++
	f.last = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.checkout, f.err
}

type timeoutNetError struct{}

func (timeoutNetError) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutNetError) Timeout() bool   { return true }
func (timeoutNetError) Temporary() bool { return true }

var _ net.Error = timeoutNetError{}

func newTestAdapter(t *testing.T, provider Provider, timeout time.Duration) *Adapter {
	t.Helper()
	adapter, err := NewAdapter(provider, config.GatewayConfig{Timeout: timeout}, nil, nil)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func testRequest(kind Kind) Request {
	return Request{
		OrderID:     uuid.New(),
		Amount:      decimal.RequireFromString("25.00"),
		CallbackURL: "https://api.example.com/api/v1/payments/callback",
		Kind:        kind,
	}
}

func TestRequestPaymentMapsDisplay(t *testing.T) {
	provider := &fakeProvider{checkout: &Checkout{Reference: "sq-order-1", URL: "https://square.link/u/abc"}}
	adapter := newTestAdapter(t, provider, time.Second)

	qr, err := adapter.RequestPayment(context.Background(), testRequest(KindQR))
	if err != nil {
		t.Fatalf("request qr: %v", err)
	}
	if qr.ReferenceCode != "sq-order-1" {
		t.Fatalf("unexpected reference %q", qr.ReferenceCode)
	}
	if qr.Display.QRContent != "https://square.link/u/abc" || qr.Display.RedirectURL != "" {
		t.Fatalf("unexpected qr display %+v", qr.Display)
	}
	if provider.last.AmountCents != 2500 {
		t.Fatalf("expected 2500 cents, got %d", provider.last.AmountCents)
	}

	redirect, err := adapter.RequestPayment(context.Background(), testRequest(KindRedirect))
	if err != nil {
		t.Fatalf("request redirect: %v", err)
	}
	if redirect.Display.RedirectURL != "https://square.link/u/abc" || redirect.Display.QRContent != "" {
		t.Fatalf("unexpected redirect display %+v", redirect.Display)
	}
}

func TestRequestPaymentClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"dependency error", pkgerrors.New(pkgerrors.CodeDependency, "square down"), ErrUnreachable},
		{"net error", timeoutNetError{}, ErrUnreachable},
		{"deadline", context.DeadlineExceeded, ErrUnreachable},
		{"provider rate limited", pkgerrors.New(pkgerrors.CodeRateLimit, "square throttled"), ErrUnreachable},
		{"provider 5xx", pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("503 service unavailable"), "square create payment link failed"), ErrUnreachable},
		{"validation error", pkgerrors.New(pkgerrors.CodeValidation, "bad amount"), ErrRejected},
		{"plain error", errors.New("card declined"), ErrRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			adapter := newTestAdapter(t, &fakeProvider{err: tc.err}, time.Second)
			_, err := adapter.RequestPayment(context.Background(), testRequest(KindQR))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRequestPaymentTimeoutIsUnreachable(t *testing.T) {
	provider := &fakeProvider{
		checkout: &Checkout{Reference: "late", URL: "https://late"},
		delay:    200 * time.Millisecond,
	}
	adapter := newTestAdapter(t, provider, 20*time.Millisecond)

	_, err := adapter.RequestPayment(context.Background(), testRequest(KindRedirect))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected unreachable on timeout, got %v", err)
	}
}

func TestRequestPaymentThrottledIsUnreachable(t *testing.T) {
	provider := &fakeProvider{checkout: &Checkout{Reference: "sq-order-1", URL: "https://square.link/u/abc"}}
	adapter, err := NewAdapter(provider, config.GatewayConfig{Timeout: 200 * time.Millisecond, RatePerSecond: 1, Burst: 1}, nil, nil)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	if _, err := adapter.RequestPayment(context.Background(), testRequest(KindQR)); err != nil {
		t.Fatalf("first request: %v", err)
	}
	_, err = adapter.RequestPayment(context.Background(), testRequest(KindQR))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected unreachable when throttled, got %v", err)
	}
	if errors.Is(err, ErrRejected) {
		t.Fatalf("throttled request must not be rejected: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("throttled request should not reach provider, got %d calls", provider.calls)
	}
}

func TestRequestPaymentRejectsBadInput(t *testing.T) {
	provider := &fakeProvider{checkout: &Checkout{Reference: "r", URL: "u"}}
	adapter := newTestAdapter(t, provider, time.Second)

	req := testRequest("card")
	if _, err := adapter.RequestPayment(context.Background(), req); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejected for unknown kind, got %v", err)
	}

	req = testRequest(KindQR)
	req.Amount = decimal.Zero
	if _, err := adapter.RequestPayment(context.Background(), req); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejected for zero amount, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("provider should not be called, got %d calls", provider.calls)
	}
}

func TestRequestPaymentIncompleteCheckout(t *testing.T) {
	adapter := newTestAdapter(t, &fakeProvider{checkout: &Checkout{Reference: "r"}}, time.Second)
	if _, err := adapter.RequestPayment(context.Background(), testRequest(KindQR)); !errors.Is(err, ErrRejected) {
		t.Fatalf("expected rejected for missing url, got %v", err)
	}
}

func TestNewAdapterRequiresProvider(t *testing.T) {
	if _, err := NewAdapter(nil, config.GatewayConfig{}, nil, nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

type fakeLinkCreator struct {
	link   *square.PaymentLink
	params square.PaymentLinkParams
}

func (f *fakeLinkCreator) CreatePaymentLink(_ context.Context, params square.PaymentLinkParams) (*square.PaymentLink, error) {
	f.params = params
	return f.link, nil
}

func TestSquareProviderPrefersSquareOrderID(t *testing.T) {
	creator := &fakeLinkCreator{link: &square.PaymentLink{ID: "link-1", URL: "https://square.link/u/x", SquareOrderID: "sq-order-9"}}
	provider, err := NewSquareProvider(creator)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	checkout, err := provider.CreateCheckout(context.Background(), CheckoutRequest{Reference: "ord-1", AmountCents: 1000, ReturnURL: "https://cb"})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if checkout.Reference != "sq-order-9" {
		t.Fatalf("expected square order id reference, got %q", checkout.Reference)
	}
	if creator.params.IdempotencyKey != "order-ord-1" {
		t.Fatalf("unexpected idempotency key %q", creator.params.IdempotencyKey)
	}

	creator.link.SquareOrderID = ""
	checkout, err = provider.CreateCheckout(context.Background(), CheckoutRequest{Reference: "ord-2", AmountCents: 1000})
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if checkout.Reference != "link-1" {
		t.Fatalf("expected link id fallback, got %q", checkout.Reference)
	}
}
