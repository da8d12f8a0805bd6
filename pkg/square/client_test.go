package square

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
)

func TestEnsureIdempotencyKey(t *testing.T) {
	c := &Client{}
	// Provided key should be used verbatim.
	if got := c.ensureIdempotencyKey("pref", "custom-key"); got != "custom-key" {
		t.Fatalf("expected provided key, got %q", got)
	}
	// Empty key should be generated and include prefix.
	if got := c.ensureIdempotencyKey("prefix", ""); !strings.HasPrefix(got, "prefix-") {
		t.Fatalf("generated idempotency key %q missing prefix", got)
	}
	if got := c.ensureIdempotencyKey("  ", ""); !strings.HasPrefix(got, "mp-") {
		t.Fatalf("blank prefix should fall back to mp, got %q", got)
	}
}

func TestRedact(t *testing.T) {
	c := &Client{}
	out := c.redact("payment_token", "abc123")
	if out != "[REDACTED]" {
		t.Fatalf("expected redacted value, got %v", out)
	}
	// Non-sensitive keys should be preserved.
	if v := c.redact("status", "ok"); v != "ok" {
		t.Fatalf("unexpected redaction for safe key")
	}
}

func TestDomainCodeForStatus(t *testing.T) {
	tests := []struct {
		status int
		code   pkgerrors.Code
	}{
		{http.StatusUnauthorized, pkgerrors.CodeUnauthorized},
		{http.StatusForbidden, pkgerrors.CodeForbidden},
		{http.StatusNotFound, pkgerrors.CodeNotFound},
		{http.StatusConflict, pkgerrors.CodeConflict},
		{http.StatusTooManyRequests, pkgerrors.CodeRateLimit},
		{http.StatusBadRequest, pkgerrors.CodeValidation},
		{http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{http.StatusInternalServerError, pkgerrors.CodeDependency},
		{http.StatusBadGateway, pkgerrors.CodeDependency},
		{http.StatusServiceUnavailable, pkgerrors.CodeDependency},
	}
	for _, tt := range tests {
		if got := domainCodeForStatus(tt.status); got != tt.code {
			t.Fatalf("status %d expected %s got %s", tt.status, tt.code, got)
		}
	}
}

func TestMapSquareError(t *testing.T) {
	c := &Client{}
	table := []struct {
		name     string
		status   int
		payload  string
		wantCode pkgerrors.Code
	}{
		{
			name:     "authentication error",
			status:   http.StatusUnauthorized,
			payload:  `{"errors":[{"category":"AUTHENTICATION_ERROR","code":"UNAUTHORIZED"}]}`,
			wantCode: pkgerrors.CodeUnauthorized,
		},
		{
			name:     "idempotency key reused",
			status:   http.StatusConflict,
			payload:  `{"errors":[{"category":"API_ERROR","code":"IDEMPOTENCY_KEY_REUSED"}]}`,
			wantCode: pkgerrors.CodeIdempotency,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			payload:  `{"errors":[{"category":"RATE_LIMIT_ERROR","code":"RATE_LIMITED"}]}`,
			wantCode: pkgerrors.CodeRateLimit,
		},
		{
			name:     "service unavailable",
			status:   http.StatusServiceUnavailable,
			payload:  `{"errors":[{"category":"API_ERROR","code":"SERVICE_UNAVAILABLE"}]}`,
			wantCode: pkgerrors.CodeDependency,
		},
	}
	for _, tt := range table {
		err := sqcore.NewAPIError(tt.status, errors.New(tt.payload))
		mapped := c.mapSquareError(err, "operation")
		if mapped == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
		typed := pkgerrors.As(mapped)
		if typed == nil {
			t.Fatalf("%s: result is not pkgerror", tt.name)
		}
		if typed.Code() != tt.wantCode {
			t.Fatalf("%s: expected code %s, got %s", tt.name, tt.wantCode, typed.Code())
		}
	}
}

func TestExtractSquareErrors(t *testing.T) {
	c := &Client{}
	payload := `{"errors":[{"category":"API_ERROR","code":"BAD_REQUEST","detail":"oops"}]}`
	apiErr := sqcore.NewAPIError(http.StatusBadRequest, errors.New(payload))
	got := c.extractSquareErrors(apiErr)
	if len(got) != 1 {
		t.Fatalf("expected 1 error, got %d", len(got))
	}
	if got[0].GetCode() != sq.ErrorCodeBadRequest {
		t.Fatalf("unexpected error code %s", got[0].GetCode())
	}
}

func TestPaymentLinkParamsToSquareRequest(t *testing.T) {
	params := PaymentLinkParams{
		OrderReference: "2f6c0d9e-3f4d-4c1b-9a51-0d8e0f0b7a11",
		AmountCents:    2500,
		RedirectURL:    "https://api.example.com/api/v1/payments/callback",
	}
	req := params.toSquareRequest("key-1", "LOC1", "usd")

	if req.IdempotencyKey == nil || *req.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected idempotency key %v", req.IdempotencyKey)
	}
	if req.QuickPay == nil {
		t.Fatal("expected quick pay block")
	}
	if req.QuickPay.LocationID != "LOC1" {
		t.Fatalf("unexpected location %q", req.QuickPay.LocationID)
	}
	if !strings.HasPrefix(req.QuickPay.Name, "Order ") {
		t.Fatalf("expected default name, got %q", req.QuickPay.Name)
	}
	money := req.QuickPay.PriceMoney
	if money == nil || money.Amount == nil || *money.Amount != 2500 {
		t.Fatalf("unexpected amount %+v", money)
	}
	if money.Currency == nil || string(*money.Currency) != "USD" {
		t.Fatalf("expected USD currency, got %v", money.Currency)
	}
	if req.CheckoutOptions == nil || req.CheckoutOptions.RedirectURL == nil || *req.CheckoutOptions.RedirectURL != params.RedirectURL {
		t.Fatal("expected redirect url in checkout options")
	}
	if req.PaymentNote == nil || *req.PaymentNote != params.OrderReference {
		t.Fatal("expected order reference as payment note")
	}
}

func TestPaymentLinkParamsOmitsEmptyRedirect(t *testing.T) {
	req := PaymentLinkParams{OrderReference: "abc", Name: "Widgets", AmountCents: 100}.toSquareRequest("k", "LOC", "USD")
	if req.CheckoutOptions != nil {
		t.Fatal("expected no checkout options without redirect")
	}
	if req.QuickPay.Name != "Widgets" {
		t.Fatalf("unexpected name %q", req.QuickPay.Name)
	}
}

func TestNormalizeCurrencyAndEnv(t *testing.T) {
	if got := normalizeCurrency(" eur "); got != "EUR" {
		t.Fatalf("expected EUR, got %q", got)
	}
	if got := normalizeCurrency(""); got != "USD" {
		t.Fatalf("expected USD default, got %q", got)
	}
	if env, err := normalizeEnv(""); err != nil || env != sandboxEnv {
		t.Fatalf("expected sandbox default, got %q err=%v", env, err)
	}
	if _, err := normalizeEnv("staging"); err == nil {
		t.Fatal("expected invalid env error")
	}
}
