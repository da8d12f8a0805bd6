package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/angelmondragon/marketplace-orders/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/metrics"
)

const defaultTimeout = 10 * time.Second

// Adapter bounds and classifies every outbound payment request. It never touches the database.
type Adapter struct {
	provider Provider
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewAdapter(provider Provider, cfg config.GatewayConfig, m *metrics.PaymentMetrics, logg *logger.Logger) (*Adapter, error) {
	if provider == nil {
		return nil, fmt.Errorf("gateway provider required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Adapter{
		provider: provider,
		limiter:  rate.NewLimiter(limit, burst),
		timeout:  timeout,
		metrics:  m,
		logg:     logg,
	}, nil
}

// RequestPayment opens a checkout for the order and maps it to a display payload.
// Errors wrap ErrRejected or ErrUnreachable.
func (a *Adapter) RequestPayment(ctx context.Context, req Request) (*Result, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unsupported kind %q", ErrRejected, req.Kind)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrRejected)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	checkout, err := a.call(callCtx, req)
	if err != nil {
		classified := classify(err)
		a.metrics.ObserveGateway(string(req.Kind), outcomeLabel(classified), time.Since(start))
		a.log(ctx, req, err)
		return nil, classified
	}
	a.metrics.ObserveGateway(string(req.Kind), "ok", time.Since(start))

	return &Result{
		ReferenceCode: checkout.Reference,
		Display:       displayFor(req.Kind, checkout.URL),
	}, nil
}

func (a *Adapter) call(ctx context.Context, req Request) (*Checkout, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: throttled before reaching provider: %w", ErrUnreachable, err)
	}
	checkout, err := a.provider.CreateCheckout(ctx, CheckoutRequest{
		Reference:   req.OrderID.String(),
		AmountCents: req.Amount.Shift(2).Round(0).IntPart(),
		ReturnURL:   req.CallbackURL,
		Description: "Order " + req.OrderID.String(),
	})
	if err != nil {
		return nil, err
	}
	if checkout == nil || strings.TrimSpace(checkout.Reference) == "" || strings.TrimSpace(checkout.URL) == "" {
		return nil, fmt.Errorf("%w: provider returned an incomplete checkout", ErrRejected)
	}
	return checkout, nil
}

func displayFor(kind Kind, url string) Display {
	if kind == KindQR {
		return Display{Kind: kind, QRContent: url}
	}
	return Display{Kind: kind, RedirectURL: url}
}

func classify(err error) error {
	if errors.Is(err, ErrRejected) || errors.Is(err, ErrUnreachable) {
		return err
	}
	if isUnreachable(err) {
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	return fmt.Errorf("%w: %w", ErrRejected, err)
}

func isUnreachable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	// provider throttling and 5xx (mapped to CodeDependency) are transient
	if pkgerrors.IsCode(err, pkgerrors.CodeDependency) || pkgerrors.IsCode(err, pkgerrors.CodeRateLimit) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func outcomeLabel(err error) string {
	if errors.Is(err, ErrUnreachable) {
		return "unreachable"
	}
	return "rejected"
}

func (a *Adapter) log(ctx context.Context, req Request, err error) {
	if a.logg == nil {
		return
	}
	ctx = a.logg.WithFields(ctx, map[string]any{
		"order_id":     req.OrderID.String(),
		"gateway_kind": string(req.Kind),
	})
	a.logg.Warn(ctx, "gateway request failed: "+err.Error())
}
