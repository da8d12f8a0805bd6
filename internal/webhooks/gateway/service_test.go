package gatewaywebhook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/redis"
)

type stubReconciler struct {
	calls []reconcile.Callback
	err   error
}

func (s *stubReconciler) Reconcile(_ context.Context, cb reconcile.Callback) (*reconcile.Outcome, error) {
	s.calls = append(s.calls, cb)
	if s.err != nil {
		return nil, s.err
	}
	return &reconcile.Outcome{}, nil
}

func paymentEvent(eventType, status string) *SquareWebhookEvent {
	return &SquareWebhookEvent{
		EventID: "evt_1",
		Type:    eventType,
		Data: SquareWebhookData{
			Type:   "payment",
			ID:     "pay_1",
			Object: SquareWebhookObject{Payment: &SquarePayment{ID: "pay_1", OrderID: "sq_order_1", Status: status}},
		},
	}
}

func TestHandleEventMapsPaymentStatus(t *testing.T) {
	cases := []struct {
		status  string
		outcome reconcile.CallbackOutcome
		calls   int
	}{
		{"COMPLETED", reconcile.OutcomeSuccess, 1},
		{"FAILED", reconcile.OutcomeFailure, 1},
		{"CANCELED", reconcile.OutcomeFailure, 1},
		{"APPROVED", "", 0},
		{"PENDING", "", 0},
	}
	for _, tc := range cases {
		stub := &stubReconciler{}
		svc, err := NewService(stub, nil)
		if err != nil {
			t.Fatalf("NewService: %v", err)
		}
		if err := svc.HandleEvent(context.Background(), paymentEvent("payment.updated", tc.status)); err != nil {
			t.Fatalf("%s: unexpected error %v", tc.status, err)
		}
		if len(stub.calls) != tc.calls {
			t.Fatalf("%s: expected %d reconcile calls, got %d", tc.status, tc.calls, len(stub.calls))
		}
		if tc.calls == 0 {
			continue
		}
		got := stub.calls[0]
		if got.Outcome != tc.outcome || got.ProviderReference != "sq_order_1" {
			t.Fatalf("%s: unexpected callback %+v", tc.status, got)
		}
		if tc.outcome == reconcile.OutcomeSuccess && got.TransactionID != "pay_1" {
			t.Fatalf("expected transaction id pay_1, got %q", got.TransactionID)
		}
	}
}

func TestHandleEventIgnoresOtherTypes(t *testing.T) {
	stub := &stubReconciler{}
	svc, _ := NewService(stub, nil)
	if err := svc.HandleEvent(context.Background(), paymentEvent("refund.updated", "COMPLETED")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatal("expected refund events to be ignored")
	}
}

func TestHandleEventUnknownOrderIsAcknowledged(t *testing.T) {
	stub := &stubReconciler{err: pkgerrors.New(pkgerrors.CodeUnknownOrder, "unknown")}
	svc, _ := NewService(stub, nil)
	if err := svc.HandleEvent(context.Background(), paymentEvent("payment.updated", "COMPLETED")); err != nil {
		t.Fatalf("expected unknown orders to be acknowledged, got %v", err)
	}

	stub.err = errors.New("db down")
	if err := svc.HandleEvent(context.Background(), paymentEvent("payment.updated", "COMPLETED")); err == nil {
		t.Fatal("expected dependency errors to surface for redelivery")
	}
}

func TestHandleEventValidatesPayload(t *testing.T) {
	svc, _ := NewService(&stubReconciler{}, nil)
	event := paymentEvent("payment.updated", "COMPLETED")
	event.Data.Object.Payment = nil
	if err := svc.HandleEvent(context.Background(), event); pkgerrors.CodeOf(err) != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestIdempotencyGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	store := redis.NewFromRaw(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	guard, err := NewIdempotencyGuard(store, time.Minute, "square-webhook")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}
	ctx := context.Background()

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("expected first delivery to be new, got seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || !seen {
		t.Fatalf("expected redelivery to be seen, got seen=%v err=%v", seen, err)
	}
	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if seen, _ := guard.CheckAndMark(ctx, "evt_1"); seen {
		t.Fatal("expected key to be released after delete")
	}
	if _, err := NewIdempotencyGuard(store, time.Minute, ""); err == nil {
		t.Fatal("expected scope to be required")
	}
}
