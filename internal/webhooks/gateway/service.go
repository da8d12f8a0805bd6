package gatewaywebhook

import (
	"context"
	"strings"

	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, cb reconcile.Callback) (*reconcile.Outcome, error)
}

// Service maps Square payment events onto reconciler callbacks.
type Service struct {
	reconciler reconciler
	logg       *logger.Logger
}

func NewService(r reconciler, logg *logger.Logger) (*Service, error) {
	if r == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	return &Service{reconciler: r, logg: logg}, nil
}

type SquareWebhookEvent struct {
	MerchantID string            `json:"merchant_id"`
	EventID    string            `json:"event_id"`
	Type       string            `json:"type"`
	CreatedAt  string            `json:"created_at"`
	Data       SquareWebhookData `json:"data"`
}

type SquareWebhookData struct {
	Type   string              `json:"type"`
	ID     string              `json:"id"`
	Object SquareWebhookObject `json:"object"`
}

type SquareWebhookObject struct {
	Payment *SquarePayment `json:"payment"`
}

type SquarePayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// HandleEvent reconciles completed or failed Square payments. Other events are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *SquareWebhookEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
	default:
		return nil
	}

	payment := event.Data.Object.Payment
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if strings.TrimSpace(payment.OrderID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment order id missing")
	}

	cb := reconcile.Callback{ProviderReference: payment.OrderID, TransactionID: payment.ID}
	switch strings.ToUpper(payment.Status) {
	case "COMPLETED":
		cb.Outcome = reconcile.OutcomeSuccess
	case "FAILED", "CANCELED":
		cb.Outcome = reconcile.OutcomeFailure
		cb.TransactionID = ""
		cb.Reason = "square payment " + strings.ToLower(payment.Status)
	default:
		// APPROVED and PENDING settle later
		return nil
	}

	out, err := s.reconciler.Reconcile(ctx, cb)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnknownOrder) {
			// redelivery will never find it either
			s.warn(ctx, "square payment for unknown order reference "+payment.OrderID)
			return nil
		}
		return err
	}
	if out.Duplicate {
		s.info(ctx, "square payment already reconciled")
	}
	return nil
}

func (s *Service) info(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
