package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/gateway"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/metrics"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-orders/pkg/types"
)

const paymentsOrderUniqueConstraint = "payments_order_id_key"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewayClient interface {
	RequestPayment(ctx context.Context, req gateway.Request) (*gateway.Result, error)
}

type DispatchInput struct {
	OrderID uuid.UUID
	BuyerID uuid.UUID
	Method  string
}

type DispatchResult struct {
	Payment     *orders.PaymentDTO `json:"payment"`
	OrderStatus enums.OrderStatus  `json:"order_status"`
}

// Dispatcher creates the single payment for an order and hands gateway methods to the provider.
type Dispatcher struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	gateway     gatewayClient
	callbackURL string
	metrics     *metrics.PaymentMetrics
	logg        *logger.Logger
	now         func() time.Time
}

type DispatcherParams struct {
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Gateway     gatewayClient
	CallbackURL string
	Metrics     *metrics.PaymentMetrics
	Logger      *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("gateway client required")
	}
	if strings.TrimSpace(params.CallbackURL) == "" {
		return nil, fmt.Errorf("callback url required")
	}
	return &Dispatcher{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		gateway:     params.Gateway,
		callbackURL: params.CallbackURL,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (d *Dispatcher) Dispatch(ctx context.Context, input DispatchInput) (*DispatchResult, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(input.Method))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMethod, "unsupported payment method").
			WithDetails(map[string]any{"method": input.Method})
	}
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}

	var (
		order   *models.Order
		payment *models.Payment
	)
	err = d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)
		found, err := repo.FindOrder(ctx, input.OrderID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeOrderNotPayable, "order is not payable")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if found.BuyerID != input.BuyerID || found.Status != enums.OrderStatusPending {
			return pkgerrors.New(pkgerrors.CodeOrderNotPayable, "order is not payable")
		}

		if _, err := repo.FindByOrder(ctx, found.ID); err == nil {
			return pkgerrors.New(pkgerrors.CodePaymentAlreadyExists, "payment already exists for order")
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}

		created := &models.Payment{
			ID:      uuid.New(),
			OrderID: found.ID,
			Method:  method,
			Amount:  found.TotalPrice,
			Status:  enums.PaymentStatusPending,
		}
		if err := repo.Create(ctx, created); err != nil {
			if db.IsUniqueViolation(err, paymentsOrderUniqueConstraint) {
				return pkgerrors.New(pkgerrors.CodePaymentAlreadyExists, "payment already exists for order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
		}
		if err := d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentCreated,
			AggregateType: enums.AggregatePayment,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.RoleBuyer)},
			Data: payloads.PaymentCreatedEvent{
				PaymentID: created.ID,
				OrderID:   found.ID,
				BuyerID:   found.BuyerID,
				Method:    method,
				Amount:    created.Amount,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment created event")
		}
		order = found
		payment = created
		return nil
	})
	if err != nil {
		d.metrics.IncDispatched(string(method), outcomeForError(err))
		return nil, err
	}

	logCtx := ctx
	if d.logg != nil {
		logCtx = d.logg.WithOrderID(ctx, order.ID.String())
		logCtx = d.logg.WithPaymentID(logCtx, payment.ID.String())
	}

	if !method.UsesGateway() {
		d.metrics.IncDispatched(string(method), "accepted")
		d.info(logCtx, "cash on delivery payment accepted for fulfillment")
		return &DispatchResult{Payment: orders.NewPaymentDTO(payment), OrderStatus: order.Status}, nil
	}

	return d.dispatchGateway(logCtx, order, payment)
}

// dispatchGateway runs outside any transaction so no database transaction spans provider I/O.
func (d *Dispatcher) dispatchGateway(ctx context.Context, order *models.Order, payment *models.Payment) (*DispatchResult, error) {
	result, err := d.gateway.RequestPayment(ctx, gateway.Request{
		OrderID:     order.ID,
		Amount:      payment.Amount,
		CallbackURL: d.callbackURL,
		Kind:        kindFor(payment.Method),
	})
	// the provider call has returned; its outcome is recorded even if the caller went away
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		return d.failGatewayPayment(ctx, order, payment, err)
	}

	display := types.DisplayPayload{
		Kind:        string(result.Display.Kind),
		RedirectURL: result.Display.RedirectURL,
		QRContent:   result.Display.QRContent,
	}
	applied, err := d.repo.AttachProviderReference(ctx, payment.ID, result.ReferenceCode, display)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store provider reference")
	}
	if !applied {
		// a callback settled the payment before the reference was stored
		return d.currentResult(ctx, order.ID)
	}

	reference := result.ReferenceCode
	payment.ProviderReference = &reference
	payment.DisplayPayload = display
	d.metrics.IncDispatched(string(payment.Method), "pending")
	d.info(ctx, "gateway payment requested")
	return &DispatchResult{Payment: orders.NewPaymentDTO(payment), OrderStatus: order.Status}, nil
}

func (d *Dispatcher) failGatewayPayment(ctx context.Context, order *models.Order, payment *models.Payment, cause error) (*DispatchResult, error) {
	code := pkgerrors.CodeGatewayRejected
	orderStatus := enums.OrderStatusRejected
	outcome := "rejected"
	if !errors.Is(cause, gateway.ErrRejected) {
		code = pkgerrors.CodeGatewayUnreachable
		orderStatus = enums.OrderStatusFailed
		outcome = "unreachable"
	}
	reason := cause.Error()

	var applied bool
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := d.repo.WithTx(tx)
		ok, err := repo.MarkFailed(ctx, payment.ID, reason)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		applied = true
		if _, err := repo.TransitionOrder(ctx, order.ID, enums.OrderStatusPending, orderStatus); err != nil {
			return err
		}
		return d.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentFailedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Method:      payment.Method,
				OrderStatus: orderStatus,
				Reason:      reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record gateway failure")
	}
	if !applied {
		current, err := d.currentResult(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.Payment != nil && current.Payment.Status == enums.PaymentStatusPaid {
			return current, nil
		}
	}

	d.metrics.IncDispatched(string(payment.Method), outcome)
	if d.logg != nil {
		d.logg.Warn(d.logg.WithField(ctx, "order_status", orderStatus), "gateway payment failed: "+reason)
	}
	if code == pkgerrors.CodeGatewayRejected {
		return nil, pkgerrors.Wrap(code, cause, "payment rejected by gateway").
			WithDetails(map[string]any{"reason": reason})
	}
	return nil, pkgerrors.Wrap(code, cause, "payment gateway unreachable")
}

func (d *Dispatcher) currentResult(ctx context.Context, orderID uuid.UUID) (*DispatchResult, error) {
	order, err := d.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	payment, err := d.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return &DispatchResult{Payment: orders.NewPaymentDTO(payment), OrderStatus: order.Status}, nil
}

func (d *Dispatcher) info(ctx context.Context, msg string) {
	if d.logg != nil {
		d.logg.Info(ctx, msg)
	}
}

func kindFor(method enums.PaymentMethod) gateway.Kind {
	if method == enums.PaymentMethodQRGateway {
		return gateway.KindQR
	}
	return gateway.KindRedirect
}

func outcomeForError(err error) string {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeOrderNotPayable:
		return "not_payable"
	case pkgerrors.CodePaymentAlreadyExists:
		return "duplicate"
	default:
		return "error"
	}
}
