package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/internal/payments"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/metrics"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CallbackOutcome is the settlement result reported by the gateway.
type CallbackOutcome string

const (
	OutcomeSuccess CallbackOutcome = "success"
	OutcomeFailure CallbackOutcome = "failure"
)

// ParseCallbackOutcome accepts the outcome strings the gateway sends.
func ParseCallbackOutcome(value string) (CallbackOutcome, error) {
	switch CallbackOutcome(strings.ToLower(strings.TrimSpace(value))) {
	case OutcomeSuccess:
		return OutcomeSuccess, nil
	case OutcomeFailure:
		return OutcomeFailure, nil
	}
	return "", fmt.Errorf("invalid callback outcome %q", value)
}

// Callback identifies the payment either by order id or by the provider reference.
type Callback struct {
	OrderID           uuid.UUID
	ProviderReference string
	Outcome           CallbackOutcome
	TransactionID     string
	Reason            string
}

type CODConfirmation struct {
	OrderID     uuid.UUID
	ConfirmedBy uuid.UUID
}

// Outcome reports the state after reconciliation. Duplicate is set when nothing changed.
type Outcome struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	OrderStatus   enums.OrderStatus   `json:"order_status"`
	Duplicate     bool                `json:"duplicate"`
}

// Reconciler applies asynchronous settlement results to payments and their orders.
type Reconciler struct {
	repo    payments.Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

type Params struct {
	Repo    payments.Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

func NewReconciler(params Params) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Reconciler{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

func (r *Reconciler) Reconcile(ctx context.Context, cb Callback) (*Outcome, error) {
	if cb.Outcome != OutcomeSuccess && cb.Outcome != OutcomeFailure {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "outcome must be success or failure")
	}

	payment, err := r.findPayment(ctx, cb)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnknownOrder) {
			r.metrics.IncCallback("unknown")
		}
		return nil, err
	}
	ctx = r.withPayment(ctx, payment)

	if payment.Status.IsTerminal() {
		r.metrics.IncCallback("duplicate")
		r.debug(ctx, "callback for settled payment ignored")
		return r.current(ctx, payment.OrderID, true)
	}

	paidAt := r.now().UTC()
	var applied bool
	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return err
		}

		if cb.Outcome == OutcomeSuccess {
			ok, err := repo.MarkPaid(ctx, payment.ID, optionalString(cb.TransactionID), paidAt)
			if err != nil || !ok {
				return err
			}
			applied = true
			if err := r.transitionOrder(ctx, repo, order.ID, enums.OrderStatusPaid); err != nil {
				return err
			}
			return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPaymentSettled,
				AggregateType: enums.AggregatePayment,
				AggregateID:   payment.ID,
				Data: payloads.PaymentSettledEvent{
					PaymentID:     payment.ID,
					OrderID:       order.ID,
					BuyerID:       order.BuyerID,
					Method:        payment.Method,
					Amount:        payment.Amount,
					TransactionID: cb.TransactionID,
					PaidAt:        paidAt,
				},
			})
		}

		ok, err := repo.MarkFailed(ctx, payment.ID, cb.Reason)
		if err != nil || !ok {
			return err
		}
		applied = true
		if err := r.transitionOrder(ctx, repo, order.ID, enums.OrderStatusRejected); err != nil {
			return err
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentFailedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Method:      payment.Method,
				OrderStatus: enums.OrderStatusRejected,
				Reason:      cb.Reason,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply callback")
	}
	if !applied {
		r.metrics.IncCallback("duplicate")
		r.debug(ctx, "callback lost race to a concurrent settlement")
		return r.current(ctx, payment.OrderID, true)
	}

	r.metrics.IncCallback("applied")
	if r.logg != nil {
		r.logg.Info(r.logg.WithField(ctx, "outcome", string(cb.Outcome)), "payment reconciled")
	}
	return r.current(ctx, payment.OrderID, false)
}

// ConfirmCashOnDelivery settles a cash-on-delivery payment once the courier has collected.
// The order status is left alone since shipping has usually progressed by then.
func (r *Reconciler) ConfirmCashOnDelivery(ctx context.Context, input CODConfirmation) (*Outcome, error) {
	payment, err := r.repo.FindByOrder(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownOrder, "no payment recorded for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.Method != enums.PaymentMethodCashOnDelivery {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidMethod, "payment is not cash on delivery")
	}
	ctx = r.withPayment(ctx, payment)

	switch payment.Status {
	case enums.PaymentStatusPaid:
		return r.current(ctx, payment.OrderID, true)
	case enums.PaymentStatusFailed:
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment already failed")
	}

	collectedAt := r.now().UTC()
	var applied bool
	err = r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		order, err := repo.FindOrder(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		ok, err := repo.MarkPaid(ctx, payment.ID, nil, collectedAt)
		if err != nil || !ok {
			return err
		}
		applied = true
		var actor *outbox.ActorRef
		if input.ConfirmedBy != uuid.Nil {
			actor = &outbox.ActorRef{UserID: input.ConfirmedBy, Role: string(enums.RoleAdmin)}
		}
		return r.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCashCollected,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         actor,
			Data: payloads.CashCollectedEvent{
				PaymentID:   payment.ID,
				OrderID:     order.ID,
				BuyerID:     order.BuyerID,
				Amount:      payment.Amount,
				ConfirmedBy: input.ConfirmedBy,
				CollectedAt: collectedAt,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm cash collection")
	}
	if applied {
		r.info(ctx, "cash on delivery collected")
	}
	return r.current(ctx, payment.OrderID, !applied)
}

func (r *Reconciler) findPayment(ctx context.Context, cb Callback) (*models.Payment, error) {
	var (
		payment *models.Payment
		err     error
	)
	switch {
	case cb.OrderID != uuid.Nil:
		payment, err = r.repo.FindByOrder(ctx, cb.OrderID)
	case strings.TrimSpace(cb.ProviderReference) != "":
		payment, err = r.repo.FindByProviderReference(ctx, strings.TrimSpace(cb.ProviderReference))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference required")
	}
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnknownOrder, "no payment recorded for order reference")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	// cash on delivery never goes through the gateway
	if !payment.Method.UsesGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeUnknownOrder, "no gateway payment recorded for order reference")
	}
	return payment, nil
}

func (r *Reconciler) transitionOrder(ctx context.Context, repo payments.Repository, orderID uuid.UUID, to enums.OrderStatus) error {
	ok, err := repo.TransitionOrder(ctx, orderID, enums.OrderStatusPending, to)
	if err != nil {
		return err
	}
	if !ok && r.logg != nil {
		r.logg.Warn(r.logg.WithField(ctx, "target_status", string(to)), "order no longer pending; status left unchanged")
	}
	return nil
}

func (r *Reconciler) current(ctx context.Context, orderID uuid.UUID, duplicate bool) (*Outcome, error) {
	order, err := r.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	payment, err := r.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payment")
	}
	return &Outcome{
		OrderID:       order.ID,
		PaymentID:     payment.ID,
		PaymentStatus: payment.Status,
		OrderStatus:   order.Status,
		Duplicate:     duplicate,
	}, nil
}

func (r *Reconciler) withPayment(ctx context.Context, payment *models.Payment) context.Context {
	if r.logg == nil {
		return ctx
	}
	ctx = r.logg.WithOrderID(ctx, payment.OrderID.String())
	return r.logg.WithPaymentID(ctx, payment.ID.String())
}

func (r *Reconciler) info(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Info(ctx, msg)
	}
}

func (r *Reconciler) debug(ctx context.Context, msg string) {
	if r.logg != nil {
		r.logg.Debug(ctx, msg)
	}
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
