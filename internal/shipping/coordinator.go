package shipping

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
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

var errLostRace = errors.New("line item changed concurrently")

type UpdateStatusInput struct {
	LineItemID  uuid.UUID
	Status      string
	ActorUserID uuid.UUID
}

// legalTransitions lists the only moves a seller may make on a line item.
var legalTransitions = map[enums.LineItemStatus][]enums.LineItemStatus{
	enums.LineItemStatusPending:  {enums.LineItemStatusShipping},
	enums.LineItemStatusShipping: {enums.LineItemStatusShipped, enums.LineItemStatusFailedToShip},
}

// CanTransition reports whether from -> to is a legal line item move.
func CanTransition(from, to enums.LineItemStatus) bool {
	for _, allowed := range legalTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Coordinator applies seller shipping updates and keeps the order status in step.
type Coordinator struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
}

type Params struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
}

func NewCoordinator(params Params) (*Coordinator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &Coordinator{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

func (c *Coordinator) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*orders.LineItemDTO, error) {
	target, err := enums.ParseLineItemStatus(strings.TrimSpace(input.Status))
	if err != nil || target == enums.LineItemStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be shipping, shipped or failed_to_ship").
			WithDetails(map[string]any{"status": input.Status})
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "seller identity missing")
	}

	var result orders.LineItemDTO
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := c.repo.WithTx(tx)
		item, err := repo.FindLineItem(ctx, input.LineItemID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "line item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line item")
		}
		if item.SellerID != input.ActorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "line item belongs to another seller")
		}

		order, err := repo.LockOrder(ctx, item.OrderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		method, err := repo.FindPaymentMethod(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if !fulfillable(order.Status, method) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not ready for shipping").
				WithDetails(map[string]any{"order_status": order.Status})
		}

		from := item.Status
		if !CanTransition(from, target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "illegal line item transition").
				WithDetails(map[string]any{"from": from, "to": target})
		}
		applied, err := repo.TransitionLineItem(ctx, item.ID, from, target)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update line item")
		}
		if !applied {
			return errLostRace
		}
		item.Status = target

		statuses, err := repo.ListItemStatuses(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line items")
		}
		next := AggregateOrderStatus(order.Status, statuses)
		if next != order.Status {
			if _, err := repo.UpdateOrderStatus(ctx, order.ID, order.Status, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
			}
		}

		if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLineItemStatusChanged,
			AggregateType: enums.AggregateLineItem,
			AggregateID:   item.ID,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: string(enums.RoleSeller)},
			Data: payloads.LineItemStatusChangedEvent{
				LineItemID:     item.ID,
				OrderID:        order.ID,
				BuyerID:        order.BuyerID,
				SellerID:       item.SellerID,
				ProductName:    item.ProductName,
				PreviousStatus: from,
				Status:         target,
				OrderStatus:    next,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit line item event")
		}
		result = orders.NewLineItemDTO(item)
		return nil
	})
	if err != nil {
		if errors.Is(err, errLostRace) {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "line item changed concurrently")
		}
		return nil, err
	}

	c.metrics.IncTransition(string(target))
	if c.logg != nil {
		logCtx := c.logg.WithOrderID(ctx, result.OrderID.String())
		logCtx = c.logg.WithFields(logCtx, map[string]any{"line_item_id": result.ID.String(), "status": string(target)})
		c.logg.Info(logCtx, "line item status updated")
	}
	return &result, nil
}

// fulfillable allows shipping once the order is paid, or immediately for cash on delivery.
func fulfillable(status enums.OrderStatus, method *enums.PaymentMethod) bool {
	switch status {
	case enums.OrderStatusPaid, enums.OrderStatusShipping:
		return true
	case enums.OrderStatusPending:
		return method != nil && *method == enums.PaymentMethodCashOnDelivery
	default:
		return false
	}
}

// AggregateOrderStatus derives the order status from its line items.
// All terminal with at least one shipped is shipped, all failed_to_ship is failed,
// and any progress otherwise is shipping.
func AggregateOrderStatus(current enums.OrderStatus, items []enums.LineItemStatus) enums.OrderStatus {
	if len(items) == 0 {
		return current
	}
	var terminal, shipped, failed, progressing int
	for _, status := range items {
		switch status {
		case enums.LineItemStatusShipped:
			terminal++
			shipped++
			progressing++
		case enums.LineItemStatusFailedToShip:
			terminal++
			failed++
		case enums.LineItemStatusShipping:
			progressing++
		}
	}
	switch {
	case failed == len(items):
		return enums.OrderStatusFailed
	case terminal == len(items) && shipped > 0:
		return enums.OrderStatusShipped
	case progressing > 0:
		return enums.OrderStatusShipping
	default:
		return current
	}
}
