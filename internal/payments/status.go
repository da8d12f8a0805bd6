package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
)

type StatusInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.Role
}

// StatusDTO is what polling clients read until Terminal is true.
type StatusDTO struct {
	OrderID       uuid.UUID            `json:"order_id"`
	OrderStatus   enums.OrderStatus    `json:"order_status"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status"`
	PaymentMethod *enums.PaymentMethod `json:"payment_method,omitempty"`
	Terminal      bool                 `json:"terminal"`
}

// StatusService is the read-only payment status query.
type StatusService struct {
	repo Repository
}

func NewStatusService(repo Repository) (*StatusService, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	return &StatusService{repo: repo}, nil
}

func (s *StatusService) Get(ctx context.Context, input StatusInput) (*StatusDTO, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindOrder(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.BuyerID != input.ActorUserID && input.ActorRole != enums.RoleAdmin {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	out := &StatusDTO{
		OrderID:     order.ID,
		OrderStatus: order.Status,
		Terminal:    order.Status.IsTerminal(),
	}
	payment, err := s.repo.FindByOrder(ctx, order.ID)
	switch {
	case err == nil:
		status := payment.Status
		method := payment.Method
		out.PaymentStatus = &status
		out.PaymentMethod = &method
		out.Terminal = out.Terminal || status.IsTerminal()
	case db.IsNotFound(err):
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return out, nil
}
