package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/types"
)

// Repository persists payments. Every status change is a conditional update on
// status = 'pending' and reports whether this call applied it.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByProviderReference(ctx context.Context, reference string) (*models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	AttachProviderReference(ctx context.Context, paymentID uuid.UUID, reference string, display types.DisplayPayload) (bool, error)
	MarkPaid(ctx context.Context, paymentID uuid.UUID, transactionID *string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (bool, error)
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByProviderReference(ctx context.Context, reference string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("provider_reference = ?", reference).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) AttachProviderReference(ctx context.Context, paymentID uuid.UUID, reference string, display types.DisplayPayload) (bool, error) {
	return r.updatePending(ctx, paymentID, map[string]any{
		"provider_reference": reference,
		"display_payload":    display,
	})
}

func (r *repository) MarkPaid(ctx context.Context, paymentID uuid.UUID, transactionID *string, paidAt time.Time) (bool, error) {
	return r.updatePending(ctx, paymentID, map[string]any{
		"status":         enums.PaymentStatusPaid,
		"transaction_id": transactionID,
		"paid_at":        paidAt,
	})
}

func (r *repository) MarkFailed(ctx context.Context, paymentID uuid.UUID, reason string) (bool, error) {
	updates := map[string]any{"status": enums.PaymentStatusFailed}
	if reason != "" {
		updates["failure_reason"] = reason
	}
	return r.updatePending(ctx, paymentID, updates)
}

func (r *repository) TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) updatePending(ctx context.Context, paymentID uuid.UUID, updates map[string]any) (bool, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", paymentID, enums.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
