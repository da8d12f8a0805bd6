package shipping

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindPaymentMethod(ctx context.Context, orderID uuid.UUID) (*enums.PaymentMethod, error)
	ListItemStatuses(ctx context.Context, orderID uuid.UUID) ([]enums.LineItemStatus, error)
	TransitionLineItem(ctx context.Context, id uuid.UUID, from, to enums.LineItemStatus) (bool, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
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

func (r *repository) FindLineItem(ctx context.Context, id uuid.UUID) (*models.LineItem, error) {
	var item models.LineItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// LockOrder serializes concurrent seller updates on the same order.
func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindPaymentMethod returns nil when the buyer has not chosen a payment method yet.
func (r *repository) FindPaymentMethod(ctx context.Context, orderID uuid.UUID) (*enums.PaymentMethod, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Select("method").Where("order_id = ?", orderID).Limit(1).Find(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.Method == "" {
		return nil, nil
	}
	return &payment.Method, nil
}

func (r *repository) ListItemStatuses(ctx context.Context, orderID uuid.UUID) ([]enums.LineItemStatus, error) {
	var statuses []enums.LineItemStatus
	err := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("order_id = ?", orderID).
		Pluck("status", &statuses).Error
	return statuses, err
}

func (r *repository) TransitionLineItem(ctx context.Context, id uuid.UUID, from, to enums.LineItemStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.LineItem{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
