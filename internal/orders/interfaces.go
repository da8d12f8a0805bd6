package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
)

// Repository defines persistence operations for orders and their line items.
// Price columns are written by CreateOrder only.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.LineItem) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindOrderDetail(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type addressResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, addressID *uuid.UUID) (*models.Address, error)
}

type productCatalog interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type voucherLookup interface {
	FindActive(ctx context.Context, code string) (*models.Voucher, error)
}
