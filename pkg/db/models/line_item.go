package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

// LineItem captures the price snapshot of one product within an order.
type LineItem struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null"`
	ProductID         uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	SellerID          uuid.UUID            `gorm:"column:seller_id;type:uuid;not null"`
	ProductName       string               `gorm:"column:product_name;not null"`
	Quantity          int                  `gorm:"column:quantity;not null"`
	UnitPriceSnapshot decimal.Decimal      `gorm:"column:unit_price_snapshot;type:numeric(12,2);not null"`
	LineTotal         decimal.Decimal      `gorm:"column:line_total;type:numeric(12,2);not null"`
	Status            enums.LineItemStatus `gorm:"column:status;type:line_item_status;not null;default:'pending'"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (LineItem) TableName() string { return "order_line_items" }
