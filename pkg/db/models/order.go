package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/types"
)

// Order is the buyer-facing aggregate. Price columns are written once at creation.
type Order struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID         uuid.UUID             `gorm:"column:buyer_id;type:uuid;not null"`
	AddressID       uuid.UUID             `gorm:"column:address_id;type:uuid;not null"`
	ShippingAddress types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;not null"`
	VoucherCode     *string               `gorm:"column:voucher_code"`
	SubtotalPrice   decimal.Decimal       `gorm:"column:subtotal_price;type:numeric(12,2);not null"`
	DiscountPrice   decimal.Decimal       `gorm:"column:discount_price;type:numeric(12,2);not null"`
	TotalPrice      decimal.Decimal       `gorm:"column:total_price;type:numeric(12,2);not null"`
	Status          enums.OrderStatus     `gorm:"column:status;type:order_status;not null;default:'pending'"`
	LineItems       []LineItem            `gorm:"foreignKey:OrderID;references:ID"`
	Payment         *Payment              `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
