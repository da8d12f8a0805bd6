package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/types"
)

// Payment is the single settlement attempt for an order (payments.order_id is unique).
type Payment struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Method            enums.PaymentMethod  `gorm:"column:method;type:payment_method;not null"`
	Amount            decimal.Decimal      `gorm:"column:amount;type:numeric(12,2);not null"`
	Status            enums.PaymentStatus  `gorm:"column:status;type:payment_status;not null;default:'pending'"`
	ProviderReference *string              `gorm:"column:provider_reference"`
	DisplayPayload    types.DisplayPayload `gorm:"column:display_payload;type:jsonb"`
	TransactionID     *string              `gorm:"column:transaction_id"`
	PaidAt            *time.Time           `gorm:"column:paid_at"`
	FailureReason     *string              `gorm:"column:failure_reason"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }
