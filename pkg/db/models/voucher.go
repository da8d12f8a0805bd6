package models

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

type Voucher struct {
	Code          string            `gorm:"column:code;primaryKey"`
	Type          enums.VoucherType `gorm:"column:type;type:voucher_type;not null"`
	Value         decimal.Decimal   `gorm:"column:value;type:numeric(12,2);not null"`
	MinOrderValue decimal.Decimal   `gorm:"column:min_order_value;type:numeric(12,2);not null"`
	MaxDiscount   *decimal.Decimal  `gorm:"column:max_discount;type:numeric(12,2)"`
	Active        bool              `gorm:"column:active;not null"`
}

func (Voucher) TableName() string { return "vouchers" }
