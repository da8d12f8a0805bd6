package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	Name     string          `gorm:"column:name;not null"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	Active   bool            `gorm:"column:active;not null"`
}

func (Product) TableName() string { return "products" }
