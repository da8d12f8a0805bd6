// Package vouchers resolves voucher codes for pricing.
package vouchers

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindActive returns gorm.ErrRecordNotFound for unknown or inactive codes.
func (r *Repository) FindActive(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Where("code = ? AND active = ?", strings.TrimSpace(code), true).
		First(&voucher).Error
	if err != nil {
		return nil, err
	}
	return &voucher, nil
}
