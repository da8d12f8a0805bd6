// Package addresses is the read-only port over the buyer address book.
package addresses

import (
	"context"

	"github.com/google/uuid"
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

// FindForUser returns the address only when it belongs to userID.
func (r *Repository) FindForUser(ctx context.Context, userID, addressID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", addressID, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// FindDefault returns the user's default address, falling back to the most recent one.
func (r *Repository) FindDefault(ctx context.Context, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_default DESC").
		Order("created_at DESC").
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}

// Resolve picks addressID when given, otherwise the default address.
func (r *Repository) Resolve(ctx context.Context, userID uuid.UUID, addressID *uuid.UUID) (*models.Address, error) {
	if addressID != nil && *addressID != uuid.Nil {
		return r.FindForUser(ctx, userID, *addressID)
	}
	return r.FindDefault(ctx, userID)
}
