// Package cart reads and clears the cart lines consumed by checkout.
package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
)

// Repository scopes cart access to a transaction.
type Repository interface {
	FindUserItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error)
	DeleteItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
	ListUserItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db, usually a transaction handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// FindUserItems returns the named lines that belong to userID; foreign lines are ignored.
func (r *repository) FindUserItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if len(ids) == 0 {
		return items, nil
	}
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Order("variant_id ASC").
		Order("id ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) DeleteItems(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND id IN ?", userID, ids).
		Delete(&models.CartItem{})
	return result.RowsAffected, result.Error
}

func (r *repository) ListUserItems(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}
