// Package stock owns the per-variant stock counter. Every mutation is a
// single guarded statement on the caller's transaction.
package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

// Ledger debits and credits variant stock.
type Ledger interface {
	Debit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Credit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	Available(ctx context.Context, variantID uuid.UUID) (int, error)
}

// ShortageDetails is attached to INSUFFICIENT_STOCK errors.
type ShortageDetails struct {
	VariantID  uuid.UUID  `json:"variant_id"`
	CartItemID *uuid.UUID `json:"cart_item_id,omitempty"`
	Requested  int        `json:"requested"`
	Available  int        `json:"available"`
}

type ledger struct {
	db *gorm.DB
}

// NewLedger builds the ledger. db is only used for reads outside a transaction.
func NewLedger(db *gorm.DB) Ledger {
	return &ledger{db: db}
}

// Debit removes qty units if and only if at least qty are in stock.
func (l *ledger) Debit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ? AND stock >= ?", variantID, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if result.Error != nil {
		return pkgerrors.FromStorage(result.Error, "debit stock")
	}
	if result.RowsAffected == 1 {
		return nil
	}

	var variant models.ProductVariant
	err := tx.WithContext(ctx).Select("id", "stock").Where("id = ?", variantID).Take(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant stock")
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
		WithDetails(ShortageDetails{VariantID: variantID, Requested: qty, Available: variant.Stock})
}

// Credit returns qty units to the variant.
func (l *ledger) Credit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	result := tx.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if result.Error != nil {
		return pkgerrors.FromStorage(result.Error, "credit stock")
	}
	if result.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	return nil
}

func (l *ledger) Available(ctx context.Context, variantID uuid.UUID) (int, error) {
	var variant models.ProductVariant
	err := l.db.WithContext(ctx).Select("id", "stock").Where("id = ?", variantID).Take(&variant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found")
	}
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variant stock")
	}
	return variant.Stock, nil
}
