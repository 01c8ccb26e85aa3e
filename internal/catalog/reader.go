// Package catalog reads variant prices and names for snapshotting into orders
// and POS sales. Catalog maintenance lives outside this service.
package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

// VariantSnapshot is the sellable data copied into order lines.
type VariantSnapshot struct {
	VariantID   uuid.UUID
	ProductName string
	Size        string
	Price       int64
	Active      bool
}

// Reader loads variant snapshots.
type Reader interface {
	Variants(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]VariantSnapshot, error)
}

type reader struct{}

func NewReader() Reader {
	return reader{}
}

// Variants returns the current price and naming for every id found. Missing
// ids are absent from the map.
func (reader) Variants(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]VariantSnapshot, error) {
	out := make(map[uuid.UUID]VariantSnapshot, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var variants []models.ProductVariant
	if err := tx.WithContext(ctx).
		Preload("Product").
		Where("id IN ?", ids).
		Find(&variants).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load variants")
	}
	for _, v := range variants {
		snap := VariantSnapshot{
			VariantID: v.ID,
			Size:      v.Size,
			Price:     v.Price,
		}
		if v.Product != nil {
			snap.ProductName = v.Product.Name
			snap.Active = v.Product.IsActive
		}
		out[v.ID] = snap
	}
	return out, nil
}
