package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// POSSale is an in-store sale recorded by a cashier terminal. Items carry the
// price snapshot taken when the sale was rung up.
type POSSale struct {
	ID        uuid.UUID     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CashierID uuid.UUID     `gorm:"column:cashier_id;type:uuid;not null" json:"cashier_id"`
	Items     []POSSaleItem `gorm:"column:items;type:jsonb;serializer:json;not null" json:"items"`
	Total     int64         `gorm:"column:total;not null" json:"total"`
	Note      *string       `gorm:"column:note" json:"note,omitempty"`
	CreatedAt time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// POSSaleItem is one line of a POS sale.
type POSSaleItem struct {
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name"`
	Size        string    `json:"size"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
}

func (POSSale) TableName() string {
	return "pos_sales"
}

func (s *POSSale) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
