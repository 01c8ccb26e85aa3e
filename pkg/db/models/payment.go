package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// Payment is the local record of a gateway transaction, one per order.
// Status only moves through the reconciler.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_payments_order_id"`
	Amount            int64               `gorm:"column:amount;not null"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	ExternalReference string              `gorm:"column:external_reference;not null;uniqueIndex:ux_payments_external_reference"`
	TransactionID     *string             `gorm:"column:transaction_id"`
	QRString          *string             `gorm:"column:qr_string"`
	RedirectURL       *string             `gorm:"column:redirect_url"`
	GatewayStatus     *string             `gorm:"column:gateway_status"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'Pending';index"`
	TransactionTime   *time.Time          `gorm:"column:transaction_time"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// PaymentConflict records a gateway event that contradicted an already
// terminal payment. Rows are kept for manual review.
type PaymentConflict struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PaymentID      uuid.UUID           `gorm:"column:payment_id;type:uuid;not null;uniqueIndex:ux_payment_conflicts_payment_incoming,priority:1"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	CurrentStatus  enums.PaymentStatus `gorm:"column:current_status;type:text;not null"`
	IncomingStatus enums.PaymentStatus `gorm:"column:incoming_status;type:text;not null;uniqueIndex:ux_payment_conflicts_payment_incoming,priority:2"`
	GatewayStatus  string              `gorm:"column:gateway_status;not null"`
	Source         string              `gorm:"column:source;not null"`
	ReceivedAt     time.Time           `gorm:"column:received_at;autoCreateTime"`
}

func (c *PaymentConflict) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
