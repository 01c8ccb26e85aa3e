package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// OrderLineSnapshot mirrors one immutable order line.
type OrderLineSnapshot struct {
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name"`
	Size        string    `json:"size"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
}

// OrderCreatedEvent is queued when checkout commits a new order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Subtotal      int64               `json:"subtotal"`
	TaxRate       string              `json:"tax_rate"`
	Tax           int64               `json:"tax"`
	Total         int64               `json:"total"`
	Lines         []OrderLineSnapshot `json:"lines"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderStatusChangedEvent is queued on every committed order transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	UserID         uuid.UUID         `json:"user_id"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
	Total          int64             `json:"total"`
	Tax            int64             `json:"tax"`
	StockRestored  bool              `json:"stock_restored"`
	ChangedAt      time.Time         `json:"changed_at"`
}

// PaymentStatusEvent covers payment_succeeded, payment_failed and payment_refunded.
type PaymentStatusEvent struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	OrderID           uuid.UUID           `json:"order_id"`
	UserID            uuid.UUID           `json:"user_id"`
	ExternalReference string              `json:"external_reference"`
	GatewayStatus     string              `json:"gateway_status"`
	From              enums.PaymentStatus `json:"from"`
	Status            enums.PaymentStatus `json:"status"`
	Amount            int64               `json:"amount"`
	Tax               int64               `json:"tax"`
	Source            string              `json:"source"`
	OccurredAt        time.Time           `json:"occurred_at"`
}

// PaymentConflictEvent flags a gateway event that contradicted a terminal payment.
type PaymentConflictEvent struct {
	PaymentID      uuid.UUID           `json:"payment_id"`
	OrderID        uuid.UUID           `json:"order_id"`
	CurrentStatus  enums.PaymentStatus `json:"current_status"`
	IncomingStatus enums.PaymentStatus `json:"incoming_status"`
	GatewayStatus  string              `json:"gateway_status"`
	Source         string              `json:"source"`
}

// POSSaleItemSnapshot is one line of a recorded POS sale.
type POSSaleItemSnapshot struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
}

// POSSaleRecordedEvent is queued when a cashier sale commits.
type POSSaleRecordedEvent struct {
	SaleID     uuid.UUID             `json:"sale_id"`
	CashierID  uuid.UUID             `json:"cashier_id"`
	Total      int64                 `json:"total"`
	Items      []POSSaleItemSnapshot `json:"items"`
	RecordedAt time.Time             `json:"recorded_at"`
}
