package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	ShippingAddress string              `json:"shipping_address"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	Subtotal        int64               `json:"subtotal"`
	TaxRate         string              `json:"tax_rate"`
	Tax             int64               `json:"tax"`
	Total           int64               `json:"total"`
	Status          enums.OrderStatus   `json:"status"`
	TrackingNumber  *string             `json:"tracking_number,omitempty"`
	ShippedAt       *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time          `json:"delivered_at,omitempty"`
	CanceledAt      *time.Time          `json:"canceled_at,omitempty"`
	Lines           []OrderLineDTO      `json:"lines"`
	Payment         *PaymentDTO         `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type OrderLineDTO struct {
	VariantID   uuid.UUID `json:"variant_id"`
	ProductName string    `json:"product_name"`
	Size        string    `json:"size"`
	Quantity    int       `json:"quantity"`
	UnitPrice   int64     `json:"unit_price"`
	LineTotal   int64     `json:"line_total"`
}

type PaymentDTO struct {
	ID                uuid.UUID           `json:"id"`
	Method            enums.PaymentMethod `json:"method"`
	Amount            int64               `json:"amount"`
	Status            enums.PaymentStatus `json:"status"`
	ExternalReference string              `json:"external_reference"`
	GatewayStatus     *string             `json:"gateway_status,omitempty"`
	TransactionTime   *time.Time          `json:"transaction_time,omitempty"`
}

// ListResult is one page of orders.
type ListResult struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO converts a loaded order model into its API shape.
func ToDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	dto := &OrderDTO{
		ID:              order.ID,
		UserID:          order.UserID,
		ShippingAddress: order.ShippingAddress,
		PaymentMethod:   order.PaymentMethod,
		Subtotal:        order.Subtotal,
		TaxRate:         order.TaxRate.String(),
		Tax:             order.Tax,
		Total:           order.Total,
		Status:          order.Status,
		TrackingNumber:  order.TrackingNumber,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		CanceledAt:      order.CanceledAt,
		Lines:           make([]OrderLineDTO, 0, len(order.Lines)),
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
	for _, line := range order.Lines {
		dto.Lines = append(dto.Lines, OrderLineDTO{
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	if p := order.Payment; p != nil {
		dto.Payment = &PaymentDTO{
			ID:                p.ID,
			Method:            p.Method,
			Amount:            p.Amount,
			Status:            p.Status,
			ExternalReference: p.ExternalReference,
			GatewayStatus:     p.GatewayStatus,
			TransactionTime:   p.TransactionTime,
		}
	}
	return dto
}
