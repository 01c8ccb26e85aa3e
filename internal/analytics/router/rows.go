package router

import (
	"strings"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/writer"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
)

// POS sales have no lifecycle; their rows carry a fixed status.
const posSaleStatus = "Recorded"

func baseRow(d types.Delivery, channel string) (types.SalesEventRow, error) {
	raw, err := writer.EncodeJSON(d.Data)
	if err != nil {
		return types.SalesEventRow{}, err
	}
	return types.SalesEventRow{
		EventID:    d.EventID,
		EventType:  string(d.EventType),
		OccurredAt: d.OccurredAt.UTC(),
		Channel:    channel,
		Payload:    raw,
	}, nil
}

func orderCreatedRow(row types.SalesEventRow, e *payloads.OrderCreatedEvent) types.SalesEventRow {
	var units int64
	for _, line := range e.Lines {
		units += int64(line.Quantity)
	}
	row.OrderID = optional(e.OrderID.String())
	row.UserID = optional(e.UserID.String())
	row.PaymentMethod = optional(string(e.PaymentMethod))
	row.Status = optional(string(enums.OrderStatusPending))
	row.Amount = &e.Total
	row.Tax = &e.Tax
	row.ItemCount = &units
	return row
}

func orderStatusRow(row types.SalesEventRow, e *payloads.OrderStatusChangedEvent) types.SalesEventRow {
	row.OrderID = optional(e.OrderID.String())
	row.UserID = optional(e.UserID.String())
	row.Status = optional(string(e.To))
	row.PreviousState = optional(string(e.From))
	row.Amount = &e.Total
	row.Tax = &e.Tax
	return row
}

// paymentRow serves succeeded, failed and refunded payments; only QRIS
// creates payment records.
func paymentRow(row types.SalesEventRow, e *payloads.PaymentStatusEvent) types.SalesEventRow {
	row.OrderID = optional(e.OrderID.String())
	row.PaymentID = optional(e.PaymentID.String())
	row.UserID = optional(e.UserID.String())
	row.PaymentMethod = optional(string(enums.PaymentMethodQRIS))
	row.Status = optional(string(e.Status))
	row.PreviousState = optional(string(e.From))
	row.Amount = &e.Amount
	row.Tax = &e.Tax
	row.Source = optional(e.Source)
	return row
}

func posSaleRow(row types.SalesEventRow, e *payloads.POSSaleRecordedEvent) types.SalesEventRow {
	var units int64
	for _, item := range e.Items {
		units += int64(item.Quantity)
	}
	row.SaleID = optional(e.SaleID.String())
	row.UserID = optional(e.CashierID.String())
	row.Status = optional(posSaleStatus)
	row.Amount = &e.Total
	row.ItemCount = &units
	return row
}

// optional maps blank strings to NULL.
func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
