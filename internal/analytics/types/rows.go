package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

const (
	ChannelOnline = "online"
	ChannelPOS    = "pos"
)

// SalesEventRow mirrors the sales_events BigQuery schema. One row per
// order, payment or POS event; amounts are whole rupiah.
type SalesEventRow struct {
	EventID       string             `bigquery:"event_id"`
	EventType     string             `bigquery:"event_type"`
	OccurredAt    time.Time          `bigquery:"occurred_at"`
	Channel       string             `bigquery:"channel"`
	OrderID       *string            `bigquery:"order_id"`
	PaymentID     *string            `bigquery:"payment_id"`
	SaleID        *string            `bigquery:"sale_id"`
	UserID        *string            `bigquery:"user_id"`
	PaymentMethod *string            `bigquery:"payment_method"`
	Status        *string            `bigquery:"status"`
	PreviousState *string            `bigquery:"previous_status"`
	Amount        *int64             `bigquery:"amount"`
	Tax           *int64             `bigquery:"tax"`
	ItemCount     *int64             `bigquery:"item_count"`
	Source        *string            `bigquery:"source"`
	Payload       cbigquery.NullJSON `bigquery:"payload"`
}
