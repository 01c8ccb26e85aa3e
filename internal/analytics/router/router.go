// Package router maps outbox deliveries to BigQuery sales rows, one builder
// per event type.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer stores sales rows.
type Writer interface {
	InsertSale(ctx context.Context, row types.SalesEventRow) error
}

type rowFunc func(types.Delivery) (types.SalesEventRow, error)

// typed decodes the delivery into T and hands it to fill together with the
// common columns.
func typed[T any](channel string, fill func(types.SalesEventRow, *T) types.SalesEventRow) rowFunc {
	return func(d types.Delivery) (types.SalesEventRow, error) {
		if len(d.Data) == 0 {
			return types.SalesEventRow{}, fmt.Errorf("empty payload for %s", d.EventType)
		}
		payload := new(T)
		if err := json.Unmarshal(d.Data, payload); err != nil {
			return types.SalesEventRow{}, fmt.Errorf("decode %s payload: %w", d.EventType, err)
		}
		row, err := baseRow(d, channel)
		if err != nil {
			return row, err
		}
		return fill(row, payload), nil
	}
}

type Router struct {
	writer Writer
	logg   *logger.Logger
	rows   map[enums.OutboxEventType]rowFunc
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	payment := typed(types.ChannelOnline, paymentRow)
	return &Router{
		writer: writer,
		logg:   logg,
		rows: map[enums.OutboxEventType]rowFunc{
			enums.EventOrderCreated:       typed(types.ChannelOnline, orderCreatedRow),
			enums.EventOrderStatusChanged: typed(types.ChannelOnline, orderStatusRow),
			enums.EventPaymentSucceeded:   payment,
			enums.EventPaymentFailed:      payment,
			enums.EventPaymentRefunded:    payment,
			enums.EventPOSSaleRecorded:    typed(types.ChannelPOS, posSaleRow),
		},
	}, nil
}

// Supports reports whether eventType produces a sales row. Payment conflicts
// are for manual review and do not.
func (r *Router) Supports(eventType enums.OutboxEventType) bool {
	_, ok := r.rows[eventType]
	return ok
}

// Handle builds and writes the row for d.
func (r *Router) Handle(ctx context.Context, d types.Delivery) error {
	build, ok := r.rows[d.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, d.EventType)
	}
	row, err := build(d)
	if err != nil {
		return err
	}

	ctx = r.logg.WithFields(ctx, map[string]any{
		"event_type": d.EventType,
		"channel":    row.Channel,
	})
	if err := r.writer.InsertSale(ctx, row); err != nil {
		r.logg.Error(ctx, "failed to insert sales row", err)
		return err
	}
	r.logg.Debug(ctx, "sales row inserted")
	return nil
}
