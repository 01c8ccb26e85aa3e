package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const (
	defaultUnpaidOrderTTL  = 24 * time.Hour
	unpaidOrderExpiryBatch = 200
)

type UnpaidOrderJobParams struct {
	Logger *logger.Logger
	Orders unpaidOrderReader
	Status statusUpdater
	TTL    time.Duration
}

type unpaidOrderReader interface {
	FindUnpaidOrdersBefore(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
}

type statusUpdater interface {
	UpdateStatus(ctx context.Context, input orders.UpdateStatusInput) (*orders.OrderDTO, error)
}

// NewUnpaidOrderJob cancels QRIS orders that never got a payment row within
// TTL. The cancel path credits the reserved stock back.
func NewUnpaidOrderJob(params UnpaidOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Status == nil {
		return nil, fmt.Errorf("order status service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidOrderTTL
	}
	return &unpaidOrderJob{
		logg:   params.Logger,
		orders: params.Orders,
		status: params.Status,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type unpaidOrderJob struct {
	logg   *logger.Logger
	orders unpaidOrderReader
	status statusUpdater
	ttl    time.Duration
	now    func() time.Time
}

func (j *unpaidOrderJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	rows, err := j.orders.FindUnpaidOrdersBefore(ctx, enums.PaymentMethodQRIS, cutoff, unpaidOrderExpiryBatch)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs error
	canceled := 0
	for _, order := range rows {
		_, err := j.status.UpdateStatus(ctx, orders.UpdateStatusInput{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancel,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire order %s: %w", order.ID, err))
			continue
		}
		canceled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":   cutoff,
		"found":    len(rows),
		"canceled": canceled,
	})
	j.logg.Info(logCtx, "unpaid order expiry complete")
	return errs
}
