package cron

import (
	"context"
	"fmt"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/payments"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

const defaultPaymentSweepBatch = 100

type PaymentSweepJobParams struct {
	Logger    *logger.Logger
	Sweeper   paymentSweeper
	BatchSize int
}

type paymentSweeper interface {
	SweepStale(ctx context.Context, limit int) (payments.SweepResult, error)
}

// NewPaymentSweepJob re-checks stale Pending payments against the gateway so
// a lost webhook still settles the order.
func NewPaymentSweepJob(params PaymentSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("payment sweeper required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultPaymentSweepBatch
	}
	return &paymentSweepJob{logg: params.Logger, sweeper: params.Sweeper, batch: batch}, nil
}

type paymentSweepJob struct {
	logg    *logger.Logger
	sweeper paymentSweeper
	batch   int
}

func (j *paymentSweepJob) Name() string { return "payment-sweep" }

func (j *paymentSweepJob) Run(ctx context.Context) error {
	result, err := j.sweeper.SweepStale(ctx, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked": result.Checked,
		"changed": result.Changed,
		"batch":   j.batch,
	})
	if err != nil {
		return fmt.Errorf("payment sweep: %w", err)
	}
	j.logg.Info(logCtx, "payment sweep complete")
	return nil
}
