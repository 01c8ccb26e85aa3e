package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// StatusView answers the client's payment polling.
type StatusView struct {
	OrderID       uuid.UUID            `json:"order_id"`
	PaymentStatus *enums.PaymentStatus `json:"payment_status"`
	QRISStatus    *string              `json:"qris_status"`
	OrderStatus   enums.OrderStatus    `json:"order_status"`
}

// Status returns the order's payment state. A Pending payment older than the
// fallback threshold is first re-checked against the gateway; gateway
// failures are logged and the stored state is returned.
func (s *Service) Status(ctx context.Context, userID, orderID uuid.UUID) (*StatusView, error) {
	order, err := s.orders.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if payment := order.Payment; payment != nil && s.isStale(payment) {
		if refreshed, ok := s.refresh(ctx, payment, SourcePoll); ok {
			order.Status = refreshed.OrderStatus
			order.Payment = refreshed.Payment
		}
	}
	return toStatusView(order), nil
}

// SweepResult summarizes one cron sweep over stale pending payments.
type SweepResult struct {
	Checked int
	Changed int
}

// SweepStale asks the gateway about every Pending payment older than the
// fallback threshold, up to limit rows.
func (s *Service) SweepStale(ctx context.Context, limit int) (SweepResult, error) {
	var out SweepResult
	if limit <= 0 {
		limit = 100
	}
	cutoff := s.clock().UTC().Add(-s.cfg.PollFallbackAfter)
	stale, err := s.repo.FindStalePending(ctx, cutoff, limit)
	if err != nil {
		return out, err
	}
	var errs error
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return out, multierr.Append(errs, err)
		}
		out.Checked++
		result, err := s.check(ctx, &stale[i], SourceCron)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if result.Changed {
			out.Changed++
		}
	}
	return out, errs
}

func (s *Service) isStale(p *models.Payment) bool {
	if p.Status != enums.PaymentStatusPending {
		return false
	}
	return s.clock().Sub(p.CreatedAt) >= s.cfg.PollFallbackAfter
}

func (s *Service) refresh(ctx context.Context, p *models.Payment, source string) (*Result, bool) {
	result, err := s.check(ctx, p, source)
	if err != nil {
		s.warn(ctx, map[string]any{
			"order_id":   p.OrderID.String(),
			"payment_id": p.ID.String(),
			"source":     source,
		}, "payment status fallback failed: "+err.Error())
		return nil, false
	}
	return result, true
}

func (s *Service) check(ctx context.Context, p *models.Payment, source string) (*Result, error) {
	started := time.Now()
	status, err := s.gateway.Status(ctx, p.ExternalReference)
	s.metrics.ObserveGateway("status", time.Since(started), err)
	if err != nil {
		return nil, err
	}
	return s.Reconcile(ctx, Event{
		OrderID:           p.OrderID,
		ExternalReference: p.ExternalReference,
		GatewayStatus:     status.TransactionStatus,
		GrossAmount:       status.GrossAmount,
		TransactionID:     status.TransactionID,
		TransactionTime:   status.TransactionTime,
		Source:            source,
	})
}

func toStatusView(order *models.Order) *StatusView {
	view := &StatusView{OrderID: order.ID, OrderStatus: order.Status}
	if p := order.Payment; p != nil {
		status := p.Status
		view.PaymentStatus = &status
		view.QRISStatus = p.GatewayStatus
	}
	return view
}
