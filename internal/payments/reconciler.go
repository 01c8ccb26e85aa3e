package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
)

// Reconcile outcomes, also used as metric labels.
const (
	outcomeApplied           = "applied"
	outcomeNoop              = "noop"
	outcomeConflict          = "conflict"
	outcomeAmountMismatch    = "amount_mismatch"
	outcomeReferenceMismatch = "reference_mismatch"
)

// Event is one observation of the gateway's transaction status.
type Event struct {
	OrderID           uuid.UUID
	ExternalReference string
	GatewayStatus     string
	GrossAmount       int64
	TransactionID     string
	TransactionTime   *time.Time
	Source            string
}

// Result reports the payment state after reconciliation.
type Result struct {
	Changed     bool
	Payment     *models.Payment
	OrderStatus enums.OrderStatus
}

// MapGatewayStatus translates a raw transaction_status. Unknown and
// in-flight statuses map to Pending.
func MapGatewayStatus(raw string) enums.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "settlement", "capture":
		return enums.PaymentStatusSuccess
	case "cancel", "expire", "deny", "failure":
		return enums.PaymentStatusFailed
	case "refund", "partial_refund":
		return enums.PaymentStatusRefunded
	default:
		return enums.PaymentStatusPending
	}
}

// Reconcile applies a gateway observation. It is idempotent: replays,
// stale events and losers of a concurrent update change nothing. Terminal
// payments never change except Success -> Refunded.
func (s *Service) Reconcile(ctx context.Context, ev Event) (*Result, error) {
	if ev.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	source := ev.Source
	if source == "" {
		source = SourceWebhook
	}
	target := MapGatewayStatus(ev.GatewayStatus)

	var (
		result  *Result
		outcome = outcomeNoop
		pending []notifications.Message
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		pending = nil
		payRepo := s.repo.WithTx(tx)
		payment, err := payRepo.FindByOrderID(ctx, ev.OrderID)
		if err != nil {
			return err
		}
		order, err := s.orders.WithTx(tx).FindOrder(ctx, payment.OrderID)
		if err != nil {
			return err
		}
		result = &Result{Payment: payment, OrderStatus: order.Status}
		fields := map[string]any{
			"order_id":       order.ID.String(),
			"payment_id":     payment.ID.String(),
			"gateway_status": ev.GatewayStatus,
			"source":         source,
		}

		switch {
		case ev.ExternalReference != "" && ev.ExternalReference != payment.ExternalReference:
			outcome = outcomeReferenceMismatch
			s.warn(ctx, fields, "gateway event for unknown external reference ignored")
			return nil
		case ev.GrossAmount != 0 && ev.GrossAmount != payment.Amount:
			outcome = outcomeAmountMismatch
			fields["gross_amount"] = ev.GrossAmount
			fields["payment_amount"] = payment.Amount
			s.warn(ctx, fields, "gateway amount mismatch, event ignored")
			return nil
		case target == enums.PaymentStatusPending, payment.Status == target:
			return nil
		case target == enums.PaymentStatusRefunded && payment.Status == enums.PaymentStatusPending:
			s.warn(ctx, fields, "refund for unpaid payment ignored")
			return nil
		case payment.Status.IsTerminal() && !(payment.Status == enums.PaymentStatusSuccess && target == enums.PaymentStatusRefunded):
			outcome = outcomeConflict
			s.warn(ctx, fields, fmt.Sprintf("gateway reported %s for %s payment", target, payment.Status))
			return s.recordConflict(ctx, tx, payment, payment.Status, target, ev.GatewayStatus, source)
		}

		now := s.clock().UTC()
		from := payment.Status
		updates := map[string]any{
			"gateway_status":   strings.ToLower(strings.TrimSpace(ev.GatewayStatus)),
			"transaction_time": now,
		}
		if ev.TransactionTime != nil {
			updates["transaction_time"] = ev.TransactionTime.UTC()
		}
		if ev.TransactionID != "" {
			updates["transaction_id"] = ev.TransactionID
		}
		swapped, err := payRepo.CompareAndSetStatus(ctx, payment.ID, from, target, updates)
		if err != nil {
			return pkgerrors.FromStorage(err, "update payment status")
		}
		if !swapped {
			// Another writer already moved this payment.
			latest, err := payRepo.FindByOrderID(ctx, ev.OrderID)
			if err != nil {
				return err
			}
			result.Payment = latest
			return nil
		}

		gatewayStatus := updates["gateway_status"].(string)
		payment.Status = target
		payment.GatewayStatus = &gatewayStatus
		if ts, ok := updates["transaction_time"].(time.Time); ok {
			payment.TransactionTime = &ts
		}
		outcome = outcomeApplied
		result.Changed = true

		msg, err := s.applyToOrder(ctx, tx, order, payment, from, source)
		if err != nil {
			return err
		}
		result.OrderStatus = order.Status
		if msg != nil {
			pending = append(pending, *msg)
		}

		eventType := map[enums.PaymentStatus]enums.OutboxEventType{
			enums.PaymentStatusSuccess:  enums.EventPaymentSucceeded,
			enums.PaymentStatusFailed:   enums.EventPaymentFailed,
			enums.PaymentStatusRefunded: enums.EventPaymentRefunded,
		}[target]
		return s.emitPaymentEvent(ctx, tx, eventType, order, payment, from, source, now)
	})
	s.metrics.IncReconcile(source, outcomeLabel(outcome, err))
	if err != nil {
		return nil, err
	}
	if outcome == outcomeConflict {
		s.metrics.IncConflict()
	}

	for _, msg := range pending {
		s.notify.EmitBestEffort(ctx, msg)
	}
	if result.Changed && s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       result.Payment.OrderID.String(),
			"payment_id":     result.Payment.ID.String(),
			"payment_status": string(result.Payment.Status),
			"order_status":   string(result.OrderStatus),
			"source":         source,
		})
		s.logg.Info(logCtx, "payment reconciled")
	}
	return result, nil
}

// applyToOrder moves the order to match the new payment status and returns
// the customer notification to send after commit.
func (s *Service) applyToOrder(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, from enums.PaymentStatus, source string) (*notifications.Message, error) {
	orderID := order.ID
	ref := "#" + strings.ToUpper(order.ID.String()[:8])
	msg := &notifications.Message{UserID: order.UserID, OrderID: &orderID}

	switch payment.Status {
	case enums.PaymentStatusSuccess:
		if order.Status == enums.OrderStatusPending {
			if err := s.settleOrder(ctx, tx, order); err != nil {
				return nil, err
			}
		}
		if order.Status == enums.OrderStatusCancel {
			// Paid after the order was canceled: keep the money visible for a manual refund.
			s.warn(ctx, map[string]any{"order_id": order.ID.String(), "payment_id": payment.ID.String()}, "payment settled for canceled order")
			if err := s.recordConflict(ctx, tx, payment, from, payment.Status, derefString(payment.GatewayStatus), source); err != nil {
				return nil, err
			}
		}
		msg.Type = enums.NotificationTypePayment
		msg.Text = fmt.Sprintf("Payment of Rp %d for order %s was received.", payment.Amount, ref)
	case enums.PaymentStatusFailed:
		if orders.CanTransition(order.Status, enums.OrderStatusCancel) {
			if _, err := s.transitions.Transition(ctx, tx, order, enums.OrderStatusCancel, ""); err != nil {
				return nil, err
			}
		}
		msg.Type = enums.NotificationTypeOrderUpdate
		msg.Text = fmt.Sprintf("Payment for order %s was not completed. The order has been canceled.", ref)
	case enums.PaymentStatusRefunded:
		msg.Type = enums.NotificationTypeRefund
		msg.Text = fmt.Sprintf("Your payment of Rp %d for order %s has been refunded.", payment.Amount, ref)
	default:
		return nil, nil
	}
	return msg, nil
}

// settleOrder moves a pending order to Packaging. A cancel that committed
// between our read and the status write leaves order in Cancel instead of
// failing the settlement.
func (s *Service) settleOrder(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	res, err := s.transitions.Transition(ctx, tx, order, enums.OrderStatusPackaging, "")
	if err == nil {
		if res != nil && res.Order != nil {
			order.Status = res.Order.Status
		}
		return nil
	}
	if !pkgerrors.Is(err, pkgerrors.CodeInvalidTransition) {
		return err
	}
	current, findErr := s.orders.WithTx(tx).FindOrder(ctx, order.ID)
	if findErr != nil {
		return findErr
	}
	if current.Status != enums.OrderStatusCancel {
		return err
	}
	order.Status = current.Status
	order.CanceledAt = current.CanceledAt
	return nil
}

func (s *Service) recordConflict(ctx context.Context, tx *gorm.DB, payment *models.Payment, current, incoming enums.PaymentStatus, gatewayStatus, source string) error {
	conflict := &models.PaymentConflict{
		PaymentID:      payment.ID,
		OrderID:        payment.OrderID,
		CurrentStatus:  current,
		IncomingStatus: incoming,
		GatewayStatus:  gatewayStatus,
		Source:         source,
	}
	recorded, err := s.repo.WithTx(tx).RecordConflict(ctx, conflict)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment conflict")
	}
	if !recorded {
		return nil
	}
	err = s.outbox.Emit(ctx, tx, outbox.Event{
		EventType:     enums.EventPaymentConflict,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentConflictEvent{
			PaymentID:      payment.ID,
			OrderID:        payment.OrderID,
			CurrentStatus:  current,
			IncomingStatus: incoming,
			GatewayStatus:  gatewayStatus,
			Source:         source,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment conflict event")
	}
	return nil
}

func (s *Service) emitPaymentEvent(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, order *models.Order, payment *models.Payment, from enums.PaymentStatus, source string, now time.Time) error {
	err := s.outbox.Emit(ctx, tx, outbox.Event{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Data: payloads.PaymentStatusEvent{
			PaymentID:         payment.ID,
			OrderID:           order.ID,
			UserID:            order.UserID,
			ExternalReference: payment.ExternalReference,
			GatewayStatus:     derefString(payment.GatewayStatus),
			From:              from,
			Status:            payment.Status,
			Amount:            payment.Amount,
			Tax:               order.Tax,
			Source:            source,
			OccurredAt:        now,
		},
		OccurredAt: now,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment event")
	}
	return nil
}

func outcomeLabel(outcome string, err error) string {
	if err != nil {
		return "error"
	}
	return outcome
}
