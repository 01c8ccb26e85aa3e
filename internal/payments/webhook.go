package payments

import (
	"context"
	"strings"

	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

const webhookGuardScope = "qris-webhook"

// HandleNotification reconciles one gateway notification. The HTTP layer
// acknowledges the gateway regardless of the returned error.
func (s *Service) HandleNotification(ctx context.Context, n qris.Notification) error {
	orderID, err := qris.ParseExternalReference(n.OrderID)
	if err != nil {
		s.metrics.IncReconcile(SourceWebhook, "malformed")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unrecognized order reference")
	}
	fields := map[string]any{
		"order_id":           orderID.String(),
		"external_reference": n.OrderID,
		"gateway_status":     n.TransactionStatus,
	}
	if s.cfg.VerifySignature && !qris.VerifySignature(n, s.cfg.ServerKey) {
		s.metrics.IncReconcile(SourceWebhook, "bad_signature")
		s.warn(ctx, fields, "webhook signature mismatch, notification ignored")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid notification signature")
	}

	gross, err := n.Amount()
	if err != nil {
		// A garbled amount cannot be checked against the payment, so the
		// notification is dropped rather than applied unchecked.
		s.metrics.IncReconcile(SourceWebhook, "malformed")
		s.warn(ctx, fields, "webhook gross amount unreadable, notification ignored")
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable gross amount")
	}

	status := strings.ToLower(strings.TrimSpace(n.TransactionStatus))
	guardKey := ""
	if s.guard != nil {
		key := s.guard.IdempotencyKey(webhookGuardScope, n.OrderID+":"+status)
		acquired, err := s.guard.SetNX(ctx, key, n.TransactionID, s.cfg.WebhookGuardTTL)
		switch {
		case err != nil:
			// Redis is only a pre-filter; the reconciler is idempotent on its own.
			s.warn(ctx, fields, "webhook guard unavailable: "+err.Error())
		case !acquired:
			s.metrics.IncReconcile(SourceWebhook, "duplicate")
			return nil
		default:
			guardKey = key
		}
	}

	_, err = s.Reconcile(ctx, Event{
		OrderID:           orderID,
		ExternalReference: n.OrderID,
		GatewayStatus:     status,
		GrossAmount:       gross,
		TransactionID:     n.TransactionID,
		TransactionTime:   n.Time(),
		Source:            SourceWebhook,
	})
	if err != nil && guardKey != "" {
		if delErr := s.guard.Del(context.WithoutCancel(ctx), guardKey); delErr != nil {
			s.warn(ctx, fields, "release webhook guard: "+delErr.Error())
		}
	}
	return err
}
