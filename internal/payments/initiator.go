package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

// InitiateResult is what the client needs to render the QR code.
type InitiateResult struct {
	PaymentID         uuid.UUID           `json:"payment_id"`
	Token             string              `json:"token"`
	RedirectURL       string              `json:"redirect_url"`
	QRString          string              `json:"qr_string"`
	ExternalReference string              `json:"external_reference"`
	Amount            int64               `json:"amount"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
}

// Initiate charges the order through the QRIS gateway and records a Pending
// payment. A payment that already exists is returned unchanged. Nothing is
// stored when the gateway call fails.
func (s *Service) Initiate(ctx context.Context, userID, orderID uuid.UUID) (*InitiateResult, error) {
	order, err := s.orders.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	if !order.PaymentMethod.RequiresGateway() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is not paid by QRIS")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "order is no longer awaiting payment").
			WithDetails(map[string]any{"status": order.Status})
	}
	if order.Payment != nil {
		return toInitiateResult(order.Payment), nil
	}

	ref := qris.BuildExternalReference(s.cfg.OrderIDPrefix, order.ID, s.clock())
	req := qris.ChargeRequest{
		ExternalReference: ref,
		GrossAmount:       order.Total,
		Items:             chargeItems(order),
	}

	started := time.Now()
	resp, err := s.gateway.Charge(ctx, req)
	s.metrics.ObserveGateway("charge", time.Since(started), err)
	if err != nil {
		s.warn(ctx, map[string]any{"order_id": order.ID.String(), "external_reference": ref}, "qris charge failed: "+err.Error())
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "qris charge failed")
	}

	payment := &models.Payment{
		OrderID:           order.ID,
		Amount:            order.Total,
		Method:            enums.PaymentMethodQRIS,
		ExternalReference: ref,
		TransactionID:     optionalString(resp.TransactionID),
		QRString:          optionalString(resp.QRString),
		RedirectURL:       optionalString(resp.QRImageURL),
		GatewayStatus:     optionalString(resp.TransactionStatus),
		Status:            enums.PaymentStatusPending,
		TransactionTime:   resp.TransactionTime,
	}
	if err := s.repo.Create(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, paymentOrderIndex) {
			existing, findErr := s.repo.FindByOrderID(ctx, order.ID)
			if findErr != nil {
				return nil, findErr
			}
			return toInitiateResult(existing), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store payment")
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":           order.ID.String(),
			"payment_id":         payment.ID.String(),
			"external_reference": ref,
			"amount":             payment.Amount,
		})
		s.logg.Info(logCtx, "qris payment initiated")
	}
	return toInitiateResult(payment), nil
}

// chargeItems lists every order line plus a tax line so the item prices add
// up to the gross amount.
func chargeItems(order *models.Order) []qris.ItemDetail {
	items := make([]qris.ItemDetail, 0, len(order.Lines)+1)
	for _, line := range order.Lines {
		items = append(items, qris.ItemDetail{
			ID:       line.VariantID.String(),
			Name:     truncateName(fmt.Sprintf("%s %s", line.ProductName, line.Size)),
			Price:    line.UnitPrice,
			Quantity: line.Quantity,
		})
	}
	if order.Tax > 0 {
		items = append(items, qris.ItemDetail{
			ID:       "TAX",
			Name:     "Tax",
			Price:    order.Tax,
			Quantity: 1,
		})
	}
	return items
}

// The gateway rejects item names longer than 50 characters.
func truncateName(name string) string {
	const maxLen = 50
	runes := []rune(name)
	if len(runes) <= maxLen {
		return name
	}
	return string(runes[:maxLen])
}

func toInitiateResult(p *models.Payment) *InitiateResult {
	return &InitiateResult{
		PaymentID:         p.ID,
		Token:             derefString(p.TransactionID),
		RedirectURL:       derefString(p.RedirectURL),
		QRString:          derefString(p.QRString),
		ExternalReference: p.ExternalReference,
		Amount:            p.Amount,
		PaymentStatus:     p.Status,
	}
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
