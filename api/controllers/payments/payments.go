package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/endpoint"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/responses"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	internalpayments "github.com/all-if-r/5SCENT-WEB-sub001/internal/payments"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

const maxWebhookBody = 64 << 10

// Service is the slice of the payments service the HTTP layer drives.
type Service interface {
	Initiate(ctx context.Context, userID, orderID uuid.UUID) (*internalpayments.InitiateResult, error)
	Status(ctx context.Context, userID, orderID uuid.UUID) (*internalpayments.StatusView, error)
	HandleNotification(ctx context.Context, n qris.Notification) error
}

type initiateQRISRequest struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// InitiateQRIS charges a Pending QRIS order through the gateway. A gateway
// outage answers 400 so the storefront offers a retry.
func InitiateQRIS(svc Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "payments", svc != nil, func(r *http.Request) (int, any, error) {
		user, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		var body initiateQRISRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Fail(err)
		}
		result, err := svc.Initiate(r.Context(), user, body.OrderID)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(result)
	}, responses.OverrideStatus(pkgerrors.CodeGatewayUnavailable, http.StatusBadRequest))
}

// Webhook receives gateway notifications. The gateway retries anything
// other than 200, so every outcome is acknowledged and failures are only logged.
func Webhook(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ack := map[string]bool{"received": true}

		if svc == nil {
			if logg != nil {
				logg.Error(ctx, "internalpayments.webhook.unavailable", pkgerrors.New(pkgerrors.CodeInternal, "payments service unavailable"))
			}
			responses.WriteSuccess(w, ack)
			return
		}

		var notification qris.Notification
		if err := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody)).Decode(&notification); err != nil {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "error", err.Error()), "internalpayments.webhook.malformed")
			}
			responses.WriteSuccess(w, ack)
			return
		}

		if logg != nil {
			ctx = logg.WithFields(ctx, map[string]any{
				"external_reference": notification.OrderID,
				"gateway_status":     notification.TransactionStatus,
			})
		}

		if err := svc.HandleNotification(ctx, notification); err != nil && logg != nil {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "internalpayments.webhook.rejected")
		}
		responses.WriteSuccess(w, ack)
	}
}

// Status answers client polling for one of the caller's orders.
func Status(svc Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "payments", svc != nil, func(r *http.Request) (int, any, error) {
		user, orderID, err := endpoint.CallerAnd(r, "orderId")
		if err != nil {
			return endpoint.Fail(err)
		}
		view, err := svc.Status(r.Context(), user, orderID)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(view)
	})
}
