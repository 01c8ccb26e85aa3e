package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/endpoint"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/middleware"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/validators"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/checkout"
	internalorders "github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
)

type placeOrderRequest struct {
	CartIDs         []uuid.UUID `json:"cart_ids" validate:"required,min=1"`
	ShippingAddress string      `json:"shipping_address" validate:"required,max=500"`
	PaymentMethod   string      `json:"payment_method" validate:"required,payment_method"`
}

// PlaceOrder turns the caller's selected cart lines into a Pending order.
func PlaceOrder(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "checkout", svc != nil, func(r *http.Request) (int, any, error) {
		user, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		var body placeOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Fail(err)
		}
		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			return endpoint.Fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "payment_method must be QRIS or COD"))
		}
		order, err := svc.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			UserID:          user,
			CartItemIDs:     body.CartIDs,
			ShippingAddress: validators.SanitizeString(body.ShippingAddress, 500),
			PaymentMethod:   method,
		})
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.Created(order)
	})
}

// List pages the caller's own orders, newest first.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "orders", svc != nil, func(r *http.Request) (int, any, error) {
		user, err := endpoint.CallerID(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		page, err := endpoint.PageParams(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		result, err := svc.List(r.Context(), user, page)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(result)
	})
}

// Get answers 404 for orders that belong to someone else.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "orders", svc != nil, func(r *http.Request) (int, any, error) {
		user, orderID, err := endpoint.CallerAnd(r, "orderId")
		if err != nil {
			return endpoint.Fail(err)
		}
		order, err := svc.Get(r.Context(), user, orderID)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(order)
	})
}

// AdminList pages every order, optionally filtered by ?status=.
func AdminList(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "orders", svc != nil, func(r *http.Request) (int, any, error) {
		page, err := endpoint.PageParams(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		filter, err := statusFilter(r)
		if err != nil {
			return endpoint.Fail(err)
		}
		result, err := svc.AdminList(r.Context(), filter, page)
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(result)
	})
}

func statusFilter(r *http.Request) (*enums.OrderStatus, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("status"))
	if raw == "" {
		return nil, nil
	}
	status, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
	}
	return &status, nil
}

type updateOrderStatusRequest struct {
	Status         string `json:"status" validate:"required,order_status"`
	TrackingNumber string `json:"tracking_number" validate:"omitempty,max=100"`
}

// AdminUpdateStatus drives the status machine; a move it forbids
// answers 422.
func AdminUpdateStatus(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return endpoint.Handle(logg, "orders", svc != nil, func(r *http.Request) (int, any, error) {
		actor, orderID, err := endpoint.CallerAnd(r, "orderId")
		if err != nil {
			return endpoint.Fail(err)
		}
		var body updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return endpoint.Fail(err)
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(body.Status))
		if err != nil {
			return endpoint.Fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
		}
		order, err := svc.UpdateStatus(r.Context(), internalorders.UpdateStatusInput{
			OrderID:        orderID,
			Status:         status,
			TrackingNumber: strings.TrimSpace(body.TrackingNumber),
			ActorID:        actor,
			ActorRole:      middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			return endpoint.Fail(err)
		}
		return endpoint.OK(order)
	})
}
