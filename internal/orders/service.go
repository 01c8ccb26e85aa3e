package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the order status machine and order reads.
type Service interface {
	Transitioner
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error)
	AdminList(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*ListResult, error)
}

// UpdateStatusInput is an admin-driven status change.
type UpdateStatusInput struct {
	OrderID        uuid.UUID
	Status         enums.OrderStatus
	TrackingNumber string
	ActorID        uuid.UUID
	ActorRole      enums.UserRole
}

// TransitionResult describes what a Transition call did. Changed is false
// for same-status no-ops and for losers of a concurrent update.
type TransitionResult struct {
	Order           *models.Order
	From            enums.OrderStatus
	To              enums.OrderStatus
	Changed         bool
	StockRestored   bool
	RefundedPayment *models.Payment
}

type ServiceParams struct {
	Repo          Repository
	DB            txRunner
	Stock         StockCrediter
	Outbox        outbox.Emitter
	Notifications notifications.Emitter
	Logger        *logger.Logger
	Clock         func() time.Time
}

type service struct {
	repo   Repository
	tx     txRunner
	stock  StockCrediter
	outbox outbox.Emitter
	notify notifications.Emitter
	logg   *logger.Logger
	clock  func() time.Time
}

// NewService wires the order status machine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:   params.Repo,
		tx:     params.DB,
		stock:  params.Stock,
		outbox: params.Outbox,
		notify: params.Notifications,
		logg:   params.Logger,
		clock:  clock,
	}, nil
}

// Transition moves order to target inside tx. The status write is a
// compare-and-set on the loaded status, so only one of several concurrent
// callers performs the side effects (stock credit, refund, outbox row).
func (s *service) Transition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, trackingNumber string) (*TransitionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	from := order.Status
	result := &TransitionResult{Order: order, From: from, To: target}
	if from == target {
		return result, nil
	}
	if !CanTransition(from, target) {
		return nil, invalidTransition(from, target, fmt.Sprintf("cannot move order from %s to %s", from, target))
	}
	trackingNumber = strings.TrimSpace(trackingNumber)
	if target == enums.OrderStatusShipping && trackingNumber == "" {
		return nil, invalidTransition(from, target, "tracking number required for Shipping")
	}

	now := s.clock().UTC()
	updates := map[string]any{}
	switch target {
	case enums.OrderStatusShipping:
		updates["tracking_number"] = trackingNumber
		updates["shipped_at"] = now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
	case enums.OrderStatusCancel:
		updates["canceled_at"] = now
	}

	repo := s.repo.WithTx(tx)
	swapped, err := repo.CompareAndSetStatus(ctx, order.ID, from, target, updates)
	if err != nil {
		return nil, pkgerrors.FromStorage(err, "update order status")
	}
	if !swapped {
		current, err := repo.FindOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if current.Status == from {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "order status update lost")
		}
		// Someone else moved the order first; re-evaluate from where it is now.
		return s.Transition(ctx, tx, current, target, trackingNumber)
	}

	order.Status = target
	order.UpdatedAt = now
	switch target {
	case enums.OrderStatusShipping:
		order.TrackingNumber = &trackingNumber
		order.ShippedAt = &now
	case enums.OrderStatusDelivered:
		order.DeliveredAt = &now
	case enums.OrderStatusCancel:
		order.CanceledAt = &now
	}
	result.Changed = true

	if target == enums.OrderStatusCancel {
		if err := s.restock(ctx, tx, repo, order); err != nil {
			return nil, err
		}
		result.StockRestored = true

		refunded, err := repo.RefundSucceededPayment(ctx, order.ID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "refund payment")
		}
		if refunded != nil {
			result.RefundedPayment = refunded
			order.Payment = refunded
			if err := s.emitRefund(ctx, tx, order, refunded, now); err != nil {
				return nil, err
			}
		}
	}

	event := payloads.OrderStatusChangedEvent{
		OrderID:        order.ID,
		UserID:         order.UserID,
		From:           from,
		To:             target,
		TrackingNumber: order.TrackingNumber,
		Total:          order.Total,
		Tax:            order.Tax,
		StockRestored:  result.StockRestored,
		ChangedAt:      now,
	}
	if err := s.outbox.Emit(ctx, tx, outbox.Event{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorFromContext(ctx),
		Data:          event,
		OccurredAt:    now,
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order status event")
	}
	return result, nil
}

func (s *service) restock(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order) error {
	lines := order.Lines
	if len(lines) == 0 {
		loaded, err := repo.FindOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		lines = loaded.Lines
		order.Lines = lines
	}
	for _, line := range lines {
		if err := s.stock.Credit(ctx, tx, line.VariantID, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) emitRefund(ctx context.Context, tx *gorm.DB, order *models.Order, payment *models.Payment, now time.Time) error {
	gatewayStatus := ""
	if payment.GatewayStatus != nil {
		gatewayStatus = *payment.GatewayStatus
	}
	event := payloads.PaymentStatusEvent{
		PaymentID:         payment.ID,
		OrderID:           order.ID,
		UserID:            order.UserID,
		ExternalReference: payment.ExternalReference,
		GatewayStatus:     gatewayStatus,
		From:              enums.PaymentStatusSuccess,
		Status:            enums.PaymentStatusRefunded,
		Amount:            payment.Amount,
		Tax:               order.Tax,
		Source:            "order_cancel",
		OccurredAt:        now,
	}
	if err := s.outbox.Emit(ctx, tx, outbox.Event{
		EventType:     enums.EventPaymentRefunded,
		AggregateType: enums.AggregatePayment,
		AggregateID:   payment.ID,
		Actor:         actorFromContext(ctx),
		Data:          event,
		OccurredAt:    now,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue payment refund event")
	}
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*OrderDTO, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.ActorID != uuid.Nil {
		ctx = WithActor(ctx, input.ActorID, input.ActorRole)
	}

	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.repo.WithTx(tx).FindOrder(ctx, input.OrderID)
		if err != nil {
			return err
		}
		result, err = s.Transition(ctx, tx, order, input.Status, input.TrackingNumber)
		return err
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		s.notifyTransition(ctx, result)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":    result.Order.ID.String(),
				"from_status": string(result.From),
				"to_status":   string(result.To),
			})
			s.logg.Info(logCtx, "order status updated")
		}
	}
	return ToDTO(result.Order), nil
}

func (s *service) notifyTransition(ctx context.Context, result *TransitionResult) {
	order := result.Order
	orderID := order.ID
	msg := notifications.Message{UserID: order.UserID, OrderID: &orderID}
	ref := shortOrderRef(orderID)

	switch result.To {
	case enums.OrderStatusPackaging:
		msg.Type = enums.NotificationTypeOrderUpdate
		msg.Text = fmt.Sprintf("Your order %s is being packaged.", ref)
	case enums.OrderStatusShipping:
		tracking := ""
		if order.TrackingNumber != nil {
			tracking = *order.TrackingNumber
		}
		msg.Type = enums.NotificationTypeDelivery
		msg.Text = fmt.Sprintf("Your order %s has been shipped. Tracking number: %s.", ref, tracking)
	case enums.OrderStatusDelivered:
		msg.Type = enums.NotificationTypeDelivery
		msg.Text = fmt.Sprintf("Your order %s has been delivered.", ref)
	case enums.OrderStatusCancel:
		if result.RefundedPayment != nil {
			msg.Type = enums.NotificationTypeRefund
			msg.Text = fmt.Sprintf("Your order %s was canceled. A refund of Rp %d is being processed.", ref, result.RefundedPayment.Amount)
		} else {
			msg.Type = enums.NotificationTypeOrderUpdate
			msg.Text = fmt.Sprintf("Your order %s has been canceled.", ref)
		}
	default:
		return
	}
	s.notify.EmitBestEffort(ctx, msg)
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindUserOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return ToDTO(order), nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	return s.list(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) AdminList(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*ListResult, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	return s.list(ctx, ListFilters{Status: status}, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	filters.Cursor = cursor
	filters.Limit = limit

	rows, err := s.repo.ListOrders(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	rows, next := pagination.Page(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	result := &ListResult{Orders: make([]OrderDTO, 0, len(rows))}
	if next != nil {
		result.NextCursor = next.Encode()
	}
	for i := range rows {
		result.Orders = append(result.Orders, *ToDTO(&rows[i]))
	}
	return result, nil
}

func invalidTransition(from, to enums.OrderStatus, message string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, message).WithDetails(map[string]any{
		"from": from,
		"to":   to,
	})
}

func shortOrderRef(id uuid.UUID) string {
	return "#" + strings.ToUpper(id.String()[:8])
}
