package checkout

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/cart"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/catalog"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/checkout/helpers"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/stock"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockDebiter interface {
	Debit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}

// Service assembles orders from cart lines.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error)
}

// PlaceOrderInput names the cart lines to convert into one order.
type PlaceOrderInput struct {
	UserID          uuid.UUID
	CartItemIDs     []uuid.UUID
	ShippingAddress string
	PaymentMethod   enums.PaymentMethod
}

type ServiceParams struct {
	DB      txRunner
	Orders  orders.Repository
	Catalog catalog.Reader
	Stock   stockDebiter
	Outbox  outbox.Emitter
	TaxRate decimal.Decimal
	Logger  *logger.Logger
	// Notifications receives the customer's profile reminder after an order
	// is placed. Nil skips it.
	Notifications notifications.Emitter
	// Carts binds a cart repository to the checkout transaction. Defaults to cart.NewRepository.
	Carts func(tx *gorm.DB) cart.Repository
	Clock func() time.Time
}

const profileReminderText = "Complete your profile so your next checkout is faster."

type service struct {
	tx      txRunner
	orders  orders.Repository
	catalog catalog.Reader
	stock   stockDebiter
	outbox  outbox.Emitter
	taxRate decimal.Decimal
	logg    *logger.Logger
	notify  notifications.Emitter
	carts   func(tx *gorm.DB) cart.Repository
	clock   func() time.Time
}

// NewService builds the order assembly service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.TaxRate.IsNegative() {
		return nil, fmt.Errorf("tax rate must not be negative")
	}
	carts := params.Carts
	if carts == nil {
		carts = cart.NewRepository
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		tx:      params.DB,
		orders:  params.Orders,
		catalog: params.Catalog,
		stock:   params.Stock,
		outbox:  params.Outbox,
		taxRate: params.TaxRate,
		logg:    params.Logger,
		notify:  params.Notifications,
		carts:   carts,
		clock:   clock,
	}, nil
}

// PlaceOrder debits stock for every named cart line, freezes prices and tax
// onto a new Pending order and clears the consumed lines. Any failure rolls
// the whole unit back.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*orders.OrderDTO, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	address, err := helpers.ValidateShippingAddress(input.ShippingAddress)
	if err != nil {
		return nil, err
	}
	if err := helpers.ValidatePaymentMethod(input.PaymentMethod); err != nil {
		return nil, err
	}
	cartIDs := helpers.NormalizeCartIDs(input.CartItemIDs)
	if len(cartIDs) == 0 {
		return nil, helpers.EmptyCart()
	}

	var created *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.carts(tx)
		items, err := cartRepo.FindUserItems(ctx, input.UserID, cartIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart items")
		}
		if len(items) == 0 {
			return helpers.EmptyCart()
		}
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].VariantID.String() < items[j].VariantID.String()
		})

		variantIDs := make([]uuid.UUID, 0, len(items))
		for _, item := range items {
			variantIDs = append(variantIDs, item.VariantID)
		}
		snapshots, err := s.catalog.Variants(ctx, tx, variantIDs)
		if err != nil {
			return err
		}

		lines := make([]models.OrderLine, 0, len(items))
		consumed := make([]uuid.UUID, 0, len(items))
		var subtotal int64
		for _, item := range items {
			snap, ok := snapshots[item.VariantID]
			if !ok {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product variant not found").
					WithDetails(map[string]any{"variant_id": item.VariantID, "cart_item_id": item.ID})
			}
			if !snap.Active {
				return pkgerrors.New(pkgerrors.CodeValidation, "product is no longer available").
					WithDetails(map[string]any{"variant_id": item.VariantID, "cart_item_id": item.ID})
			}
			if err := s.stock.Debit(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return attachCartItem(err, item.ID)
			}
			lineTotal := snap.Price * int64(item.Quantity)
			subtotal += lineTotal
			lines = append(lines, models.OrderLine{
				VariantID:   item.VariantID,
				ProductName: snap.ProductName,
				Size:        snap.Size,
				Quantity:    item.Quantity,
				UnitPrice:   snap.Price,
				LineTotal:   lineTotal,
			})
			consumed = append(consumed, item.ID)
		}

		totals := helpers.ComputeTotals(subtotal, s.taxRate)
		order := &models.Order{
			UserID:          input.UserID,
			ShippingAddress: address,
			PaymentMethod:   input.PaymentMethod,
			Subtotal:        totals.Subtotal,
			TaxRate:         s.taxRate,
			Tax:             totals.Tax,
			Total:           totals.Total,
			Status:          enums.OrderStatusPending,
			Lines:           lines,
		}
		if err := s.orders.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return pkgerrors.FromStorage(err, "create order")
		}

		deleted, err := cartRepo.DeleteItems(ctx, input.UserID, consumed)
		if err != nil {
			return pkgerrors.FromStorage(err, "clear cart items")
		}
		if deleted != int64(len(consumed)) {
			return pkgerrors.New(pkgerrors.CodeConflict, "cart changed during checkout")
		}

		if err := s.emitOrderCreated(ctx, tx, order); err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":       created.ID.String(),
			"user_id":        created.UserID.String(),
			"payment_method": string(created.PaymentMethod),
			"total":          created.Total,
			"line_count":     len(created.Lines),
		})
		s.logg.Info(logCtx, "order placed")
	}
	if s.notify != nil {
		// Find-or-create: only a customer's first order leaves a reminder.
		s.notify.EmitBestEffort(ctx, notifications.Message{
			UserID: created.UserID,
			Type:   enums.NotificationTypeProfileReminder,
			Text:   profileReminderText,
		})
	}
	return orders.ToDTO(created), nil
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	snapshots := make([]payloads.OrderLineSnapshot, 0, len(order.Lines))
	for _, line := range order.Lines {
		snapshots = append(snapshots, payloads.OrderLineSnapshot{
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			LineTotal:   line.LineTotal,
		})
	}
	now := s.clock().UTC()
	event := outbox.Event{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.Actor{UserID: order.UserID, Role: string(enums.UserRoleCustomer)},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			UserID:        order.UserID,
			PaymentMethod: order.PaymentMethod,
			Subtotal:      order.Subtotal,
			TaxRate:       order.TaxRate.String(),
			Tax:           order.Tax,
			Total:         order.Total,
			Lines:         snapshots,
			CreatedAt:     now,
		},
		OccurredAt: now,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order created event")
	}
	return nil
}

// attachCartItem decorates a stock shortage with the cart line that caused it.
func attachCartItem(err error, cartItemID uuid.UUID) error {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return err
	}
	details, ok := typed.Details().(stock.ShortageDetails)
	if !ok {
		return err
	}
	details.CartItemID = &cartItemID
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, typed.Message()).WithDetails(details)
}
