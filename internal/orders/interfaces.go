package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
)

// Repository defines persistence operations for orders and their lines.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindUserOrder(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOrders(ctx context.Context, filters ListFilters) ([]models.Order, error)
	CompareAndSetStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus, updates map[string]any) (bool, error)
	RefundSucceededPayment(ctx context.Context, orderID uuid.UUID, now time.Time) (*models.Payment, error)
	FindUnpaidOrdersBefore(ctx context.Context, method enums.PaymentMethod, cutoff time.Time, limit int) ([]models.Order, error)
}

// Transitioner is the in-transaction form of the status machine used by the
// payment reconciler.
type Transitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, trackingNumber string) (*TransitionResult, error)
}

// StockCrediter returns stock for canceled lines.
type StockCrediter interface {
	Credit(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
}
