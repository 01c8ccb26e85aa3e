package payments

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/stock"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

const testServerKey = "SB-Mid-server-test"

type fakeGateway struct {
	chargeFn func(ctx context.Context, req qris.ChargeRequest) (*qris.ChargeResponse, error)
	statusFn func(ctx context.Context, ref string) (*qris.TransactionStatus, error)
	charges  int32
	statuses int32
}

func (f *fakeGateway) Charge(ctx context.Context, req qris.ChargeRequest) (*qris.ChargeResponse, error) {
	atomic.AddInt32(&f.charges, 1)
	if f.chargeFn != nil {
		return f.chargeFn(ctx, req)
	}
	return &qris.ChargeResponse{
		TransactionID:     "trx-" + req.ExternalReference,
		ExternalReference: req.ExternalReference,
		TransactionStatus: "pending",
		QRString:          "00020101021226",
		QRImageURL:        "https://gateway.test/qr/" + req.ExternalReference,
		GrossAmount:       req.GrossAmount,
	}, nil
}

func (f *fakeGateway) Status(ctx context.Context, ref string) (*qris.TransactionStatus, error) {
	atomic.AddInt32(&f.statuses, 1)
	if f.statusFn != nil {
		return f.statusFn(ctx, ref)
	}
	return &qris.TransactionStatus{ExternalReference: ref, TransactionStatus: "pending"}, nil
}

type memoryGuard struct {
	mu   sync.Mutex
	keys map[string]any
}

func newMemoryGuard() *memoryGuard {
	return &memoryGuard{keys: map[string]any{}}
}

func (g *memoryGuard) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.keys[key]; ok {
		return false, nil
	}
	g.keys[key] = value
	return true, nil
}

func (g *memoryGuard) Del(_ context.Context, keys ...string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, key := range keys {
		delete(g.keys, key)
	}
	return nil
}

func (g *memoryGuard) IdempotencyKey(scope, id string) string {
	return "5scent:idempotency:" + scope + ":" + id
}

func (g *memoryGuard) has(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.keys[key]
	return ok
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notifications.Message
}

func (r *recordingNotifier) Emit(_ context.Context, msg notifications.Message) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return &models.Notification{UserID: msg.UserID, Type: msg.Type, Message: msg.Text}, nil
}

func (r *recordingNotifier) EmitBestEffort(ctx context.Context, msg notifications.Message) {
	_, _ = r.Emit(ctx, msg)
}

func (r *recordingNotifier) sent() []notifications.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notifications.Message(nil), r.messages...)
}

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	gateway  *fakeGateway
	guard    *memoryGuard
	notifier *recordingNotifier
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	f := &fixture{
		conn:     conn,
		gateway:  &fakeGateway{},
		guard:    newMemoryGuard(),
		notifier: &recordingNotifier{},
		now:      time.Now().UTC(),
	}
	emitter := outbox.NewWriter(outbox.NewRepository(conn), nil)
	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:          orderRepo,
		DB:            client,
		Stock:         stock.NewLedger(conn),
		Outbox:        emitter,
		Notifications: f.notifier,
	})
	require.NoError(t, err)

	f.svc, err = NewService(ServiceParams{
		DB:            client,
		Repo:          NewRepository(conn),
		Orders:        orderRepo,
		Transitions:   orderSvc,
		Gateway:       f.gateway,
		Outbox:        emitter,
		Notifications: f.notifier,
		Guard:         f.guard,
		Config: config.GatewayConfig{
			ServerKey:         testServerKey,
			OrderIDPrefix:     "5SCENT",
			VerifySignature:   true,
			PollFallbackAfter: 2 * time.Minute,
			WebhookGuardTTL:   time.Hour,
		},
		Clock: func() time.Time { return f.now },
	})
	require.NoError(t, err)
	return f
}

type seeded struct {
	order models.Order
	a, b  models.ProductVariant
}

// seedOrder creates a QRIS order of 1 x A and 3 x B at 50000 each
// (subtotal 200000, total 210000) with 10 units of each in stock.
func (f *fixture) seedOrder(t *testing.T, method enums.PaymentMethod) seeded {
	t.Helper()
	a := dbtest.SeedVariant(t, f.conn, "Aurora", 50000, 10)
	b := dbtest.SeedVariant(t, f.conn, "Noir", 50000, 10)
	order := dbtest.SeedOrder(t, f.conn, uuid.New(), method,
		models.OrderLine{VariantID: a.ID, Quantity: 1, UnitPrice: 50000},
		models.OrderLine{VariantID: b.ID, Quantity: 3, UnitPrice: 50000},
	)
	return seeded{order: order, a: a, b: b}
}

// seedPendingPayment seeds an order and initiates its QRIS payment.
func (f *fixture) seedPendingPayment(t *testing.T) (seeded, *InitiateResult) {
	t.Helper()
	s := f.seedOrder(t, enums.PaymentMethodQRIS)
	res, err := f.svc.Initiate(context.Background(), s.order.UserID, s.order.ID)
	require.NoError(t, err)
	return s, res
}

func (f *fixture) payment(t *testing.T, orderID uuid.UUID) models.Payment {
	t.Helper()
	var p models.Payment
	require.NoError(t, f.conn.Where("order_id = ?", orderID).Take(&p).Error)
	return p
}

func (f *fixture) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()
	var o models.Order
	require.NoError(t, f.conn.Select("status").Where("id = ?", orderID).Take(&o).Error)
	return o.Status
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
