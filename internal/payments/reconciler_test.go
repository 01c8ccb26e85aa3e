package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/dbtest"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db/models"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

func TestMapGatewayStatus(t *testing.T) {
	cases := map[string]enums.PaymentStatus{
		"settlement":     enums.PaymentStatusSuccess,
		"capture":        enums.PaymentStatusSuccess,
		" Settlement ":   enums.PaymentStatusSuccess,
		"cancel":         enums.PaymentStatusFailed,
		"expire":         enums.PaymentStatusFailed,
		"deny":           enums.PaymentStatusFailed,
		"failure":        enums.PaymentStatusFailed,
		"refund":         enums.PaymentStatusRefunded,
		"partial_refund": enums.PaymentStatusRefunded,
		"pending":        enums.PaymentStatusPending,
		"authorize":      enums.PaymentStatusPending,
		"":               enums.PaymentStatusPending,
	}
	for raw, want := range cases {
		require.Equal(t, want, MapGatewayStatus(raw), raw)
	}
}

func TestReconcileSettlementMovesOrderToPackagingOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)

	ev := Event{OrderID: s.order.ID, GatewayStatus: "settlement", GrossAmount: 210000, Source: SourceWebhook}
	res, err := f.svc.Reconcile(ctx, ev)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.PaymentStatusSuccess, res.Payment.Status)
	require.Equal(t, enums.OrderStatusPackaging, res.OrderStatus)

	replay, err := f.svc.Reconcile(ctx, ev)
	require.NoError(t, err)
	require.False(t, replay.Changed)
	require.Equal(t, enums.PaymentStatusSuccess, replay.Payment.Status)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, enums.NotificationTypePayment, sent[0].Type)
	require.Equal(t, enums.OrderStatusPackaging, f.orderStatus(t, s.order.ID))
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentSucceeded))
}

func TestReconcileExpireThenLateSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)

	res, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "expire", Source: SourceWebhook})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.PaymentStatusFailed, res.Payment.Status)
	require.Equal(t, enums.OrderStatusCancel, res.OrderStatus)
	require.Equal(t, 11, dbtest.Stock(t, f.conn, s.a.ID))
	require.Equal(t, 13, dbtest.Stock(t, f.conn, s.b.ID))

	late, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "settlement", Source: SourceWebhook})
	require.NoError(t, err)
	require.False(t, late.Changed)
	require.Equal(t, enums.PaymentStatusFailed, f.payment(t, s.order.ID).Status)
	require.Equal(t, enums.OrderStatusCancel, f.orderStatus(t, s.order.ID))
	require.Equal(t, 11, dbtest.Stock(t, f.conn, s.a.ID), "stock is credited once")

	var conflict models.PaymentConflict
	require.NoError(t, f.conn.Where("order_id = ?", s.order.ID).Take(&conflict).Error)
	require.Equal(t, enums.PaymentStatusFailed, conflict.CurrentStatus)
	require.Equal(t, enums.PaymentStatusSuccess, conflict.IncomingStatus)

	sent := f.notifier.sent()
	require.Len(t, sent, 1)
	require.Equal(t, enums.NotificationTypeOrderUpdate, sent[0].Type)
}

func TestReconcileSettlementAfterAdminCancelFlagsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", s.order.ID).Update("status", enums.OrderStatusCancel).Error)

	res, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "settlement", Source: SourceWebhook})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.PaymentStatusSuccess, res.Payment.Status)
	require.Equal(t, enums.OrderStatusCancel, res.OrderStatus)
	require.EqualValues(t, 1, f.count(t, &models.PaymentConflict{}, "order_id = ?", s.order.ID))
}

func TestReconcileIgnoresAmountMismatch(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)

	res, err := f.svc.Reconcile(context.Background(), Event{OrderID: s.order.ID, GatewayStatus: "settlement", GrossAmount: 1000, Source: SourceWebhook})
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Equal(t, enums.PaymentStatusPending, f.payment(t, s.order.ID).Status)
	require.Equal(t, enums.OrderStatusPending, f.orderStatus(t, s.order.ID))
	require.Empty(t, f.notifier.sent())
}

func TestReconcilePendingStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)

	res, err := f.svc.Reconcile(context.Background(), Event{OrderID: s.order.ID, GatewayStatus: "pending", Source: SourcePoll})
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.Empty(t, f.notifier.sent())
}

func TestReconcileRefundOnlyFromSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)

	early, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "refund", Source: SourceWebhook})
	require.NoError(t, err)
	require.False(t, early.Changed)

	_, err = f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "settlement", Source: SourceWebhook})
	require.NoError(t, err)
	res, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "refund", Source: SourceWebhook})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.PaymentStatusRefunded, res.Payment.Status)

	sent := f.notifier.sent()
	require.Len(t, sent, 2)
	require.Equal(t, enums.NotificationTypeRefund, sent[1].Type)
}

func TestReconcileUnknownOrder(t *testing.T) {
	f := newFixture(t)
	s := f.seedOrder(t, enums.PaymentMethodQRIS)

	_, err := f.svc.Reconcile(context.Background(), Event{OrderID: s.order.ID, GatewayStatus: "settlement"})
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

// cancelFirst commits an admin cancel just before the first Packaging
// transition runs, the way a concurrent request would.
type cancelFirst struct {
	orders.Transitioner
	fired bool
}

func (c *cancelFirst) Transition(ctx context.Context, tx *gorm.DB, order *models.Order, target enums.OrderStatus, tracking string) (*orders.TransitionResult, error) {
	if target == enums.OrderStatusPackaging && !c.fired {
		c.fired = true
		if err := tx.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", enums.OrderStatusCancel).Error; err != nil {
			return nil, err
		}
	}
	return c.Transitioner.Transition(ctx, tx, order, target, tracking)
}

func TestReconcileSettlementRacingCancelKeepsPayment(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)
	f.svc.transitions = &cancelFirst{Transitioner: f.svc.transitions}

	res, err := f.svc.Reconcile(context.Background(), Event{OrderID: s.order.ID, GatewayStatus: "settlement", GrossAmount: 210000, Source: SourceWebhook})
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.Equal(t, enums.OrderStatusCancel, res.OrderStatus)
	require.Equal(t, enums.PaymentStatusSuccess, f.payment(t, s.order.ID).Status)
	require.Equal(t, enums.OrderStatusCancel, f.orderStatus(t, s.order.ID))

	var conflict models.PaymentConflict
	require.NoError(t, f.conn.Where("order_id = ?", s.order.ID).Take(&conflict).Error)
	require.Equal(t, enums.PaymentStatusPending, conflict.CurrentStatus)
	require.Equal(t, enums.PaymentStatusSuccess, conflict.IncomingStatus)
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentSucceeded))
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentConflict))
}

func TestReconcileSuccessIgnoresLateFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)
	stockA, stockB := dbtest.Stock(t, f.conn, s.a.ID), dbtest.Stock(t, f.conn, s.b.ID)

	_, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "settlement", GrossAmount: 210000, Source: SourceWebhook})
	require.NoError(t, err)

	for _, status := range []string{"expire", "cancel", "deny", "expire"} {
		res, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: status, Source: SourcePoll})
		require.NoError(t, err, status)
		require.False(t, res.Changed, status)
	}

	require.Equal(t, enums.PaymentStatusSuccess, f.payment(t, s.order.ID).Status)
	require.Equal(t, enums.OrderStatusPackaging, f.orderStatus(t, s.order.ID))
	require.Equal(t, stockA, dbtest.Stock(t, f.conn, s.a.ID))
	require.Equal(t, stockB, dbtest.Stock(t, f.conn, s.b.ID))
	require.Len(t, f.notifier.sent(), 1)
	require.EqualValues(t, 0, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentFailed))
}

func TestReconcileReplayNTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)

	for i := 0; i < 5; i++ {
		res, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "expire", Source: SourceWebhook})
		require.NoError(t, err)
		require.Equal(t, i == 0, res.Changed, "delivery %d", i)
		require.Equal(t, enums.PaymentStatusFailed, res.Payment.Status)
	}

	require.Equal(t, 11, dbtest.Stock(t, f.conn, s.a.ID))
	require.Equal(t, 13, dbtest.Stock(t, f.conn, s.b.ID))
	require.Len(t, f.notifier.sent(), 1)
	require.EqualValues(t, 1, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentFailed))
	require.EqualValues(t, 0, f.count(t, &models.PaymentConflict{}, "order_id = ?", s.order.ID))
}

func TestReconcileRepeatedConflictRecordedOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, _ := f.seedPendingPayment(t)

	_, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "expire", Source: SourceWebhook})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "settlement", Source: SourcePoll})
		require.NoError(t, err)
	}
	_, err = f.svc.Reconcile(ctx, Event{OrderID: s.order.ID, GatewayStatus: "refund", Source: SourcePoll})
	require.NoError(t, err)

	require.EqualValues(t, 1, f.count(t, &models.PaymentConflict{}, "order_id = ? AND incoming_status = ?", s.order.ID, enums.PaymentStatusSuccess))
	require.EqualValues(t, 2, f.count(t, &models.PaymentConflict{}, "order_id = ?", s.order.ID))
	require.EqualValues(t, 2, f.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventPaymentConflict))
}
