package payments

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

func TestStatusReturnsStoredStateWhenFresh(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)

	view, err := f.svc.Status(context.Background(), s.order.UserID, s.order.ID)
	require.NoError(t, err)
	require.NotNil(t, view.PaymentStatus)
	require.Equal(t, enums.PaymentStatusPending, *view.PaymentStatus)
	require.NotNil(t, view.QRISStatus)
	require.Equal(t, "pending", *view.QRISStatus)
	require.Equal(t, enums.OrderStatusPending, view.OrderStatus)
	require.Zero(t, atomic.LoadInt32(&f.gateway.statuses))
}

func TestStatusFallsBackToGatewayWhenStale(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)
	f.now = time.Now().UTC().Add(10 * time.Minute)
	f.gateway.statusFn = func(_ context.Context, ref string) (*qris.TransactionStatus, error) {
		return &qris.TransactionStatus{ExternalReference: ref, TransactionStatus: "settlement", GrossAmount: 210000}, nil
	}

	view, err := f.svc.Status(context.Background(), s.order.UserID, s.order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusSuccess, *view.PaymentStatus)
	require.Equal(t, enums.OrderStatusPackaging, view.OrderStatus)
	require.EqualValues(t, 1, atomic.LoadInt32(&f.gateway.statuses))
}

func TestStatusGatewayErrorReturnsStoredState(t *testing.T) {
	f := newFixture(t)
	s, _ := f.seedPendingPayment(t)
	f.now = time.Now().UTC().Add(10 * time.Minute)
	f.gateway.statusFn = func(context.Context, string) (*qris.TransactionStatus, error) {
		return nil, errors.New("timeout")
	}

	view, err := f.svc.Status(context.Background(), s.order.UserID, s.order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, *view.PaymentStatus)
}

func TestStatusWithoutPayment(t *testing.T) {
	f := newFixture(t)
	s := f.seedOrder(t, enums.PaymentMethodCOD)

	view, err := f.svc.Status(context.Background(), s.order.UserID, s.order.ID)
	require.NoError(t, err)
	require.Nil(t, view.PaymentStatus)
	require.Equal(t, enums.OrderStatusPending, view.OrderStatus)
}

func TestSweepStaleReconcilesOldPendingPayments(t *testing.T) {
	f := newFixture(t)
	first, _ := f.seedPendingPayment(t)
	second, _ := f.seedPendingPayment(t)
	f.now = time.Now().UTC().Add(10 * time.Minute)
	f.gateway.statusFn = func(_ context.Context, ref string) (*qris.TransactionStatus, error) {
		return &qris.TransactionStatus{ExternalReference: ref, TransactionStatus: "expire"}, nil
	}

	res, err := f.svc.SweepStale(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, SweepResult{Checked: 2, Changed: 2}, res)
	require.Equal(t, enums.OrderStatusCancel, f.orderStatus(t, first.order.ID))
	require.Equal(t, enums.OrderStatusCancel, f.orderStatus(t, second.order.ID))

	again, err := f.svc.SweepStale(context.Background(), 10)
	require.NoError(t, err)
	require.Zero(t, again.Checked)
}
