package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsersAreExactUnlessFolding(t *testing.T) {
	status, err := ParseOrderStatus("Shipping")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipping, status)
	_, err = ParseOrderStatus("shipping")
	assert.EqualError(t, err, `invalid order status "shipping"`)

	method, err := ParsePaymentMethod(" qris ")
	require.NoError(t, err)
	assert.Equal(t, PaymentMethodQRIS, method)

	role, err := ParseUserRole("Admin")
	require.NoError(t, err)
	assert.Equal(t, UserRoleAdmin, role)

	_, err = ParsePaymentMethod("bitcoin")
	assert.Error(t, err)
}

func TestTerminalStates(t *testing.T) {
	for status, terminal := range map[OrderStatus]bool{
		OrderStatusPending:   false,
		OrderStatusPackaging: false,
		OrderStatusShipping:  false,
		OrderStatusDelivered: true,
		OrderStatusCancel:    true,
	} {
		assert.Equal(t, terminal, status.IsTerminal(), status)
	}
	for status, terminal := range map[PaymentStatus]bool{
		PaymentStatusPending:  false,
		PaymentStatusSuccess:  true,
		PaymentStatusFailed:   true,
		PaymentStatusRefunded: true,
		"Settled":             false,
	} {
		assert.Equal(t, terminal, status.IsTerminal(), status)
	}
}

func TestPaymentMethodGateway(t *testing.T) {
	assert.True(t, PaymentMethodQRIS.RequiresGateway())
	assert.False(t, PaymentMethodCOD.RequiresGateway())
}

func TestNotificationSingleton(t *testing.T) {
	assert.True(t, NotificationTypeProfileReminder.IsSingleton())
	assert.False(t, NotificationTypePayment.IsSingleton())
	assert.False(t, NotificationType("Promo").IsValid())
}

func TestOutboxEnums(t *testing.T) {
	for _, raw := range []string{"max_attempts", "unroutable", "malformed", "rejected"} {
		_, err := ParseOutboxDLQErrorReason(raw)
		assert.NoError(t, err, raw)
	}
	_, err := ParseOutboxDLQErrorReason("non_retryable")
	assert.Error(t, err)

	kind, err := ParseOutboxEventType("pos_sale_recorded")
	require.NoError(t, err)
	assert.Equal(t, EventPOSSaleRecorded, kind)
	_, err = ParseOutboxAggregateType("Order")
	assert.Error(t, err)
}
