package qris

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestExternalReferenceRoundTrip(t *testing.T) {
	orderID := uuid.New()
	ref := BuildExternalReference("5SCENT", orderID, time.Unix(1767225600, 0))
	require.Equal(t, "5SCENT-"+orderID.String()+"-1767225600", ref)

	parsed, err := ParseExternalReference(ref)
	require.NoError(t, err)
	require.Equal(t, orderID, parsed)
}

func TestParseExternalReferenceRejectsGarbage(t *testing.T) {
	for _, ref := range []string{"", "5SCENT", "5SCENT-123", "5SCENT-not-a-uuid-at-all-but-long-enough-xx-1", "5SCENT-" + uuid.NewString() + "-abc"} {
		_, err := ParseExternalReference(ref)
		require.Error(t, err, ref)
	}
}

func TestVerifySignature(t *testing.T) {
	n := Notification{OrderID: "5SCENT-x-1", StatusCode: "200", GrossAmount: "210000.00"}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")

	require.True(t, VerifySignature(n, "server-key"))
	require.False(t, VerifySignature(n, "other-key"))

	n.GrossAmount = "1.00"
	require.False(t, VerifySignature(n, "server-key"))
}

func TestNotificationAmount(t *testing.T) {
	got, err := Notification{GrossAmount: "210000.00"}.Amount()
	require.NoError(t, err)
	require.EqualValues(t, 210000, got)

	got, err = Notification{}.Amount()
	require.NoError(t, err)
	require.Zero(t, got, "absent amount")

	for _, raw := range []string{"abc", "210000.50", "-5", "1e3x"} {
		_, err := Notification{GrossAmount: raw}.Amount()
		require.ErrorIs(t, err, ErrMalformedAmount, raw)
	}
}
