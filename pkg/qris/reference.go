package qris

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const uuidLen = 36

// BuildExternalReference derives the synthetic gateway order id
// "<prefix>-<order uuid>-<unix seconds>". The timestamp suffix keeps the id
// unique if a charge has to be recreated for the same order.
func BuildExternalReference(prefix string, orderID uuid.UUID, at time.Time) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return fmt.Sprintf("%s-%d", orderID.String(), at.Unix())
	}
	return fmt.Sprintf("%s-%s-%d", prefix, orderID.String(), at.Unix())
}

// ParseExternalReference recovers the order uuid from a synthetic order id.
func ParseExternalReference(ref string) (uuid.UUID, error) {
	ref = strings.TrimSpace(ref)
	idx := strings.LastIndexByte(ref, '-')
	if idx <= 0 {
		return uuid.Nil, fmt.Errorf("malformed external reference %q", ref)
	}
	if _, err := strconv.ParseInt(ref[idx+1:], 10, 64); err != nil {
		return uuid.Nil, fmt.Errorf("malformed external reference %q: bad timestamp", ref)
	}
	head := ref[:idx]
	if len(head) < uuidLen {
		return uuid.Nil, fmt.Errorf("malformed external reference %q", ref)
	}
	id, err := uuid.Parse(head[len(head)-uuidLen:])
	if err != nil {
		return uuid.Nil, fmt.Errorf("malformed external reference %q: %w", ref, err)
	}
	return id, nil
}

// Notification is the HTTP notification body the gateway posts on every
// transaction status change.
type Notification struct {
	TransactionID     string `json:"transaction_id"`
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	TransactionTime   string `json:"transaction_time"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	SignatureKey      string `json:"signature_key"`
}

// Amount returns the gross amount in whole rupiah, 0 when absent.
func (n Notification) Amount() (int64, error) {
	return ParseAmount(n.GrossAmount)
}

// Time returns the gateway transaction time in UTC, if present.
func (n Notification) Time() *time.Time {
	return parseTransactionTime(n.TransactionTime)
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key) as hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether the notification was signed with serverKey.
func VerifySignature(n Notification, serverKey string) bool {
	if n.SignatureKey == "" || serverKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(n.SignatureKey)), []byte(expected)) == 1
}
