package helpers

import (
	"strings"

	"github.com/google/uuid"

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	pkgerrors "github.com/all-if-r/5SCENT-WEB-sub001/pkg/errors"
)

const maxShippingAddressLength = 500

// NormalizeCartIDs drops nil and duplicate ids while keeping request order.
func NormalizeCartIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ValidateShippingAddress trims the address and enforces presence and length.
func ValidateShippingAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipping address is required")
	}
	if len(address) > maxShippingAddressLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "shipping address is too long")
	}
	return address, nil
}

// ValidatePaymentMethod accepts the supported checkout payment methods.
func ValidatePaymentMethod(method enums.PaymentMethod) error {
	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment method must be QRIS or COD")
	}
	return nil
}

// EmptyCart is returned when none of the requested cart lines belong to the user.
func EmptyCart() error {
	return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty").
		WithDetails(map[string]string{"reason": "empty_cart"})
}
