package orders

import "github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusPackaging, enums.OrderStatusCancel},
	enums.OrderStatusPackaging: {enums.OrderStatusShipping, enums.OrderStatusCancel},
	enums.OrderStatusShipping:  {enums.OrderStatusDelivered},
}

// CanTransition reports whether an order may move from -> to. Same-status
// moves are handled by callers as no-ops and are not listed here.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
