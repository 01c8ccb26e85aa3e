package enums

// OrderStatus is the fulfilment state of an online order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "Pending"
	OrderStatusPackaging OrderStatus = "Packaging"
	OrderStatusShipping  OrderStatus = "Shipping"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCancel    OrderStatus = "Cancel"
)

var orderStatuses = set[OrderStatus]{
	OrderStatusPending, OrderStatusPackaging, OrderStatusShipping, OrderStatusDelivered, OrderStatusCancel,
}

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return orderStatuses.has(o) }

// IsTerminal: Delivered and Cancel accept no further transition.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancel
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	return orderStatuses.parse("order status", value)
}
