package enums

type NotificationType string

const (
	NotificationTypeProfileReminder NotificationType = "ProfileReminder"
	NotificationTypeDelivery        NotificationType = "Delivery"
	NotificationTypePayment         NotificationType = "Payment"
	NotificationTypeOrderUpdate     NotificationType = "OrderUpdate"
	NotificationTypeRefund          NotificationType = "Refund"
)

var notificationTypes = set[NotificationType]{
	NotificationTypeProfileReminder,
	NotificationTypeDelivery,
	NotificationTypePayment,
	NotificationTypeOrderUpdate,
	NotificationTypeRefund,
}

func (n NotificationType) IsValid() bool { return notificationTypes.has(n) }

// IsSingleton: a user holds at most one ProfileReminder, read or not.
func (n NotificationType) IsSingleton() bool {
	return n == NotificationTypeProfileReminder
}

func ParseNotificationType(value string) (NotificationType, error) {
	return notificationTypes.parse("notification type", value)
}
