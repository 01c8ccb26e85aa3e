package enums

// PaymentMethod is chosen at checkout. QRIS goes through the gateway, COD
// is settled on delivery.
type PaymentMethod string

const (
	PaymentMethodQRIS PaymentMethod = "QRIS"
	PaymentMethodCOD  PaymentMethod = "COD"
)

var paymentMethods = set[PaymentMethod]{PaymentMethodQRIS, PaymentMethodCOD}

func (p PaymentMethod) String() string { return string(p) }

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

func (p PaymentMethod) RequiresGateway() bool { return p == PaymentMethodQRIS }

// ParsePaymentMethod accepts "qris" as well as "QRIS".
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return paymentMethods.parseFold("payment method", value)
}
