package enums

import "fmt"

// PaymentMethod identifies how the buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCashOnDelivery  PaymentMethod = "cash_on_delivery"
	PaymentMethodQRGateway       PaymentMethod = "qr_gateway"
	PaymentMethodRedirectGateway PaymentMethod = "redirect_gateway"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCashOnDelivery,
	PaymentMethodQRGateway,
	PaymentMethodRedirectGateway,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}

// UsesGateway reports whether dispatching the method requires a gateway round trip.
func (p PaymentMethod) UsesGateway() bool {
	return p == PaymentMethodQRGateway || p == PaymentMethodRedirectGateway
}
