package enums

import "fmt"

// LineItemStatus tracks per-item shipping progress driven by the seller.
type LineItemStatus string

const (
	LineItemStatusPending      LineItemStatus = "pending"
	LineItemStatusShipping     LineItemStatus = "shipping"
	LineItemStatusShipped      LineItemStatus = "shipped"
	LineItemStatusFailedToShip LineItemStatus = "failed_to_ship"
)

var validLineItemStatuses = []LineItemStatus{
	LineItemStatusPending,
	LineItemStatusShipping,
	LineItemStatusShipped,
	LineItemStatusFailedToShip,
}

// String implements fmt.Stringer.
func (l LineItemStatus) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LineItemStatus.
func (l LineItemStatus) IsValid() bool {
	for _, candidate := range validLineItemStatuses {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLineItemStatus converts raw input into a LineItemStatus.
func ParseLineItemStatus(value string) (LineItemStatus, error) {
	for _, candidate := range validLineItemStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid line item status %q", value)
}

// IsTerminal reports whether the line item has finished shipping either way.
func (l LineItemStatus) IsTerminal() bool {
	return l == LineItemStatusShipped || l == LineItemStatusFailedToShip
}
