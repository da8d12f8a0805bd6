// Package pricing computes order totals from snapshotted line prices and an optional voucher.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

var hundred = decimal.NewFromInt(100)

type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Voucher struct {
	Type          enums.VoucherType
	Value         decimal.Decimal
	MinOrderValue decimal.Decimal
	MaxDiscount   *decimal.Decimal
}

type Quote struct {
	Subtotal       decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	VoucherApplied bool
}

// Compute is pure. A voucher whose minimum is not met, or whose type is unknown, contributes no discount.
func Compute(lines []Line, voucher *Voucher) Quote {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(LineTotal(line))
	}
	subtotal = subtotal.Round(2)

	discount, applied := discountFor(subtotal, voucher)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Quote{
		Subtotal:       subtotal,
		Discount:       discount,
		Total:          total.Round(2),
		VoucherApplied: applied,
	}
}

// LineTotal is unit price times quantity.
func LineTotal(line Line) decimal.Decimal {
	return line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

func discountFor(subtotal decimal.Decimal, voucher *Voucher) (decimal.Decimal, bool) {
	if voucher == nil {
		return decimal.Zero, false
	}
	if subtotal.LessThan(voucher.MinOrderValue) {
		return decimal.Zero, false
	}

	var discount decimal.Decimal
	switch voucher.Type {
	case enums.VoucherTypeFixed:
		discount = voucher.Value
	case enums.VoucherTypePercentage:
		discount = subtotal.Mul(voucher.Value).Div(hundred)
		if voucher.MaxDiscount != nil && discount.GreaterThan(*voucher.MaxDiscount) {
			discount = *voucher.MaxDiscount
		}
	default:
		return decimal.Zero, false
	}
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), true
}
