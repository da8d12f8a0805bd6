package pricing

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func ptr(v decimal.Decimal) *decimal.Decimal {
	return &v
}

func scenarioLines() []Line {
	return []Line{
		{UnitPrice: d("10.00"), Quantity: 2},
		{UnitPrice: d("5.00"), Quantity: 1},
	}
}

func TestCompute(t *testing.T) {
	cases := []struct {
		name     string
		lines    []Line
		voucher  *Voucher
		subtotal string
		discount string
		total    string
		applied  bool
	}{
		{
			name:     "scenario A no voucher",
			lines:    scenarioLines(),
			subtotal: "25.00",
			discount: "0",
			total:    "25.00",
		},
		{
			name:     "scenario B percentage capped",
			lines:    scenarioLines(),
			voucher:  &Voucher{Type: enums.VoucherTypePercentage, Value: d("10"), MinOrderValue: d("20.00"), MaxDiscount: ptr(d("2.00"))},
			subtotal: "25.00",
			discount: "2.00",
			total:    "23.00",
			applied:  true,
		},
		{
			name:     "percentage under cap",
			lines:    scenarioLines(),
			voucher:  &Voucher{Type: enums.VoucherTypePercentage, Value: d("10"), MinOrderValue: d("20.00"), MaxDiscount: ptr(d("5.00"))},
			subtotal: "25.00",
			discount: "2.50",
			total:    "22.50",
			applied:  true,
		},
		{
			name:     "fixed voucher",
			lines:    scenarioLines(),
			voucher:  &Voucher{Type: enums.VoucherTypeFixed, Value: d("2.00"), MinOrderValue: d("0")},
			subtotal: "25.00",
			discount: "2.00",
			total:    "23.00",
			applied:  true,
		},
		{
			name:     "scenario C minimum not met",
			lines:    scenarioLines(),
			voucher:  &Voucher{Type: enums.VoucherTypePercentage, Value: d("2.00"), MinOrderValue: d("30.00")},
			subtotal: "25.00",
			discount: "0",
			total:    "25.00",
		},
		{
			name:     "half off capped",
			lines:    []Line{{UnitPrice: d("200.00"), Quantity: 1}},
			voucher:  &Voucher{Type: enums.VoucherTypePercentage, Value: d("50"), MaxDiscount: ptr(d("30.00"))},
			subtotal: "200.00",
			discount: "30.00",
			total:    "170.00",
			applied:  true,
		},
		{
			name:     "fixed larger than subtotal clamps to zero",
			lines:    []Line{{UnitPrice: d("3.00"), Quantity: 1}},
			voucher:  &Voucher{Type: enums.VoucherTypeFixed, Value: d("5.00")},
			subtotal: "3.00",
			discount: "5.00",
			total:    "0",
			applied:  true,
		},
		{
			name:     "unknown voucher type",
			lines:    scenarioLines(),
			voucher:  &Voucher{Type: "bogo", Value: d("5.00")},
			subtotal: "25.00",
			discount: "0",
			total:    "25.00",
		},
		{
			name:     "percentage rounds to cents",
			lines:    []Line{{UnitPrice: d("9.99"), Quantity: 3}},
			voucher:  &Voucher{Type: enums.VoucherTypePercentage, Value: d("15")},
			subtotal: "29.97",
			discount: "4.50",
			total:    "25.47",
			applied:  true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			quote := Compute(tc.lines, tc.voucher)
			if !quote.Subtotal.Equal(d(tc.subtotal)) {
				t.Fatalf("subtotal: expected %s, got %s", tc.subtotal, quote.Subtotal)
			}
			if !quote.Discount.Equal(d(tc.discount)) {
				t.Fatalf("discount: expected %s, got %s", tc.discount, quote.Discount)
			}
			if !quote.Total.Equal(d(tc.total)) {
				t.Fatalf("total: expected %s, got %s", tc.total, quote.Total)
			}
			if quote.VoucherApplied != tc.applied {
				t.Fatalf("applied: expected %v, got %v", tc.applied, quote.VoucherApplied)
			}
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	voucher := &Voucher{Type: enums.VoucherTypePercentage, Value: d("12.5")}
	first := Compute(scenarioLines(), voucher)
	for i := 0; i < 10; i++ {
		again := Compute(scenarioLines(), voucher)
		if !again.Total.Equal(first.Total) || !again.Discount.Equal(first.Discount) {
			t.Fatalf("expected identical quotes, got %+v and %+v", first, again)
		}
	}
}

func TestLineTotal(t *testing.T) {
	if got := LineTotal(Line{UnitPrice: d("2.25"), Quantity: 4}); !got.Equal(d("9.00")) {
		t.Fatalf("expected 9.00, got %s", got)
	}
}
