package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

// SeedAddress inserts a default address for userID.
func SeedAddress(t *testing.T, conn *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()
	address := models.Address{
		ID:         uuid.New(),
		UserID:     userID,
		Line1:      "500 Market St",
		City:       "San Francisco",
		State:      "CA",
		PostalCode: "94105",
		Country:    "US",
		IsDefault:  true,
	}
	mustCreate(t, conn, &address)
	return address
}

// SeedProduct inserts an active product sold by sellerID.
func SeedProduct(t *testing.T, conn *gorm.DB, sellerID uuid.UUID, name, price string) models.Product {
	t.Helper()
	product := models.Product{
		ID:       uuid.New(),
		SellerID: sellerID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Active:   true,
	}
	mustCreate(t, conn, &product)
	return product
}

// OrderSeed describes an order to insert directly, bypassing the assembler.
type OrderSeed struct {
	BuyerID uuid.UUID
	Status  enums.OrderStatus
	Total   string
	Items   []LineItemSeed
}

type LineItemSeed struct {
	SellerID uuid.UUID
	Status   enums.LineItemStatus
}

// SeedOrder inserts an order with one quantity-1 line item per seed entry, splitting Total evenly.
func SeedOrder(t *testing.T, conn *gorm.DB, seed OrderSeed) models.Order {
	t.Helper()
	if seed.Status == "" {
		seed.Status = enums.OrderStatusPending
	}
	if seed.Total == "" {
		seed.Total = "25.00"
	}
	if len(seed.Items) == 0 {
		seed.Items = []LineItemSeed{{SellerID: uuid.New()}}
	}
	total := decimal.RequireFromString(seed.Total)
	unit := total.Div(decimal.NewFromInt(int64(len(seed.Items)))).Round(2)

	order := models.Order{
		ID:            uuid.New(),
		BuyerID:       seed.BuyerID,
		AddressID:     uuid.New(),
		SubtotalPrice: total,
		DiscountPrice: decimal.Zero,
		TotalPrice:    total,
		Status:        seed.Status,
	}
	order.ShippingAddress.Line1 = "500 Market St"
	order.ShippingAddress.City = "San Francisco"
	order.ShippingAddress.Country = "US"
	if err := conn.Omit("LineItems", "Payment").Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	for _, itemSeed := range seed.Items {
		status := itemSeed.Status
		if status == "" {
			status = enums.LineItemStatusPending
		}
		item := models.LineItem{
			ID:                uuid.New(),
			OrderID:           order.ID,
			ProductID:         uuid.New(),
			SellerID:          itemSeed.SellerID,
			ProductName:       "Widget",
			Quantity:          1,
			UnitPriceSnapshot: unit,
			LineTotal:         unit,
			Status:            status,
		}
		mustCreate(t, conn, &item)
		order.LineItems = append(order.LineItems, item)
	}
	return order
}

// SeedPayment inserts a payment row for the order.
func SeedPayment(t *testing.T, conn *gorm.DB, order models.Order, method enums.PaymentMethod, status enums.PaymentStatus) models.Payment {
	t.Helper()
	payment := models.Payment{
		ID:      uuid.New(),
		OrderID: order.ID,
		Method:  method,
		Amount:  order.TotalPrice,
		Status:  status,
	}
	mustCreate(t, conn, &payment)
	return payment
}

func mustCreate(t *testing.T, conn *gorm.DB, value any) {
	t.Helper()
	if err := conn.Create(value).Error; err != nil {
		t.Fatalf("seed %T: %v", value, err)
	}
}
