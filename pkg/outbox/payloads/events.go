package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/marketplace-orders/pkg/enums"
)

// OrderCreatedEvent is emitted once an order and its line items are persisted.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	BuyerID       uuid.UUID       `json:"buyer_id"`
	SellerIDs     []uuid.UUID     `json:"seller_ids"`
	SubtotalPrice decimal.Decimal `json:"subtotal_price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	VoucherCode   *string         `json:"voucher_code,omitempty"`
	LineItemCount int             `json:"line_item_count"`
}

// PaymentCreatedEvent is emitted when a payment row is inserted for an order.
type PaymentCreatedEvent struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	OrderID   uuid.UUID           `json:"order_id"`
	BuyerID   uuid.UUID           `json:"buyer_id"`
	Method    enums.PaymentMethod `json:"method"`
	Amount    decimal.Decimal     `json:"amount"`
}

// PaymentSettledEvent reports a payment reaching paid.
type PaymentSettledEvent struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	TransactionID string              `json:"transaction_id,omitempty"`
	PaidAt        time.Time           `json:"paid_at"`
}

// PaymentFailedEvent reports a payment reaching failed along with the resulting order status.
type PaymentFailedEvent struct {
	PaymentID   uuid.UUID           `json:"payment_id"`
	OrderID     uuid.UUID           `json:"order_id"`
	BuyerID     uuid.UUID           `json:"buyer_id"`
	Method      enums.PaymentMethod `json:"method"`
	OrderStatus enums.OrderStatus   `json:"order_status"`
	Reason      string              `json:"reason,omitempty"`
}

// CashCollectedEvent is emitted when a cash-on-delivery payment is confirmed as collected.
type CashCollectedEvent struct {
	PaymentID   uuid.UUID       `json:"payment_id"`
	OrderID     uuid.UUID       `json:"order_id"`
	BuyerID     uuid.UUID       `json:"buyer_id"`
	Amount      decimal.Decimal `json:"amount"`
	ConfirmedBy uuid.UUID       `json:"confirmed_by"`
	CollectedAt time.Time       `json:"collected_at"`
}

// LineItemStatusChangedEvent tells the buyer a seller moved one of their items.
type LineItemStatusChangedEvent struct {
	LineItemID     uuid.UUID            `json:"line_item_id"`
	OrderID        uuid.UUID            `json:"order_id"`
	BuyerID        uuid.UUID            `json:"buyer_id"`
	SellerID       uuid.UUID            `json:"seller_id"`
	ProductName    string               `json:"product_name"`
	PreviousStatus enums.LineItemStatus `json:"previous_status"`
	Status         enums.LineItemStatus `json:"status"`
	OrderStatus    enums.OrderStatus    `json:"order_status"`
}
