package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/types"
)

// LineInput is one requested product. Prices always come from the catalog.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type CreateOrderInput struct {
	BuyerID     uuid.UUID
	AddressID   *uuid.UUID
	VoucherCode string
	Lines       []LineInput
}

type GetOrderInput struct {
	OrderID     uuid.UUID
	ActorUserID uuid.UUID
	ActorRole   enums.Role
}

type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	BuyerID         uuid.UUID             `json:"buyer_id"`
	Status          enums.OrderStatus     `json:"status"`
	ShippingAddress types.ShippingAddress `json:"shipping_address"`
	VoucherCode     *string               `json:"voucher_code,omitempty"`
	SubtotalPrice   string                `json:"subtotal_price"`
	DiscountPrice   string                `json:"discount_price"`
	TotalPrice      string                `json:"total_price"`
	LineItems       []LineItemDTO         `json:"line_items"`
	Payment         *PaymentDTO           `json:"payment,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type LineItemDTO struct {
	ID          uuid.UUID            `json:"id"`
	OrderID     uuid.UUID            `json:"order_id"`
	ProductID   uuid.UUID            `json:"product_id"`
	SellerID    uuid.UUID            `json:"seller_id"`
	ProductName string               `json:"product_name"`
	Quantity    int                  `json:"quantity"`
	UnitPrice   string               `json:"unit_price"`
	LineTotal   string               `json:"line_total"`
	Status      enums.LineItemStatus `json:"status"`
}

type PaymentDTO struct {
	ID                uuid.UUID             `json:"id"`
	OrderID           uuid.UUID             `json:"order_id"`
	Method            enums.PaymentMethod   `json:"method"`
	Status            enums.PaymentStatus   `json:"status"`
	Amount            string                `json:"amount"`
	ProviderReference *string               `json:"provider_reference,omitempty"`
	Display           *types.DisplayPayload `json:"display,omitempty"`
	TransactionID     *string               `json:"transaction_id,omitempty"`
	PaidAt            *time.Time            `json:"paid_at,omitempty"`
	FailureReason     *string               `json:"failure_reason,omitempty"`
}

func NewOrderDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	items := make([]LineItemDTO, 0, len(order.LineItems))
	for i := range order.LineItems {
		items = append(items, NewLineItemDTO(&order.LineItems[i]))
	}
	return &OrderDTO{
		ID:              order.ID,
		BuyerID:         order.BuyerID,
		Status:          order.Status,
		ShippingAddress: order.ShippingAddress,
		VoucherCode:     order.VoucherCode,
		SubtotalPrice:   order.SubtotalPrice.StringFixed(2),
		DiscountPrice:   order.DiscountPrice.StringFixed(2),
		TotalPrice:      order.TotalPrice.StringFixed(2),
		LineItems:       items,
		Payment:         NewPaymentDTO(order.Payment),
		CreatedAt:       order.CreatedAt,
	}
}

func NewLineItemDTO(item *models.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:          item.ID,
		OrderID:     item.OrderID,
		ProductID:   item.ProductID,
		SellerID:    item.SellerID,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   item.UnitPriceSnapshot.StringFixed(2),
		LineTotal:   item.LineTotal.StringFixed(2),
		Status:      item.Status,
	}
}

func NewPaymentDTO(payment *models.Payment) *PaymentDTO {
	if payment == nil {
		return nil
	}
	dto := &PaymentDTO{
		ID:                payment.ID,
		OrderID:           payment.OrderID,
		Method:            payment.Method,
		Status:            payment.Status,
		Amount:            payment.Amount.StringFixed(2),
		ProviderReference: payment.ProviderReference,
		TransactionID:     payment.TransactionID,
		PaidAt:            payment.PaidAt,
		FailureReason:     payment.FailureReason,
	}
	if !payment.DisplayPayload.IsZero() {
		display := payment.DisplayPayload
		dto.Display = &display
	}
	return dto
}
