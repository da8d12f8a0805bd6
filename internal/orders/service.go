package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-orders/internal/pricing"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/db/models"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox/payloads"
)

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service assembles priced orders from buyer selections and serves order reads.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	Get(ctx context.Context, input GetOrderInput) (*OrderDTO, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	addresses addressResolver
	catalog   productCatalog
	vouchers  voucherLookup
	logg      *logger.Logger
}

// ServiceParams groups the order service collaborators.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Addresses addressResolver
	Catalog   productCatalog
	Vouchers  voucherLookup
	Logger    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Addresses == nil {
		return nil, fmt.Errorf("address resolver required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher lookup required")
	}
	return &service{
		repo:      params.Repo,
		tx:        params.Tx,
		outbox:    params.Outbox,
		addresses: params.Addresses,
		catalog:   params.Catalog,
		vouchers:  params.Vouchers,
		logg:      params.Logger,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	lines, err := mergeLines(input.Lines)
	if err != nil {
		return nil, err
	}

	address, err := s.addresses.Resolve(ctx, input.BuyerID, input.AddressID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeAddressNotFound, "shipping address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve address")
	}

	products, err := s.resolveProducts(ctx, lines)
	if err != nil {
		return nil, err
	}

	voucherCode := strings.TrimSpace(input.VoucherCode)
	var voucher *pricing.Voucher
	if voucherCode != "" {
		found, err := s.vouchers.FindActive(ctx, voucherCode)
		if err != nil {
			if db.IsNotFound(err) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher not found").
					WithDetails(map[string]any{"voucher_code": voucherCode})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve voucher")
		}
		voucher = &pricing.Voucher{
			Type:          found.Type,
			Value:         found.Value,
			MinOrderValue: found.MinOrderValue,
			MaxDiscount:   found.MaxDiscount,
		}
	}

	orderID := uuid.New()
	items := make([]models.LineItem, 0, len(lines))
	priced := make([]pricing.Line, 0, len(lines))
	sellerSet := map[uuid.UUID]struct{}{}
	sellerIDs := []uuid.UUID{}
	for _, line := range lines {
		product := products[line.ProductID]
		pl := pricing.Line{UnitPrice: product.Price, Quantity: line.Quantity}
		priced = append(priced, pl)
		items = append(items, models.LineItem{
			ID:                uuid.New(),
			OrderID:           orderID,
			ProductID:         product.ID,
			SellerID:          product.SellerID,
			ProductName:       product.Name,
			Quantity:          line.Quantity,
			UnitPriceSnapshot: product.Price,
			LineTotal:         pricing.LineTotal(pl).Round(2),
			Status:            enums.LineItemStatusPending,
		})
		if _, ok := sellerSet[product.SellerID]; !ok {
			sellerSet[product.SellerID] = struct{}{}
			sellerIDs = append(sellerIDs, product.SellerID)
		}
	}
	quote := pricing.Compute(priced, voucher)

	order := &models.Order{
		ID:              orderID,
		BuyerID:         input.BuyerID,
		AddressID:       address.ID,
		ShippingAddress: address.Snapshot(),
		SubtotalPrice:   quote.Subtotal,
		DiscountPrice:   quote.Discount,
		TotalPrice:      quote.Total,
		Status:          enums.OrderStatusPending,
	}
	if voucher != nil && quote.VoucherApplied {
		order.VoucherCode = &voucherCode
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := repo.CreateLineItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: input.BuyerID, Role: string(enums.RoleBuyer)},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				SellerIDs:     sellerIDs,
				SubtotalPrice: order.SubtotalPrice,
				DiscountPrice: order.DiscountPrice,
				TotalPrice:    order.TotalPrice,
				VoucherCode:   order.VoucherCode,
				LineItemCount: len(items),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.LineItems = items
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"total_price":     order.TotalPrice.StringFixed(2),
			"line_item_count": len(items),
			"voucher_applied": quote.VoucherApplied,
		})
		s.logg.Info(logCtx, "order created")
	}
	return NewOrderDTO(order), nil
}

func (s *service) Get(ctx context.Context, input GetOrderInput) (*OrderDTO, error) {
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	order, err := s.repo.FindOrderDetail(ctx, input.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if input.ActorRole != enums.RoleAdmin && order.BuyerID != input.ActorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return NewOrderDTO(order), nil
}

func (s *service) resolveProducts(ctx context.Context, lines []LineInput) (map[uuid.UUID]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve products")
	}
	missing := []string{}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "one or more products not found").
			WithDetails(map[string]any{"missing_product_ids": missing})
	}
	return products, nil
}

// MaxLineQuantity bounds the quantity of a single product in one order, after duplicate lines merge.
const MaxLineQuantity = 10000

// mergeLines validates quantities and folds repeated products into one line, keeping first-seen order.
func mergeLines(lines []LineInput) ([]LineInput, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	merged := make([]LineInput, 0, len(lines))
	index := make(map[uuid.UUID]int, len(lines))
	for _, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity must be at least 1").
				WithDetails(map[string]any{"product_id": line.ProductID.String(), "quantity": line.Quantity})
		}
		if line.Quantity > MaxLineQuantity {
			return nil, quantityTooLarge(line.ProductID, line.Quantity)
		}
		if i, ok := index[line.ProductID]; ok {
			// both operands are bounded, so the sum cannot overflow
			if merged[i].Quantity+line.Quantity > MaxLineQuantity {
				return nil, quantityTooLarge(line.ProductID, merged[i].Quantity+line.Quantity)
			}
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

func quantityTooLarge(productID uuid.UUID, quantity int) error {
	return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("quantity must be at most %d", MaxLineQuantity)).
		WithDetails(map[string]any{"product_id": productID.String(), "quantity": quantity})
}
