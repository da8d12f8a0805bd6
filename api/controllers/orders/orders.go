package orders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-orders/api/middleware"
	"github.com/angelmondragon/marketplace-orders/api/responses"
	"github.com/angelmondragon/marketplace-orders/api/validators"
	internalorders "github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type createOrderLine struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=10000"`
}

type createOrderRequest struct {
	AddressID   *string           `json:"address_id" validate:"omitempty,uuid"`
	VoucherCode string            `json:"voucher_code" validate:"max=64"`
	Lines       []createOrderLine `json:"lines" validate:"required,min=1,dive"`
}

func (r createOrderRequest) toInput(buyerID uuid.UUID) (internalorders.CreateOrderInput, error) {
	input := internalorders.CreateOrderInput{
		BuyerID:     buyerID,
		VoucherCode: strings.TrimSpace(r.VoucherCode),
		Lines:       make([]internalorders.LineInput, 0, len(r.Lines)),
	}
	if r.AddressID != nil {
		id, err := uuid.Parse(*r.AddressID)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address_id")
		}
		input.AddressID = &id
	}
	for _, line := range r.Lines {
		productID, err := uuid.Parse(line.ProductID)
		if err != nil {
			return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id")
		}
		input.Lines = append(input.Lines, internalorders.LineInput{ProductID: productID, Quantity: line.Quantity})
	}
	return input, nil
}

// Create places an order for the authenticated buyer.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := req.toInput(buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Get returns the order detail to its buyer or an admin.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), internalorders.GetOrderInput{
			OrderID:     orderID,
			ActorUserID: userID,
			ActorRole:   enums.Role(middleware.RoleFromContext(r.Context())),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}
