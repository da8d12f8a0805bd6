package orders

import (
	"context"
	"net/http"

	"github.com/angelmondragon/marketplace-orders/api/responses"
	"github.com/angelmondragon/marketplace-orders/api/validators"
	internalorders "github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/internal/shipping"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type lineItemUpdater interface {
	UpdateStatus(ctx context.Context, input shipping.UpdateStatusInput) (*internalorders.LineItemDTO, error)
}

type updateLineItemRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateLineItemStatus lets the owning seller move a line item along the shipping flow.
func UpdateLineItemStatus(coordinator lineItemUpdater, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if coordinator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping coordinator unavailable"))
			return
		}

		sellerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		lineItemID, err := validators.ParseUUIDParam(r, "lineItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateLineItemRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := coordinator.UpdateStatus(r.Context(), shipping.UpdateStatusInput{
			LineItemID:  lineItemID,
			Status:      req.Status,
			ActorUserID: sellerID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
