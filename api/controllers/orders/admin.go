package orders

import (
	"context"
	"net/http"

	"github.com/angelmondragon/marketplace-orders/api/responses"
	"github.com/angelmondragon/marketplace-orders/api/validators"
	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type codConfirmer interface {
	ConfirmCashOnDelivery(ctx context.Context, input reconcile.CODConfirmation) (*reconcile.Outcome, error)
}

// ConfirmCashOnDelivery records that an admin collected cash for a COD order.
func ConfirmCashOnDelivery(svc codConfirmer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}

		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		outcome, err := svc.ConfirmCashOnDelivery(r.Context(), reconcile.CODConfirmation{
			OrderID:     orderID,
			ConfirmedBy: adminID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}
