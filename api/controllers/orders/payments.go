package orders

import (
	"context"
	"net/http"

	"github.com/angelmondragon/marketplace-orders/api/middleware"
	"github.com/angelmondragon/marketplace-orders/api/responses"
	"github.com/angelmondragon/marketplace-orders/api/validators"
	"github.com/angelmondragon/marketplace-orders/internal/payments"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

type paymentDispatcher interface {
	Dispatch(ctx context.Context, input payments.DispatchInput) (*payments.DispatchResult, error)
}

type paymentStatusReader interface {
	Get(ctx context.Context, input payments.StatusInput) (*payments.StatusDTO, error)
}

type createPaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

// CreatePayment starts the single payment for an order.
func CreatePayment(dispatcher paymentDispatcher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dispatcher == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment dispatcher unavailable"))
			return
		}

		buyerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := dispatcher.Dispatch(r.Context(), payments.DispatchInput{
			OrderID: orderID,
			BuyerID: buyerID,
			Method:  req.Method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// PaymentStatus is the polling endpoint clients hit until the status is terminal.
func PaymentStatus(svc paymentStatusReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment status unavailable"))
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

		status, err := svc.Get(r.Context(), payments.StatusInput{
			OrderID:     orderID,
			ActorUserID: userID,
			ActorRole:   enums.Role(middleware.RoleFromContext(r.Context())),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, status)
	}
}
