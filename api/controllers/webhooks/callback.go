package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-orders/api/responses"
	"github.com/angelmondragon/marketplace-orders/api/validators"
	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	pkgerrors "github.com/angelmondragon/marketplace-orders/pkg/errors"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
)

const (
	gatewaySignatureHeader = "X-Gateway-Signature"
	maxCallbackBody        = 64 << 10
	maxReasonLength        = 500
)

type callbackReconciler interface {
	Reconcile(ctx context.Context, cb reconcile.Callback) (*reconcile.Outcome, error)
}

// callbackRequest is the settlement notice posted by the gateway. OrderReference is
// either the order id or the provider reference returned at dispatch.
type callbackRequest struct {
	OrderReference string `json:"order_reference"`
	Outcome        string `json:"outcome"`
	TransactionID  string `json:"transaction_id"`
	Reason         string `json:"reason"`
}

func (c callbackRequest) toCallback() (reconcile.Callback, error) {
	outcome, err := reconcile.ParseCallbackOutcome(c.Outcome)
	if err != nil {
		return reconcile.Callback{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid outcome")
	}
	ref := strings.TrimSpace(c.OrderReference)
	if ref == "" {
		return reconcile.Callback{}, pkgerrors.New(pkgerrors.CodeValidation, "order_reference is required")
	}

	cb := reconcile.Callback{
		Outcome:       outcome,
		TransactionID: strings.TrimSpace(c.TransactionID),
		Reason:        validators.SanitizeString(c.Reason, maxReasonLength),
	}
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		cb.OrderID = id
	} else {
		cb.ProviderReference = ref
	}
	return cb, nil
}

// GatewayCallback applies a signed gateway settlement notice. Known and duplicate
// callbacks both answer 200 so the gateway stops retrying.
func GatewayCallback(svc callbackReconciler, secret string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		if strings.TrimSpace(secret) == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "callback secret not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		signature := strings.TrimSpace(r.Header.Get(gatewaySignatureHeader))
		if signature == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "gateway signature missing"))
			return
		}
		if !validHexSignature(payload, secret, signature) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid gateway signature"))
			return
		}

		var req callbackRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode callback"))
			return
		}
		cb, err := req.toCallback()
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		outcome, err := svc.Reconcile(ctx, cb)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, outcome)
	}
}

func validHexSignature(payload []byte, secret, header string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(header)))
}
