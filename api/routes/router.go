package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/marketplace-orders/api/controllers"
	ordercontrollers "github.com/angelmondragon/marketplace-orders/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/marketplace-orders/api/controllers/webhooks"
	"github.com/angelmondragon/marketplace-orders/api/middleware"
	"github.com/angelmondragon/marketplace-orders/internal/notifications"
	internalorders "github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/internal/payments"
	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	"github.com/angelmondragon/marketplace-orders/internal/shipping"
	"github.com/angelmondragon/marketplace-orders/pkg/config"
	"github.com/angelmondragon/marketplace-orders/pkg/enums"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/redis"
)

type PaymentDispatcher interface {
	Dispatch(ctx context.Context, input payments.DispatchInput) (*payments.DispatchResult, error)
}

type PaymentStatusReader interface {
	Get(ctx context.Context, input payments.StatusInput) (*payments.StatusDTO, error)
}

type LineItemUpdater interface {
	UpdateStatus(ctx context.Context, input shipping.UpdateStatusInput) (*internalorders.LineItemDTO, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, cb reconcile.Callback) (*reconcile.Outcome, error)
	ConfirmCashOnDelivery(ctx context.Context, input reconcile.CODConfirmation) (*reconcile.Outcome, error)
}

type SquareSigner interface {
	SigningSecret() string
}

type WebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

// RateLimiter is the redis-backed limiter shared by the idempotency and callback routes.
type RateLimiter interface {
	redis.IdempotencyStore
	middleware.WindowLimiter
}

// Deps carries everything the HTTP surface needs.
type Deps struct {
	DB    controllers.Pinger
	Redis RateLimiter

	Orders        internalorders.Service
	Dispatcher    PaymentDispatcher
	PaymentStatus PaymentStatusReader
	Shipping      LineItemUpdater
	Reconciler    Reconciler
	Notifications notifications.Service

	SquareWebhook webhookcontrollers.SquareWebhookService
	SquareSigner  SquareSigner
	SquareGuard   WebhookGuard

	Gatherer prometheus.Gatherer
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.WindowLimiter
	)
	if deps.Redis != nil {
		idempotencyStore = deps.Redis
		limiter = deps.Redis
	}
	callbackLimit := middleware.RateLimit(limiter, "gateway_callbacks", cfg.Webhooks.RateLimit, cfg.Webhooks.RateLimitWindow, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(deps), logg))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.With(callbackLimit).Post(config.CallbackPath, webhookcontrollers.GatewayCallback(deps.Reconciler, cfg.Gateway.CallbackSecret, logg))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Use(callbackLimit)
		r.Post("/square", webhookcontrollers.SquareWebhook(deps.SquareWebhook, deps.SquareSigner, deps.SquareGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.With(middleware.RequireRole(logg, enums.RoleBuyer)).Post("/", ordercontrollers.Create(deps.Orders, logg))
			r.Route("/{orderId}", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.RoleBuyer, enums.RoleAdmin)).Get("/", ordercontrollers.Get(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.RoleBuyer)).Post("/payment", ordercontrollers.CreatePayment(deps.Dispatcher, logg))
				r.With(middleware.RequireRole(logg, enums.RoleBuyer, enums.RoleAdmin)).Get("/payment/status", ordercontrollers.PaymentStatus(deps.PaymentStatus, logg))
			})
		})

		r.Route("/seller", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSeller))
			r.Patch("/line-items/{lineItemId}/status", ordercontrollers.UpdateLineItemStatus(deps.Shipping, logg))
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))
			r.Post("/orders/{orderId}/cod-delivered", ordercontrollers.ConfirmCashOnDelivery(deps.Reconciler, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r
}

func readinessDeps(deps Deps) map[string]controllers.Pinger {
	out := map[string]controllers.Pinger{}
	if deps.DB != nil {
		out["db"] = deps.DB
	}
	if deps.Redis != nil {
		if p, ok := deps.Redis.(controllers.Pinger); ok {
			out["redis"] = p
		}
	}
	return out
}
