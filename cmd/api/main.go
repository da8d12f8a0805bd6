package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/marketplace-orders/api/routes"
	"github.com/angelmondragon/marketplace-orders/internal/addresses"
	"github.com/angelmondragon/marketplace-orders/internal/catalog"
	"github.com/angelmondragon/marketplace-orders/internal/notifications"
	"github.com/angelmondragon/marketplace-orders/internal/orders"
	"github.com/angelmondragon/marketplace-orders/internal/payments"
	"github.com/angelmondragon/marketplace-orders/internal/reconcile"
	"github.com/angelmondragon/marketplace-orders/internal/shipping"
	"github.com/angelmondragon/marketplace-orders/internal/vouchers"
	gatewaywebhook "github.com/angelmondragon/marketplace-orders/internal/webhooks/gateway"
	"github.com/angelmondragon/marketplace-orders/pkg/config"
	"github.com/angelmondragon/marketplace-orders/pkg/db"
	"github.com/angelmondragon/marketplace-orders/pkg/gateway"
	"github.com/angelmondragon/marketplace-orders/pkg/logger"
	"github.com/angelmondragon/marketplace-orders/pkg/metrics"
	"github.com/angelmondragon/marketplace-orders/pkg/migrate"
	"github.com/angelmondragon/marketplace-orders/pkg/outbox"
	"github.com/angelmondragon/marketplace-orders/pkg/redis"
	"github.com/angelmondragon/marketplace-orders/pkg/square"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing clients", err)
		}
	}()

	deps, err := buildDeps(context.Background(), cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildDeps(ctx context.Context, cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Deps, error) {
	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:      orders.NewRepository(dbClient.DB()),
		Tx:        dbClient,
		Outbox:    outboxService,
		Addresses: addresses.NewRepository(dbClient.DB()),
		Catalog:   catalog.NewRepository(dbClient.DB()),
		Vouchers:  vouchers.NewRepository(dbClient.DB()),
		Logger:    logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	squareClient, err := square.NewClient(ctx, cfg.Square, cfg.Gateway.Timeout, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	provider, err := gateway.NewSquareProvider(squareClient)
	if err != nil {
		return routes.Deps{}, err
	}
	adapter, err := gateway.NewAdapter(provider, cfg.Gateway, paymentMetrics, logg)
	if err != nil {
		return routes.Deps{}, err
	}

	paymentRepo := payments.NewRepository(dbClient.DB())
	dispatcher, err := payments.NewDispatcher(payments.DispatcherParams{
		Repo:        paymentRepo,
		Tx:          dbClient,
		Outbox:      outboxService,
		Gateway:     adapter,
		CallbackURL: cfg.Gateway.CallbackURL(),
		Metrics:     paymentMetrics,
		Logger:      logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	statusService, err := payments.NewStatusService(paymentRepo)
	if err != nil {
		return routes.Deps{}, err
	}

	reconciler, err := reconcile.NewReconciler(reconcile.Params{
		Repo:    paymentRepo,
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	coordinator, err := shipping.NewCoordinator(shipping.Params{
		Repo:    shipping.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Outbox:  outboxService,
		Metrics: paymentMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Deps{}, err
	}

	squareWebhooks, err := gatewaywebhook.NewService(reconciler, logg)
	if err != nil {
		return routes.Deps{}, err
	}
	squareGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "square-webhook")
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		DB:            dbClient,
		Redis:         redisClient,
		Orders:        orderService,
		Dispatcher:    dispatcher,
		PaymentStatus: statusService,
		Shipping:      coordinator,
		Reconciler:    reconciler,
		Notifications: notificationService,
		SquareWebhook: squareWebhooks,
		SquareSigner:  squareClient,
		SquareGuard:   squareGuard,
		Gatherer:      prometheus.DefaultGatherer,
	}, nil
}
