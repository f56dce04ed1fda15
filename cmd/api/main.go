package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/settlement-backend/api"
	"github.com/angelmondragon/settlement-backend/api/routes"
	"github.com/angelmondragon/settlement-backend/internal/billing"
	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/checkout"
	"github.com/angelmondragon/settlement-backend/internal/inventory"
	"github.com/angelmondragon/settlement-backend/internal/notifications"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/payments"
	stripewebhook "github.com/angelmondragon/settlement-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/instance"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/migrate"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/settlement-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/settlement-backend/pkg/stripe"
	"github.com/angelmondragon/settlement-backend/pkg/tracing"
)

const webhookGuardScope = "stripe-webhook"

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
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, "api", logg)
	if err != nil {
		logg.Error(ctx, "failed to init tracing", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logg.Error(context.Background(), "error flushing traces", err)
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to create stripe client", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	settlementMetrics := metrics.NewSettlement(reg)

	outboxSvc := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	catalogRepo := catalog.NewRepository(dbClient.DB())
	ordersRepo := orders.NewRepository(dbClient.DB())

	ordersSvc, err := orders.NewService(ordersRepo, outboxSvc)
	if err != nil {
		logg.Error(ctx, "failed to create orders service", err)
		os.Exit(1)
	}

	checkoutSvc, err := checkout.NewService(
		dbClient,
		catalog.NewResolver(catalogRepo, cfg.Checkout.MaxLineQuantity),
		ordersRepo,
		outboxSvc,
		cfg.Checkout,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	issuer, err := payments.NewIssuer(
		dbClient,
		ordersRepo,
		pkgstripe.NewPaymentHandles(stripeClient),
		outboxSvc,
		cfg.Payments,
		settlementMetrics,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to create payment issuer", err)
		os.Exit(1)
	}

	ledger, err := inventory.NewLedger(dbClient, ordersRepo, catalogRepo, settlementMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create inventory ledger", err)
		os.Exit(1)
	}

	billingSvc, err := billing.NewService(dbClient, billing.NewRepository(dbClient.DB()), outboxSvc, logg)
	if err != nil {
		logg.Error(ctx, "failed to create billing service", err)
		os.Exit(1)
	}

	reconciler, err := stripewebhook.NewReconciler(stripewebhook.ServiceParams{
		TransactionRunner: dbClient,
		OrdersRepo:        ordersRepo,
		Orders:            ordersSvc,
		Ledger:            ledger,
		Billing:           billingSvc,
		Timeout:           cfg.Webhooks.Timeout,
		Metrics:           settlementMetrics,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create stripe reconciler", err)
		os.Exit(1)
	}

	webhookManager, err := idempotency.NewManager(redisClient, cfg.Webhooks.IdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to create webhook idempotency manager", err)
		os.Exit(1)
	}
	guard, err := stripewebhook.NewEventGuard(webhookManager, webhookGuardScope)
	if err != nil {
		logg.Error(ctx, "failed to create webhook guard", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(ctx, "failed to create notifications service", err)
		os.Exit(1)
	}

	router := routes.NewRouter(cfg, logg, dbClient, redisClient, reg, routes.Services{
		Checkout:      checkoutSvc,
		Payments:      issuer,
		Orders:        ordersSvc,
		Notifications: notificationsSvc,
		Webhooks:      reconciler,
		Verifier:      stripeClient,
		WebhookGuard:  guard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
	})
	logg.Info(ctx, "starting api server")

	if err := api.Serve(ctx, api.NewServer(cfg, addr, router), logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
