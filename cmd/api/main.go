package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tutorlink/tutorlink-backend/api/controllers"
	"github.com/tutorlink/tutorlink-backend/api/routes"
	"github.com/tutorlink/tutorlink-backend/internal/availability"
	"github.com/tutorlink/tutorlink-backend/internal/bookings"
	"github.com/tutorlink/tutorlink-backend/internal/disputes"
	"github.com/tutorlink/tutorlink-backend/internal/notifications"
	"github.com/tutorlink/tutorlink-backend/internal/payments"
	stripewebhook "github.com/tutorlink/tutorlink-backend/internal/webhooks/stripe"
	"github.com/tutorlink/tutorlink-backend/pkg/config"
	"github.com/tutorlink/tutorlink-backend/pkg/db"
	"github.com/tutorlink/tutorlink-backend/pkg/logger"
	"github.com/tutorlink/tutorlink-backend/pkg/meet"
	"github.com/tutorlink/tutorlink-backend/pkg/metrics"
	"github.com/tutorlink/tutorlink-backend/pkg/migrate"
	"github.com/tutorlink/tutorlink-backend/pkg/outbox"
	"github.com/tutorlink/tutorlink-backend/pkg/redis"
	stripepkg "github.com/tutorlink/tutorlink-backend/pkg/stripe"
)

const webhookIdempotencyTTL = 24 * time.Hour

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
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

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
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripepkg.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}
	gatewayClient := stripepkg.NewGatewayClient(stripeClient)

	var meetClient *meet.Client
	if cfg.Meet.APIKey != "" {
		meetClient, err = meet.NewClient(cfg.Meet.APIKey, meet.WithBaseURL(cfg.Meet.BaseURL))
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap meet client", err)
			os.Exit(1)
		}
	} else {
		logg.Warn(context.Background(), "meet api key missing, bookings will not carry meeting links")
	}

	registry := prometheus.NewRegistry()
	lifecycleMetrics := metrics.NewLifecycleMetrics(registry)

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxSvc := outbox.NewService(outboxRepo, logg)

	availabilityRepo := availability.NewRepository(dbClient.DB())
	availabilitySvc, err := availability.NewService(availabilityRepo, cfg.Marketplace)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability service", err)
		os.Exit(1)
	}

	bookingsRepo := bookings.NewRepository(dbClient.DB())
	bookingsSvc, err := bookings.NewService(
		bookingsRepo,
		availabilityRepo,
		availabilitySvc,
		dbClient,
		outboxSvc,
		redisClient,
		meetClient,
		lifecycleMetrics,
		cfg.Marketplace,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create bookings service", err)
		os.Exit(1)
	}

	paymentsRepo := payments.NewRepository(dbClient.DB())
	paymentsSvc, err := payments.NewService(
		paymentsRepo,
		bookingsRepo,
		bookingsSvc,
		payments.NewStripeGateway(gatewayClient),
		dbClient,
		outboxSvc,
		lifecycleMetrics,
		cfg.Marketplace,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	disputesRepo := disputes.NewRepository(dbClient.DB())
	disputesSvc, err := disputes.NewService(
		disputesRepo,
		paymentsRepo,
		paymentsSvc,
		dbClient,
		outboxSvc,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create disputes service", err)
		os.Exit(1)
	}

	notificationsSvc, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}
	webhookSvc, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Payments:     paymentsSvc,
		PaymentsRepo: paymentsRepo,
		Disputes:     disputesSvc,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
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
		Addr: addr,
		Handler: routes.New(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Bookings:      bookingsSvc,
			Availability:  availabilitySvc,
			Payments:      paymentsSvc,
			Disputes:      disputesSvc,
			Notifications: notificationsSvc,
			StripeGateway: gatewayClient,
			WebhookGuard:  webhookGuard,
			Webhooks:      webhookSvc,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			Metrics: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
