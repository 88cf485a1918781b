package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/thorvaldsen/leasehold/internal"
	"github.com/thorvaldsen/leasehold/internal/billing"
	"github.com/thorvaldsen/leasehold/internal/email"
	"github.com/thorvaldsen/leasehold/internal/handler"
	"github.com/thorvaldsen/leasehold/internal/handler/webhook"
	"github.com/thorvaldsen/leasehold/internal/pdf"
	"github.com/thorvaldsen/leasehold/internal/postgres"
	"github.com/thorvaldsen/leasehold/internal/router"
	"github.com/thorvaldsen/leasehold/internal/routes"
	"github.com/thorvaldsen/leasehold/internal/service"
	"github.com/thorvaldsen/leasehold/internal/storage"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	cleanupSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer cleanupSentry()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize Prometheus business metrics
	telemetry.InitBusinessMetrics("leasehold")

	// Initialize stores
	tenancyStore := postgres.NewTenancyStore(pool)
	invoiceStore := postgres.NewInvoiceStore(pool)
	paymentStore := postgres.NewPaymentStore(pool)
	reminderStore := postgres.NewReminderStore(pool)
	unitStore := postgres.NewUnitStore(pool)
	inviteStore := postgres.NewInviteStore(pool)

	// Initialize payment gateways
	logger.Info("Initializing payment gateways...")
	stripeGateway, err := billing.NewStripeGateway(billing.StripeConfig{
		SecretKey:     cfg.Stripe.SecretKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe gateway: %w", err)
	}
	paystackGateway, err := billing.NewPaystackGateway(billing.PaystackConfig{
		SecretKey: cfg.Paystack.SecretKey,
		BaseURL:   cfg.Paystack.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Paystack gateway: %w", err)
	}
	gateways := billing.Registry{
		stripeGateway.Name():   stripeGateway,
		paystackGateway.Name(): paystackGateway,
	}
	logger.Info("Payment gateways initialized", "gateways", len(gateways))

	// Initialize receipt archive storage
	archive, err := storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize receipt storage: %w", err)
	}

	// Receipt rendering and delivery
	renderer := pdf.NewRenderer(cfg.Email.FromName)
	sender := email.NewSMTPSender(email.SMTPConfig{
		Host:     cfg.Email.Host,
		Port:     int(cfg.Email.Port),
		Username: cfg.Email.Username,
		Password: cfg.Email.Password,
		From:     cfg.Email.From,
	}, logger)
	mailer := email.NewReceiptMailer(sender, cfg.Email.From)

	// Initialize services
	checkoutService := service.NewCheckoutService(gateways, logger)
	tenancyService := service.NewTenancyService(tenancyStore, inviteStore, logger)
	settlementService := service.NewSettlementService(
		invoiceStore,
		paymentStore,
		unitStore,
		reminderStore,
		renderer,
		archive,
		mailer,
		logger,
	)

	// Build route dependencies
	deps := routes.Deps{
		Checkout:        handler.NewCheckoutHandler(checkoutService),
		Billing:         handler.NewBillingHandler(invoiceStore, paymentStore),
		Tenancy:         handler.NewTenancyHandler(tenancyService),
		Health:          handler.NewHealthHandler(pool),
		StripeWebhook:   webhook.NewStripeHandler(stripeGateway, settlementService, logger),
		PaystackWebhook: webhook.NewPaystackHandler(paystackGateway, settlementService, logger),
	}

	r := router.New(
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		router.CORS(strings.Split(cfg.CORSOrigins, ",")),
		router.Logger(logger),
	)
	routes.Register(r, deps)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting billing API server", "address", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
