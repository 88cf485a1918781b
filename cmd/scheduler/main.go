package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/thorvaldsen/leasehold/internal"
	"github.com/thorvaldsen/leasehold/internal/postgres"
	"github.com/thorvaldsen/leasehold/internal/scheduler"
	"github.com/thorvaldsen/leasehold/internal/service"
	"github.com/thorvaldsen/leasehold/internal/telemetry"
)

// run starts the daily billing jobs. With -job it fires a single job once
// and exits, which is what the deploy scripts use for backfills.
func run(jobName string) error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

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

	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	telemetry.InitBusinessMetrics("leasehold")

	tenancyStore := postgres.NewTenancyStore(pool)
	invoiceStore := postgres.NewInvoiceStore(pool)
	reminderStore := postgres.NewReminderStore(pool)

	billingService := service.NewBillingService(tenancyStore, invoiceStore, logger)
	reminderService := service.NewReminderService(invoiceStore, reminderStore, logger)

	generateAt, err := scheduler.ParseTimeOfDay(cfg.Scheduler.GenerateInvoicesAt)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULE_GENERATE_INVOICES_AT: %w", err)
	}
	sweepAt, err := scheduler.ParseTimeOfDay(cfg.Scheduler.SweepOverdueAt)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULE_SWEEP_OVERDUE_AT: %w", err)
	}
	remindersAt, err := scheduler.ParseTimeOfDay(cfg.Scheduler.ScheduleRemindersAt)
	if err != nil {
		return fmt.Errorf("invalid SCHEDULE_REMINDERS_AT: %w", err)
	}

	sched := scheduler.New(logger)
	sched.Register("generate_invoices", generateAt, func(ctx context.Context, now time.Time) error {
		_, err := billingService.GenerateInvoices(ctx, now)
		return err
	})
	sched.Register("sweep_overdue", sweepAt, func(ctx context.Context, now time.Time) error {
		_, err := billingService.SweepOverdue(ctx, now)
		return err
	})
	sched.Register("schedule_reminders", remindersAt, func(ctx context.Context, now time.Time) error {
		_, err := reminderService.ScheduleReminders(ctx, now)
		return err
	})

	if jobName != "" {
		logger.Info("Running single job", "job", jobName)
		return sched.RunJob(ctx, jobName)
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting scheduler",
		"generate_invoices_at", generateAt.String(),
		"sweep_overdue_at", sweepAt.String(),
		"schedule_reminders_at", remindersAt.String(),
	)
	if err := sched.Start(runCtx); err != nil && err != context.Canceled {
		return err
	}
	logger.Info("Scheduler stopped")
	return nil
}

func main() {
	jobName := flag.String("job", "", "run a single job by name and exit")
	flag.Parse()

	if err := run(*jobName); err != nil {
		log.Fatal(err)
	}
}
