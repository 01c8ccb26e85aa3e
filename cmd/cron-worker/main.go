package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/cron"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/payments"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/stock"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/migrate"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "config rejected", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg := logger.New(logger.Options{
		ServiceName: serviceKind,
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker exited", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

// run wires the worker and blocks until ctx ends or the scheduler fails.
func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient.Close)

	jobs, err := buildJobs(cfg, logg, dbClient, redisClient)
	if err != nil {
		return fmt.Errorf("jobs: %w", err)
	}
	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		return err
	}
	lock, err := cron.NewRedisLock(redisClient, serviceKind, cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	scheduler, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "jobs": registry.Names()})
	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "cron worker running")
	return scheduler.Run(ctx)
}

func closeLogged(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "closing "+what, err)
	}
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) ([]cron.Job, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxWriter := outbox.NewWriter(outboxRepo, logg)

	notificationService, err := notifications.NewService(notifications.NewStore(gormDB), logg)
	if err != nil {
		return nil, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:          ordersRepo,
		DB:            dbClient,
		Stock:         stock.NewLedger(gormDB),
		Outbox:        outboxWriter,
		Notifications: notificationService,
		Logger:        logg,
	})
	if err != nil {
		return nil, err
	}

	gateway, err := qris.NewClient(cfg.Gateway)
	if err != nil {
		return nil, err
	}
	paymentsService, err := payments.NewService(payments.ServiceParams{
		DB:            dbClient,
		Repo:          payments.NewRepository(gormDB),
		Orders:        ordersRepo,
		Transitions:   ordersService,
		Gateway:       gateway,
		Outbox:        outboxWriter,
		Notifications: notificationService,
		Guard:         redisClient,
		Metrics:       metrics.NewPaymentMetrics(prometheus.DefaultRegisterer),
		Config:        cfg.Gateway,
		Logger:        logg,
	})
	if err != nil {
		return nil, err
	}

	sweepJob, err := cron.NewPaymentSweepJob(cron.PaymentSweepJobParams{
		Logger:    logg,
		Sweeper:   paymentsService,
		BatchSize: cfg.Cron.PaymentSweepBatch,
	})
	if err != nil {
		return nil, err
	}
	unpaidJob, err := cron.NewUnpaidOrderJob(cron.UnpaidOrderJobParams{
		Logger: logg,
		Orders: ordersRepo,
		Status: ordersService,
		TTL:    cfg.Checkout.UnpaidOrderTTL,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
		Every:      cfg.Cron.RetentionEvery,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{sweepJob, unpaidJob, retentionJob}, nil
}
