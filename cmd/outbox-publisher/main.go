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

	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/db"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/kafka"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/migrate"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/registry"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

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
		logg.Error(ctx, "outbox publisher exited", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeLogged(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	broker, release, err := openTransport(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("event transport: %w", err)
	}
	defer release()

	routes, err := registry.NewEventRegistry(registry.TopicsFromConfig(*cfg))
	if err != nil {
		return err
	}
	publisher, err := NewService(ServiceParams{
		Outbox:      cfg.Outbox,
		Logger:      logg,
		DB:          dbClient,
		Transport:   broker,
		Repository:  outbox.NewRepository(dbClient.DB()),
		Registry:    routes,
		DeadLetters: outbox.NewDeadLetters(dbClient.DB()),
		Metrics:     metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "transport": broker.Name()})
	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "outbox publisher running")
	return publisher.Run(ctx)
}

// openTransport connects the configured broker. release flushes pending
// publishes before closing the client.
func openTransport(ctx context.Context, cfg *config.Config, logg *logger.Logger) (transport, func(), error) {
	if cfg.Eventing.UsesKafka() {
		client, err := kafka.NewClient(cfg.Kafka, logg)
		if err != nil {
			return nil, nil, err
		}
		return newKafkaTransport(client), func() { closeLogged(ctx, logg, "kafka", client.Close) }, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	t := newPubSubTransport(client)
	return t, func() {
		t.Stop()
		closeLogged(ctx, logg, "pubsub", client.Close)
	}, nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "closing "+what, err)
	}
}
