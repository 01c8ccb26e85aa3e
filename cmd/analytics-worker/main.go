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

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/router"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/types"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/worker"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/analytics/writer"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/bigquery"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/kafka"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox/dedupe"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/pubsub"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/redis"
)

const serviceKind = "analytics-worker"

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
		logg.Error(ctx, "analytics worker exited", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "analytics worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer closeLogged(ctx, logg, "redis", redisClient.Close)

	bq, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	defer closeLogged(ctx, logg, "bigquery", bq.Close)

	// Dev creates the sales table on first boot; elsewhere it must exist.
	if cfg.App.IsDev() {
		err = bq.EnsureSalesTable(ctx, types.SalesEventRow{}, "occurred_at")
	} else {
		err = bq.Ping(ctx)
	}
	if err != nil {
		return fmt.Errorf("bigquery sales table: %w", err)
	}

	source, release, err := openSource(ctx, cfg, logg)
	if err != nil {
		return fmt.Errorf("event source: %w", err)
	}
	defer release()

	guard, err := dedupe.NewGuard(redisClient, worker.ConsumerName, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}
	sink, err := writer.New(bq, bq.SalesTable(), writer.Retry{})
	if err != nil {
		return err
	}
	handler, err := router.NewRouter(sink, logg)
	if err != nil {
		return err
	}
	consumer, err := worker.NewService(source, handler, guard, logg)
	if err != nil {
		return err
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "transport": cfg.Eventing.Transport})
	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsAddr, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "analytics worker running")
	return consumer.Run(ctx)
}

func openSource(ctx context.Context, cfg *config.Config, logg *logger.Logger) (worker.Source, func(), error) {
	if cfg.Eventing.UsesKafka() {
		client, err := kafka.NewClient(cfg.Kafka, logg)
		if err != nil {
			return nil, nil, err
		}
		release := func() { closeLogged(ctx, logg, "kafka", client.Close) }
		reader, err := client.NewGroupReader(cfg.Kafka.SalesGroupID, cfg.Kafka.TopicList())
		if err != nil {
			release()
			return nil, nil, err
		}
		source, err := worker.NewKafkaSource(reader, logg)
		if err != nil {
			release()
			return nil, nil, err
		}
		return source, release, nil
	}

	client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	release := func() { closeLogged(ctx, logg, "pubsub", client.Close) }
	if err := client.EnsureSubscriptions(ctx); err != nil {
		release()
		return nil, nil, err
	}
	source, err := worker.NewPubSubSource(client.SalesSubscribers())
	if err != nil {
		release()
		return nil, nil, err
	}
	return source, release, nil
}

func closeLogged(ctx context.Context, logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.WithoutCancel(ctx), "closing "+what, err)
	}
}
