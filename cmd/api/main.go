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
	"golang.org/x/sync/errgroup"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/routes"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/catalog"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/checkout"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/payments"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/pos"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/reports"
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

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
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

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build services", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{
		"postgres": dbClient.Ping,
		"redis":    redisClient.Ping,
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, redisClient, services, readiness, routes.Observability{
			HTTP:    metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Handler: metrics.Handler(prometheus.DefaultGatherer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logg.Info(groupCtx, "starting api server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(groupCtx), shutdownTimeout)
		defer cancel()
		logg.Info(shutdownCtx, "api server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (routes.Services, error) {
	gormDB := dbClient.DB()
	outboxWriter := outbox.NewWriter(outbox.NewRepository(gormDB), logg)
	ledger := stock.NewLedger(gormDB)
	catalogReader := catalog.NewReader()

	notificationService, err := notifications.NewService(notifications.NewStore(gormDB), logg)
	if err != nil {
		return routes.Services{}, err
	}

	ordersRepo := orders.NewRepository(gormDB)
	ordersService, err := orders.NewService(orders.ServiceParams{
		Repo:          ordersRepo,
		DB:            dbClient,
		Stock:         ledger,
		Outbox:        outboxWriter,
		Notifications: notificationService,
		Logger:        logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	checkoutService, err := checkout.NewService(checkout.ServiceParams{
		DB:            dbClient,
		Orders:        ordersRepo,
		Catalog:       catalogReader,
		Stock:         ledger,
		Outbox:        outboxWriter,
		TaxRate:       cfg.Checkout.TaxRate,
		Logger:        logg,
		Notifications: notificationService,
	})
	if err != nil {
		return routes.Services{}, err
	}

	gateway, err := qris.NewClient(cfg.Gateway)
	if err != nil {
		return routes.Services{}, err
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
		return routes.Services{}, err
	}

	posService, err := pos.NewService(pos.ServiceParams{
		DB:      dbClient,
		Catalog: catalogReader,
		Stock:   ledger,
		Outbox:  outboxWriter,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Checkout:      checkoutService,
		Orders:        ordersService,
		Payments:      paymentsService,
		Notifications: notificationService,
		POS:           posService,
		Reports:       reports.NewService(gormDB),
	}, nil
}
