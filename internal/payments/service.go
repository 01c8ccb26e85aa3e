// Package payments initiates QRIS charges and reconciles gateway outcomes
// into local payment and order state.
package payments

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/outbox"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/qris"
)

// Reconcile sources.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceCron    = "cron"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GuardStore is the Redis surface used to drop duplicate webhook deliveries early.
type GuardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

type ServiceParams struct {
	DB            txRunner
	Repo          Repository
	Orders        orders.Repository
	Transitions   orders.Transitioner
	Gateway       qris.Gateway
	Outbox        outbox.Emitter
	Notifications notifications.Emitter
	Guard         GuardStore
	Metrics       *metrics.PaymentMetrics
	Config        config.GatewayConfig
	Logger        *logger.Logger
	Clock         func() time.Time
}

// Service bundles the payment initiator, the reconciler and its entry points.
type Service struct {
	tx          txRunner
	repo        Repository
	orders      orders.Repository
	transitions orders.Transitioner
	gateway     qris.Gateway
	outbox      outbox.Emitter
	notify      notifications.Emitter
	guard       GuardStore
	metrics     *metrics.PaymentMetrics
	cfg         config.GatewayConfig
	logg        *logger.Logger
	clock       func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Transitions == nil {
		return nil, fmt.Errorf("order transitioner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notification emitter required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	cfg := params.Config
	if cfg.OrderIDPrefix == "" {
		cfg.OrderIDPrefix = "5SCENT"
	}
	if cfg.PollFallbackAfter <= 0 {
		cfg.PollFallbackAfter = 2 * time.Minute
	}
	if cfg.WebhookGuardTTL <= 0 {
		cfg.WebhookGuardTTL = 24 * time.Hour
	}
	return &Service{
		tx:          params.DB,
		repo:        params.Repo,
		orders:      params.Orders,
		transitions: params.Transitions,
		gateway:     params.Gateway,
		outbox:      params.Outbox,
		notify:      params.Notifications,
		guard:       params.Guard,
		metrics:     params.Metrics,
		cfg:         cfg,
		logg:        params.Logger,
		clock:       clock,
	}, nil
}

func (s *Service) warn(ctx context.Context, fields map[string]any, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, fields), msg)
}
