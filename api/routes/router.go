package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/all-if-r/5SCENT-WEB-sub001/api/controllers"
	notificationcontrollers "github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/notifications"
	ordercontrollers "github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/orders"
	paymentcontrollers "github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/payments"
	poscontrollers "github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/pos"
	reportcontrollers "github.com/all-if-r/5SCENT-WEB-sub001/api/controllers/reports"
	"github.com/all-if-r/5SCENT-WEB-sub001/api/middleware"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/checkout"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/notifications"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/orders"
	"github.com/all-if-r/5SCENT-WEB-sub001/internal/pos"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/config"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/enums"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/logger"
	"github.com/all-if-r/5SCENT-WEB-sub001/pkg/metrics"
	pkgredis "github.com/all-if-r/5SCENT-WEB-sub001/pkg/redis"
)

// Cache backs the Idempotency-Key and rate limit middleware.
type Cache interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(policy, subject string) string
}

// Services are the domain services exposed over HTTP.
type Services struct {
	Checkout      checkout.Service
	Orders        orders.Service
	Payments      paymentcontrollers.Service
	Notifications notifications.Service
	POS           pos.Service
	Reports       reportcontrollers.SalesReporter
}

// Observability wires request metrics and the scrape endpoint. A nil
// Handler leaves /metrics unmounted.
type Observability struct {
	HTTP    *metrics.HTTPMetrics
	Handler http.Handler
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	cache Cache,
	svc Services,
	readiness map[string]controllers.Pinger,
	obs Observability,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Metrics(obs.HTTP),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)
	if obs.Handler != nil {
		r.Method(http.MethodGet, "/metrics", obs.Handler)
	}

	paymentPolicy := middleware.NewRateLimitPolicy(
		"payments",
		cfg.RateLimit.PaymentWindow,
		cfg.RateLimit.PaymentLimit,
	)
	paymentLimit := middleware.RateLimit(paymentPolicy, cache, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(readiness, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// The gateway does not authenticate; the payload signature is checked downstream.
		r.Post("/payments/webhook", paymentcontrollers.Webhook(svc.Payments, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))
			r.Use(middleware.Idempotency(cache, logg))

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationcontrollers.List(svc.Notifications, logg))
				r.Post("/{notificationId}/read", notificationcontrollers.MarkRead(svc.Notifications, logg))
				r.Post("/read-all", notificationcontrollers.MarkAllRead(svc.Notifications, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleCustomer))
				r.Route("/orders", func(r chi.Router) {
					r.Post("/", ordercontrollers.PlaceOrder(svc.Checkout, logg))
					r.Get("/", ordercontrollers.List(svc.Orders, logg))
					r.Get("/{orderId}", ordercontrollers.Get(svc.Orders, logg))
					r.With(paymentLimit).Get("/{orderId}/payment-status", paymentcontrollers.Status(svc.Payments, logg))
				})
				r.With(paymentLimit).Post("/payments/qris", paymentcontrollers.InitiateQRIS(svc.Payments, logg))
			})

			r.Route("/pos", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleCashier, enums.UserRoleAdmin))
				r.Post("/sales", poscontrollers.RecordSale(svc.POS, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.UserRoleAdmin))
				r.Get("/orders", ordercontrollers.AdminList(svc.Orders, logg))
				r.Put("/orders/{orderId}/status", ordercontrollers.AdminUpdateStatus(svc.Orders, logg))
				r.Get("/reports/sales", reportcontrollers.Sales(svc.Reports, logg, nil))
			})
		})
	})

	return r
}
