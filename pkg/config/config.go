package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	Service  ServiceConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Checkout CheckoutConfig
	Gateway  GatewayConfig
	Eventing EventingConfig
	Outbox   OutboxConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Kafka    KafkaConfig
	BigQuery BigQueryConfig
	Cron     CronConfig

	RateLimit RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"FIVESCENT_APP_ENV" required:"true"`
	Port         string `envconfig:"FIVESCENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FIVESCENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FIVESCENT_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"FIVESCENT_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"FIVESCENT_CORS_ORIGINS"`
	AutoMigrate  bool   `envconfig:"FIVESCENT_AUTO_MIGRATE" default:"true"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	return splitCSV(a.CORSOrigins)
}

type ServiceConfig struct {
	Kind string `envconfig:"FIVESCENT_SERVICE_KIND" default:"api"`
	// MetricsAddr is the /metrics listener for the worker binaries; the API
	// serves metrics on its own port. Empty disables it.
	MetricsAddr string `envconfig:"FIVESCENT_METRICS_ADDR" default:":9090"`
}

type DBConfig struct {
	DSN    string `envconfig:"FIVESCENT_DB_DSN"`
	Driver string `envconfig:"FIVESCENT_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"FIVESCENT_DB_HOST"`
	Port     int    `envconfig:"FIVESCENT_DB_PORT" default:"5432"`
	User     string `envconfig:"FIVESCENT_DB_USER"`
	Password string `envconfig:"FIVESCENT_DB_PASSWORD"`
	Name     string `envconfig:"FIVESCENT_DB_NAME"`
	SSLMode  string `envconfig:"FIVESCENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"FIVESCENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FIVESCENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FIVESCENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FIVESCENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"FIVESCENT_DB_SLOW_QUERY_THRESHOLD" default:"500ms"`
	TxRetries          int           `envconfig:"FIVESCENT_DB_TX_RETRIES" default:"3"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FIVESCENT_REDIS_URL"`
	Address      string        `envconfig:"FIVESCENT_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"FIVESCENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"FIVESCENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FIVESCENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FIVESCENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FIVESCENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FIVESCENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FIVESCENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret string `envconfig:"FIVESCENT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FIVESCENT_JWT_ISSUER" default:"5scent"`
	// Leeway absorbs clock skew between the identity service and this API.
	Leeway time.Duration `envconfig:"FIVESCENT_JWT_LEEWAY" default:"30s"`
}

// CheckoutConfig holds the pricing inputs frozen onto every order at assembly.
type CheckoutConfig struct {
	TaxRate decimal.Decimal `envconfig:"FIVESCENT_CHECKOUT_TAX_RATE" default:"0.05"`
	// Unpaid QRIS orders without a payment row are canceled after this long.
	UnpaidOrderTTL time.Duration `envconfig:"FIVESCENT_CHECKOUT_UNPAID_ORDER_TTL" default:"24h"`
}

func (c CheckoutConfig) validate() error {
	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return fmt.Errorf("%s must be in [0, 1), got %s", EnvCheckoutTaxRate, c.TaxRate.String())
	}
	return nil
}

// GatewayConfig configures the outbound QRIS payment gateway.
type GatewayConfig struct {
	BaseURL         string        `envconfig:"FIVESCENT_GATEWAY_BASE_URL" default:"https://api.sandbox.midtrans.com"`
	ServerKey       string        `envconfig:"FIVESCENT_GATEWAY_SERVER_KEY" required:"true"`
	Acquirer        string        `envconfig:"FIVESCENT_GATEWAY_QRIS_ACQUIRER" default:"gopay"`
	OrderIDPrefix   string        `envconfig:"FIVESCENT_GATEWAY_ORDER_ID_PREFIX" default:"5SCENT"`
	Timeout         time.Duration `envconfig:"FIVESCENT_GATEWAY_TIMEOUT" default:"10s"`
	RetryBackoff    time.Duration `envconfig:"FIVESCENT_GATEWAY_RETRY_BACKOFF" default:"500ms"`
	VerifySignature bool          `envconfig:"FIVESCENT_GATEWAY_VERIFY_SIGNATURE" default:"true"`
	// Pending payments older than this are re-checked against the gateway.
	PollFallbackAfter time.Duration `envconfig:"FIVESCENT_GATEWAY_POLL_FALLBACK_AFTER" default:"2m"`
	WebhookGuardTTL   time.Duration `envconfig:"FIVESCENT_GATEWAY_WEBHOOK_GUARD_TTL" default:"24h"`
}

type EventingConfig struct {
	// Transport selects the outbox broker: pubsub or kafka.
	Transport            string        `envconfig:"FIVESCENT_EVENTING_TRANSPORT" default:"pubsub"`
	OutboxIdempotencyTTL time.Duration `envconfig:"FIVESCENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Transport)) {
	case TransportPubSub, TransportKafka:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvEventingTransport, TransportPubSub, TransportKafka, e.Transport)
	}
}

// UsesKafka reports whether outbox events travel over Kafka.
func (e EventingConfig) UsesKafka() bool {
	return strings.EqualFold(strings.TrimSpace(e.Transport), TransportKafka)
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"FIVESCENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"FIVESCENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"FIVESCENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"FIVESCENT_OUTBOX_RETENTION" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FIVESCENT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FIVESCENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FIVESCENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic   string `envconfig:"FIVESCENT_PUBSUB_ORDERS_TOPIC" default:"5scent-order-events"`
	PaymentsTopic string `envconfig:"FIVESCENT_PUBSUB_PAYMENTS_TOPIC" default:"5scent-payment-events"`
	// One subscription per topic feeds the analytics worker.
	SalesSubscriptions string `envconfig:"FIVESCENT_PUBSUB_SALES_SUBSCRIPTIONS" default:"5scent-sales-orders,5scent-sales-payments"`
}

// SubscriptionList returns the analytics subscriptions.
func (p PubSubConfig) SubscriptionList() []string {
	return splitCSV(p.SalesSubscriptions)
}

// TopicList returns every topic the outbox publisher writes to.
func (p PubSubConfig) TopicList() []string {
	return splitCSV(p.OrdersTopic + "," + p.PaymentsTopic)
}

type KafkaConfig struct {
	Brokers       string `envconfig:"FIVESCENT_KAFKA_BROKERS" default:"localhost:9092"`
	OrdersTopic   string `envconfig:"FIVESCENT_KAFKA_ORDERS_TOPIC" default:"5scent.orders"`
	PaymentsTopic string `envconfig:"FIVESCENT_KAFKA_PAYMENTS_TOPIC" default:"5scent.payments"`
	SalesGroupID  string `envconfig:"FIVESCENT_KAFKA_SALES_GROUP_ID" default:"5scent-sales-report"`
}

// BrokerList returns the configured Kafka bootstrap brokers.
func (k KafkaConfig) BrokerList() []string {
	return splitCSV(k.Brokers)
}

// TopicList returns every topic the outbox publisher writes to.
func (k KafkaConfig) TopicList() []string {
	return splitCSV(k.OrdersTopic + "," + k.PaymentsTopic)
}

type BigQueryConfig struct {
	Dataset    string `envconfig:"FIVESCENT_BIGQUERY_DATASET" default:"fivescent"`
	SalesTable string `envconfig:"FIVESCENT_BIGQUERY_SALES_TABLE" default:"sales_events"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"FIVESCENT_CRON_INTERVAL" default:"1m"`
	LockTTL           time.Duration `envconfig:"FIVESCENT_CRON_LOCK_TTL" default:"5m"`
	PaymentSweepBatch int           `envconfig:"FIVESCENT_CRON_PAYMENT_SWEEP_BATCH" default:"100"`
	RetentionEvery    time.Duration `envconfig:"FIVESCENT_CRON_RETENTION_EVERY" default:"1h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range discreteDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RateLimitConfig throttles payment polling per user. A zero limit disables it.
type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"FIVESCENT_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int           `envconfig:"FIVESCENT_RATE_LIMIT_PAYMENT_LIMIT" default:"60"`
}
