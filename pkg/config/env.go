package config

const (
	EnvPrefix = "FIVESCENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	TransportPubSub = "pubsub"
	TransportKafka  = "kafka"
)

const (
	EnvAppEnv             = "FIVESCENT_APP_ENV"
	EnvPort               = "FIVESCENT_APP_PORT"
	EnvDBDSN              = "FIVESCENT_DB_DSN"
	EnvDBHost             = "FIVESCENT_DB_HOST"
	EnvDBUser             = "FIVESCENT_DB_USER"
	EnvDBName             = "FIVESCENT_DB_NAME"
	EnvDBPassword         = "FIVESCENT_DB_PASSWORD"
	EnvRedisURL           = "FIVESCENT_REDIS_URL"
	EnvJWTSecret          = "FIVESCENT_JWT_SECRET"
	EnvGatewayServerKey   = "FIVESCENT_GATEWAY_SERVER_KEY"
	EnvGatewayBaseURL     = "FIVESCENT_GATEWAY_BASE_URL"
	EnvCheckoutTaxRate    = "FIVESCENT_CHECKOUT_TAX_RATE"
	EnvEventingTransport  = "FIVESCENT_EVENTING_TRANSPORT"
	EnvKafkaBrokers       = "FIVESCENT_KAFKA_BROKERS"
	EnvGCPProjectID       = "FIVESCENT_GCP_PROJECT_ID"
	EnvPubSubOrdersTopic  = "FIVESCENT_PUBSUB_ORDERS_TOPIC"
	EnvBigQuerySalesTable = "FIVESCENT_BIGQUERY_SALES_TABLE"
)

var discreteDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
