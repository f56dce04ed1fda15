package config

const (
	EnvPrefix = "SETTLEMENT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "SETTLEMENT_APP_ENV"
	EnvPort     = "SETTLEMENT_APP_PORT"
	EnvLogLevel = "SETTLEMENT_LOG_LEVEL"

	EnvDBDSN  = "SETTLEMENT_DB_DSN"
	EnvDBHost = "SETTLEMENT_DB_HOST"
	EnvDBUser = "SETTLEMENT_DB_USER"
	EnvDBName = "SETTLEMENT_DB_NAME"

	EnvRedisURL = "SETTLEMENT_REDIS_URL"

	EnvJWTSecret = "SETTLEMENT_JWT_SECRET"
	EnvJWTIssuer = "SETTLEMENT_JWT_ISSUER"

	EnvGCPProjectID = "SETTLEMENT_GCP_PROJECT_ID"

	EnvPubSubOrdersTopic       = "SETTLEMENT_PUBSUB_ORDERS_TOPIC"
	EnvPubSubNotificationSub   = "SETTLEMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION"
	EnvPubSubAnalyticsSub      = "SETTLEMENT_PUBSUB_ANALYTICS_SUBSCRIPTION"
	EnvShippingRates           = "SETTLEMENT_SHIPPING_RATES"
	EnvCheckoutCurrencies      = "SETTLEMENT_CHECKOUT_CURRENCIES"
	EnvCheckoutDefaultCurrency = "SETTLEMENT_CHECKOUT_DEFAULT_CURRENCY"
	EnvPaymentsMode            = "SETTLEMENT_PAYMENTS_MODE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
