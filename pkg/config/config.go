package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	Stripe       StripeConfig
	Push         PushConfig
	Checkout     CheckoutConfig
	Payments     PaymentsConfig
	Webhooks     WebhooksConfig
	Cron         CronConfig
	Tracing      TracingConfig
	HTTP         HTTPConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Checkout.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Payments.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SETTLEMENT_APP_ENV" required:"true"`
	Port         string `envconfig:"SETTLEMENT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SETTLEMENT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SETTLEMENT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"SETTLEMENT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SETTLEMENT_DB_DSN"`
	Driver string `envconfig:"SETTLEMENT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SETTLEMENT_DB_HOST"`
	LegacyPort     int    `envconfig:"SETTLEMENT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SETTLEMENT_DB_USER"`
	LegacyPassword string `envconfig:"SETTLEMENT_DB_PASSWORD"`
	LegacyName     string `envconfig:"SETTLEMENT_DB_NAME"`
	LegacySSLMode  string `envconfig:"SETTLEMENT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SETTLEMENT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SETTLEMENT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SETTLEMENT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"SETTLEMENT_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SETTLEMENT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SETTLEMENT_REDIS_ADDR"`
	Password     string        `envconfig:"SETTLEMENT_REDIS_PASSWORD"`
	DB           int           `envconfig:"SETTLEMENT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SETTLEMENT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SETTLEMENT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SETTLEMENT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SETTLEMENT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SETTLEMENT_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SETTLEMENT_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SETTLEMENT_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SETTLEMENT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SETTLEMENT_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SETTLEMENT_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SETTLEMENT_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SETTLEMENT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SETTLEMENT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic              string `envconfig:"SETTLEMENT_PUBSUB_ORDERS_TOPIC" required:"true"`
	NotificationSubscription string `envconfig:"SETTLEMENT_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	AnalyticsSubscription    string `envconfig:"SETTLEMENT_PUBSUB_ANALYTICS_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"SETTLEMENT_BIGQUERY_DATASET" default:"settlement"`
	SettlementsTable string `envconfig:"SETTLEMENT_BIGQUERY_SETTLEMENTS_TABLE" default:"settlement_events"`
	BatchSize        int    `envconfig:"SETTLEMENT_BIGQUERY_BATCH_SIZE" default:"1"`
	MaxAttempts      int    `envconfig:"SETTLEMENT_BIGQUERY_MAX_ATTEMPTS" default:"3"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SETTLEMENT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SETTLEMENT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type StripeConfig struct {
	APIKey string `envconfig:"SETTLEMENT_STRIPE_API_KEY"`
	Secret string `envconfig:"SETTLEMENT_STRIPE_SECRET"`
	Env    string `envconfig:"SETTLEMENT_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PushConfig struct {
	Enabled bool `envconfig:"SETTLEMENT_PUSH_ENABLED" default:"true"`

	// BatchSize is capped at the FCM multicast limit.
	BatchSize int `envconfig:"SETTLEMENT_PUSH_BATCH_SIZE" default:"500"`
}

type CheckoutConfig struct {
	ShippingRates     map[string]int64 `envconfig:"SETTLEMENT_SHIPPING_RATES" default:"pickup:0,standard:500,express:1500"`
	DefaultCurrency   string           `envconfig:"SETTLEMENT_CHECKOUT_DEFAULT_CURRENCY" default:"usd"`
	AllowedCurrencies []string         `envconfig:"SETTLEMENT_CHECKOUT_CURRENCIES" default:"usd"`
	MaxLineQuantity   int              `envconfig:"SETTLEMENT_CHECKOUT_MAX_LINE_QUANTITY" default:"99"`
	MaxLinesPerOrder  int              `envconfig:"SETTLEMENT_CHECKOUT_MAX_LINES" default:"100"`
	IdempotencyKeyTTL time.Duration    `envconfig:"SETTLEMENT_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}

// normalize lower-cases and trims shipping method names.
func (c *CheckoutConfig) normalize() error {
	if len(c.ShippingRates) == 0 {
		return fmt.Errorf("%s must list at least one shipping method", EnvShippingRates)
	}
	rates := make(map[string]int64, len(c.ShippingRates))
	for raw, cost := range c.ShippingRates {
		method := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case method == "":
			return fmt.Errorf("%s has an empty shipping method", EnvShippingRates)
		case cost < 0:
			return fmt.Errorf("shipping rate %q must not be negative", method)
		}
		if _, dup := rates[method]; dup {
			return fmt.Errorf("%s lists shipping method %q more than once", EnvShippingRates, method)
		}
		rates[method] = cost
	}
	c.ShippingRates = rates

	if !c.CurrencyAllowed(c.DefaultCurrency) {
		return fmt.Errorf("default currency %q is not in %s", c.DefaultCurrency, EnvCheckoutCurrencies)
	}
	return nil
}

// CurrencyAllowed reports whether the ISO code is in the configured allow-list.
func (c CheckoutConfig) CurrencyAllowed(code string) bool {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, allowed := range c.AllowedCurrencies {
		if strings.ToLower(strings.TrimSpace(allowed)) == code {
			return true
		}
	}
	return false
}

type PaymentsConfig struct {
	Mode            string        `envconfig:"SETTLEMENT_PAYMENTS_MODE" default:"session"`
	ProviderTimeout time.Duration `envconfig:"SETTLEMENT_PAYMENTS_PROVIDER_TIMEOUT" default:"20s"`
	SuccessURL      string        `envconfig:"SETTLEMENT_PAYMENTS_SUCCESS_URL" default:"http://localhost:3000/orders/{ORDER_ID}/success"`
	CancelURL       string        `envconfig:"SETTLEMENT_PAYMENTS_CANCEL_URL" default:"http://localhost:3000/orders/{ORDER_ID}/cancel"`
}

func (p PaymentsConfig) validate() error {
	switch strings.ToLower(p.Mode) {
	case "session", "intent":
		return nil
	default:
		return fmt.Errorf("%s must be session or intent, got %q", EnvPaymentsMode, p.Mode)
	}
}

type WebhooksConfig struct {
	Timeout        time.Duration `envconfig:"SETTLEMENT_WEBHOOKS_TIMEOUT" default:"25s"`
	IdempotencyTTL time.Duration `envconfig:"SETTLEMENT_WEBHOOKS_IDEMPOTENCY_TTL" default:"168h"`
}

type CronConfig struct {
	Interval                  time.Duration `envconfig:"SETTLEMENT_CRON_INTERVAL" default:"15m"`
	LockTTL                   time.Duration `envconfig:"SETTLEMENT_CRON_LOCK_TTL" default:"14m"`
	InventoryMaxAttempts      int           `envconfig:"SETTLEMENT_CRON_INVENTORY_MAX_ATTEMPTS" default:"20"`
	InventoryBatchSize        int           `envconfig:"SETTLEMENT_CRON_INVENTORY_BATCH_SIZE" default:"100"`
	OutboxRetentionDays       int           `envconfig:"SETTLEMENT_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	DLQRetentionDays          int           `envconfig:"SETTLEMENT_CRON_DLQ_RETENTION_DAYS" default:"180"`
	NotificationRetentionDays int           `envconfig:"SETTLEMENT_CRON_NOTIFICATION_RETENTION_DAYS" default:"90"`
	NotificationPurgeBatch    int           `envconfig:"SETTLEMENT_CRON_NOTIFICATION_PURGE_BATCH" default:"500"`
}

type HTTPConfig struct {
	CORSOrigins       []string      `envconfig:"SETTLEMENT_HTTP_CORS_ORIGINS" default:"http://localhost:3000"`
	RateLimitWindow   time.Duration `envconfig:"SETTLEMENT_HTTP_RATE_LIMIT_WINDOW" default:"1m"`
	CheckoutRateLimit int64         `envconfig:"SETTLEMENT_HTTP_CHECKOUT_RATE_LIMIT" default:"20"`
	PaymentRateLimit  int64         `envconfig:"SETTLEMENT_HTTP_PAYMENT_RATE_LIMIT" default:"30"`
	WriteTimeout      time.Duration `envconfig:"SETTLEMENT_HTTP_WRITE_TIMEOUT" default:"30s"`
}

type TracingConfig struct {
	OTLPEndpoint string  `envconfig:"SETTLEMENT_OTLP_ENDPOINT"`
	Insecure     bool    `envconfig:"SETTLEMENT_OTLP_INSECURE" default:"false"`
	SampleRatio  float64 `envconfig:"SETTLEMENT_TRACE_SAMPLE_RATIO" default:"1"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
