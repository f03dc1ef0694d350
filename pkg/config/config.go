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
	Outbox       OutboxConfig
	Wallet       WalletConfig
	Delivery     DeliveryConfig
	Stripe       StripeConfig
	SMTP         SMTPConfig
	Cron         CronConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Delivery.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"MARKET_APP_ENV" required:"true"`
	Port         string   `envconfig:"MARKET_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"MARKET_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"MARKET_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"MARKET_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"MARKET_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"MARKET_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"MARKET_DB_DSN"`
	Driver string `envconfig:"MARKET_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"MARKET_DB_HOST"`
	LegacyPort     int    `envconfig:"MARKET_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"MARKET_DB_USER"`
	LegacyPassword string `envconfig:"MARKET_DB_PASSWORD"`
	LegacyName     string `envconfig:"MARKET_DB_NAME"`
	LegacySSLMode  string `envconfig:"MARKET_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MARKET_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MARKET_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MARKET_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MARKET_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"MARKET_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MARKET_REDIS_URL" required:"true"`
	KeyPrefix    string        `envconfig:"MARKET_REDIS_KEY_PREFIX" default:"hb"`
	Address      string        `envconfig:"MARKET_REDIS_ADDR"`
	Password     string        `envconfig:"MARKET_REDIS_PASSWORD"`
	DB           int           `envconfig:"MARKET_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MARKET_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MARKET_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MARKET_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MARKET_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MARKET_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"MARKET_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MARKET_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MARKET_JWT_EXPIRATION_MINUTES" required:"true"`
	// Audience is checked only when set.
	Audience string        `envconfig:"MARKET_JWT_AUDIENCE"`
	Leeway   time.Duration `envconfig:"MARKET_JWT_LEEWAY" default:"30s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"MARKET_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"MARKET_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"MARKET_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"MARKET_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"MARKET_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"MARKET_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// WalletConfig holds settlement amounts expressed in whole coins.
type WalletConfig struct {
	FirstPurchaseRewardCoins int64 `envconfig:"MARKET_WALLET_FIRST_PURCHASE_REWARD_COINS" default:"50"`
}

type DeliveryConfig struct {
	Mode           string `envconfig:"MARKET_DELIVERY_MODE" default:"free"`
	FlatPaise      int64  `envconfig:"MARKET_DELIVERY_FLAT_PAISE" default:"0"`
	FreeAbovePaise int64  `envconfig:"MARKET_DELIVERY_FREE_ABOVE_PAISE" default:"0"`
}

func (d DeliveryConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(d.Mode)) {
	case DeliveryModeFree, "":
		return nil
	case DeliveryModeFlat:
		if d.FlatPaise < 0 {
			return fmt.Errorf("%s must be non-negative", EnvDeliveryFlatPaise)
		}
		if d.FreeAbovePaise < 0 {
			return fmt.Errorf("%s must be non-negative", EnvDeliveryFreeAbovePaise)
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvDeliveryMode, d.Mode)
	}
}

type StripeConfig struct {
	Secret   string `envconfig:"MARKET_STRIPE_SECRET"`
	Env      string `envconfig:"MARKET_STRIPE_ENV" default:"test"`
	Currency string `envconfig:"MARKET_STRIPE_CURRENCY" default:"inr"`
	// MaxRetries bounds the SDK's own network retries per call.
	MaxRetries int64 `envconfig:"MARKET_STRIPE_MAX_RETRIES" default:"2"`
}

type SMTPConfig struct {
	Host     string `envconfig:"MARKET_SMTP_HOST"`
	Port     int    `envconfig:"MARKET_SMTP_PORT" default:"587"`
	Username string `envconfig:"MARKET_SMTP_USERNAME"`
	Password string `envconfig:"MARKET_SMTP_PASSWORD"`
	From     string `envconfig:"MARKET_SMTP_FROM" default:"orders@haatbazaar.in"`
}

// Enabled reports whether outbound mail is configured.
func (s SMTPConfig) Enabled() bool {
	return strings.TrimSpace(s.Host) != ""
}

type CronConfig struct {
	OutboxRetention    time.Duration `envconfig:"MARKET_CRON_OUTBOX_RETENTION" default:"720h"`
	ReconcileBatchSize int           `envconfig:"MARKET_CRON_RECONCILE_BATCH_SIZE" default:"500"`

	// Read notifications older than this are purged. Unread ones are never touched.
	NotificationRetention time.Duration `envconfig:"MARKET_CRON_NOTIFICATION_RETENTION" default:"720h"`

	Tick time.Duration `envconfig:"MARKET_CRON_TICK" default:"1m"`

	// Cadences double as the lease TTL for each job.
	OutboxRetentionEvery     time.Duration `envconfig:"MARKET_CRON_OUTBOX_RETENTION_EVERY" default:"1h"`
	ReconcileEvery           time.Duration `envconfig:"MARKET_CRON_RECONCILE_EVERY" default:"24h"`
	NotificationCleanupEvery time.Duration `envconfig:"MARKET_CRON_NOTIFICATION_CLEANUP_EVERY" default:"24h"`
}

// RateLimitConfig throttles order placement per buyer and per client IP.
type RateLimitConfig struct {
	CheckoutWindow    time.Duration `envconfig:"MARKET_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutUserLimit int           `envconfig:"MARKET_RATE_LIMIT_CHECKOUT_USER" default:"10"`
	CheckoutIPLimit   int           `envconfig:"MARKET_RATE_LIMIT_CHECKOUT_IP" default:"30"`
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
