package config

const EnvPrefix = "MARKET"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DeliveryModeFree = "free"
	DeliveryModeFlat = "flat"
)

const (
	EnvAppEnv   = "MARKET_APP_ENV"
	EnvPort     = "MARKET_APP_PORT"
	EnvLogLevel = "MARKET_LOG_LEVEL"

	EnvDBDSN  = "MARKET_DB_DSN"
	EnvDBHost = "MARKET_DB_HOST"
	EnvDBUser = "MARKET_DB_USER"
	EnvDBName = "MARKET_DB_NAME"

	EnvRedisURL = "MARKET_REDIS_URL"

	EnvJWTSecret  = "MARKET_JWT_SECRET"
	EnvJWTIssuer  = "MARKET_JWT_ISSUER"
	EnvJWTExpMins = "MARKET_JWT_EXPIRATION_MINUTES"

	EnvFirstPurchaseReward    = "MARKET_WALLET_FIRST_PURCHASE_REWARD_COINS"
	EnvDeliveryMode           = "MARKET_DELIVERY_MODE"
	EnvDeliveryFlatPaise      = "MARKET_DELIVERY_FLAT_PAISE"
	EnvDeliveryFreeAbovePaise = "MARKET_DELIVERY_FREE_ABOVE_PAISE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
