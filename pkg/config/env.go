package config

// EnvPrefix is passed to envconfig; every field carries an explicit envconfig tag.
const EnvPrefix = "MARKETPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// CallbackPath is the route the payment gateway calls back on.
const CallbackPath = "/api/v1/payments/callback"

const (
	EnvAppEnv       = "MARKETPLACE_APP_ENV"
	EnvPort         = "MARKETPLACE_APP_PORT"
	EnvLogLevel     = "MARKETPLACE_LOG_LEVEL"
	EnvDBDSN        = "MARKETPLACE_DB_DSN"
	EnvDBHost       = "MARKETPLACE_DB_HOST"
	EnvDBPort       = "MARKETPLACE_DB_PORT"
	EnvDBUser       = "MARKETPLACE_DB_USER"
	EnvDBPassword   = "MARKETPLACE_DB_PASSWORD"
	EnvDBName       = "MARKETPLACE_DB_NAME"
	EnvRedisURL     = "MARKETPLACE_REDIS_URL"
	EnvJWTSecret    = "MARKETPLACE_JWT_SECRET"
	EnvJWTIssuer    = "MARKETPLACE_JWT_ISSUER"
	EnvGatewayURL   = "MARKETPLACE_GATEWAY_CALLBACK_BASE_URL"
	EnvGatewayTTL   = "MARKETPLACE_GATEWAY_TIMEOUT"
	EnvSquareEnv    = "MARKETPLACE_SQUARE_ENV"
	EnvOrdersTopic  = "MARKETPLACE_PUBSUB_ORDERS_TOPIC"
	EnvOutboxBatch  = "MARKETPLACE_OUTBOX_PUBLISH_BATCH_SIZE"
	EnvGCPProjectID = "MARKETPLACE_GCP_PROJECT_ID"
)

var discreteDBEnvVars = []string{
	EnvDBHost,
	EnvDBUser,
	EnvDBName,
}
