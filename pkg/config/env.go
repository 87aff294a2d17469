package config

const (
	EnvPrefix = "STOCKROOM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv       = "STOCKROOM_APP_ENV"
	EnvPort         = "STOCKROOM_APP_PORT"
	EnvDBDSN        = "STOCKROOM_DB_DSN"
	EnvDBDriver     = "STOCKROOM_DB_DRIVER"
	EnvDBHost       = "STOCKROOM_DB_HOST"
	EnvDBUser       = "STOCKROOM_DB_USER"
	EnvDBName       = "STOCKROOM_DB_NAME"
	EnvRedisURL     = "STOCKROOM_REDIS_URL"
	EnvJWTSecret    = "STOCKROOM_JWT_SECRET"
	EnvJWTIssuer    = "STOCKROOM_JWT_ISSUER"
	EnvJWTExpMins   = "STOCKROOM_JWT_EXPIRATION_MINUTES"
	EnvFeedDriver   = "STOCKROOM_FEED_DRIVER"
	EnvFeedTopic    = "STOCKROOM_FEED_TOPIC"
	EnvFeedSub      = "STOCKROOM_FEED_SUBSCRIPTION"
	EnvGCPProjectID = "STOCKROOM_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
