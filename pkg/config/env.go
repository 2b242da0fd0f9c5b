package config

const (
	EnvPrefix = "PRODUCTDESK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StorageDriverREST = "rest"
	StorageDriverS3   = "s3"

	TableDriverREST     = "rest"
	TableDriverPostgres = "postgres"
	TableDriverSQLite   = "sqlite"
)

// Environment variable names referenced by validation messages and tests.
const (
	EnvAppEnv             = "PRODUCTDESK_APP_ENV"
	EnvPort               = "PRODUCTDESK_APP_PORT"
	EnvBackendURL         = "PRODUCTDESK_BACKEND_URL"
	EnvBackendAnonKey     = "PRODUCTDESK_BACKEND_ANON_KEY"
	EnvBackendJWTSecret   = "PRODUCTDESK_BACKEND_JWT_SECRET"
	EnvStorageDriver      = "PRODUCTDESK_STORAGE_DRIVER"
	EnvStorageS3Endpoint  = "PRODUCTDESK_STORAGE_S3_ENDPOINT"
	EnvStorageS3AccessKey = "PRODUCTDESK_STORAGE_S3_ACCESS_KEY"
	EnvStorageS3SecretKey = "PRODUCTDESK_STORAGE_S3_SECRET_KEY"
	EnvTableDriver        = "PRODUCTDESK_TABLE_DRIVER"
	EnvDBDSN              = "PRODUCTDESK_DB_DSN"
	EnvRedisURL           = "PRODUCTDESK_REDIS_URL"
	EnvCORSOrigins        = "PRODUCTDESK_CORS_ALLOWED_ORIGINS"
)
