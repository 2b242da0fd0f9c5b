package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Backend       BackendConfig
	Storage       StorageConfig
	Table         TableConfig
	DB            DBConfig
	Redis         RedisConfig
	Session       SessionConfig
	AuthRateLimit AuthRateLimitConfig
	Submission    SubmissionConfig
	CORS          CORSConfig
	FeatureFlags  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Backend.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Table.validate(cfg.DB); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string        `envconfig:"PRODUCTDESK_APP_ENV" required:"true"`
	Port         string        `envconfig:"PRODUCTDESK_APP_PORT" required:"true"`
	LogLevel     string        `envconfig:"PRODUCTDESK_LOG_LEVEL" default:"info"`
	LogFormat    string        `envconfig:"PRODUCTDESK_LOG_FORMAT" default:"json"`
	LogWarnStack bool          `envconfig:"PRODUCTDESK_LOG_WARN_STACK" default:"false"`
	LandingWait  time.Duration `envconfig:"PRODUCTDESK_LANDING_WAIT" default:"1500ms"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// BackendConfig holds the two connection credentials of the hosted backend plus client tuning.
type BackendConfig struct {
	URL           string        `envconfig:"PRODUCTDESK_BACKEND_URL" required:"true"`
	AnonKey       string        `envconfig:"PRODUCTDESK_BACKEND_ANON_KEY" required:"true"`
	JWTSecret     string        `envconfig:"PRODUCTDESK_BACKEND_JWT_SECRET"`
	Timeout       time.Duration `envconfig:"PRODUCTDESK_BACKEND_TIMEOUT" default:"30s"`
	RefreshMargin time.Duration `envconfig:"PRODUCTDESK_BACKEND_REFRESH_MARGIN" default:"60s"`
}

// BaseURL returns the backend URL without a trailing slash.
func (b BackendConfig) BaseURL() string {
	return strings.TrimRight(strings.TrimSpace(b.URL), "/")
}

func (b BackendConfig) validate() error {
	u, err := url.Parse(b.BaseURL())
	if err != nil {
		return fmt.Errorf("invalid %s: %w", EnvBackendURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", EnvBackendURL, b.URL)
	}
	if strings.TrimSpace(b.AnonKey) == "" {
		return fmt.Errorf("%s is required", EnvBackendAnonKey)
	}
	return nil
}

type StorageConfig struct {
	Driver        string `envconfig:"PRODUCTDESK_STORAGE_DRIVER" default:"rest"`
	Bucket        string `envconfig:"PRODUCTDESK_STORAGE_BUCKET" default:"products"`
	Prefix        string `envconfig:"PRODUCTDESK_STORAGE_PREFIX" default:"product-images"`
	PublicBaseURL string `envconfig:"PRODUCTDESK_STORAGE_PUBLIC_BASE_URL"`

	S3Endpoint  string `envconfig:"PRODUCTDESK_STORAGE_S3_ENDPOINT"`
	S3AccessKey string `envconfig:"PRODUCTDESK_STORAGE_S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"PRODUCTDESK_STORAGE_S3_SECRET_KEY"`
	S3Region    string `envconfig:"PRODUCTDESK_STORAGE_S3_REGION" default:"us-east-1"`
	S3UseSSL    bool   `envconfig:"PRODUCTDESK_STORAGE_S3_USE_SSL" default:"true"`
}

func (s StorageConfig) validate() error {
	switch strings.ToLower(s.Driver) {
	case StorageDriverREST:
		return nil
	case StorageDriverS3:
		missing := []string{}
		if s.S3Endpoint == "" {
			missing = append(missing, EnvStorageS3Endpoint)
		}
		if s.S3AccessKey == "" {
			missing = append(missing, EnvStorageS3AccessKey)
		}
		if s.S3SecretKey == "" {
			missing = append(missing, EnvStorageS3SecretKey)
		}
		if len(missing) > 0 {
			return fmt.Errorf("storage driver s3 requires %s", strings.Join(missing, ", "))
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
}

type TableConfig struct {
	Driver   string `envconfig:"PRODUCTDESK_TABLE_DRIVER" default:"rest"`
	Products string `envconfig:"PRODUCTDESK_TABLE_PRODUCTS" default:"products"`
}

// UsesDatabase reports whether tables are written through a direct SQL connection.
func (t TableConfig) UsesDatabase() bool {
	d := strings.ToLower(t.Driver)
	return d == TableDriverPostgres || d == TableDriverSQLite
}

func (t TableConfig) validate(db DBConfig) error {
	switch strings.ToLower(t.Driver) {
	case TableDriverREST:
		return nil
	case TableDriverPostgres, TableDriverSQLite:
		if db.DSN == "" {
			return fmt.Errorf("table driver %s requires %s", t.Driver, EnvDBDSN)
		}
		return nil
	default:
		return fmt.Errorf("unsupported table driver %q", t.Driver)
	}
}

type DBConfig struct {
	DSN string `envconfig:"PRODUCTDESK_DB_DSN"`

	MaxOpenConns    int           `envconfig:"PRODUCTDESK_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"PRODUCTDESK_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"PRODUCTDESK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRODUCTDESK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRODUCTDESK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRODUCTDESK_REDIS_ADDR"`
	Password     string        `envconfig:"PRODUCTDESK_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRODUCTDESK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRODUCTDESK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRODUCTDESK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRODUCTDESK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRODUCTDESK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRODUCTDESK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// SessionConfig covers the browser session cookie and the per-browser registry.
type SessionConfig struct {
	CookieName      string        `envconfig:"PRODUCTDESK_SESSION_COOKIE_NAME" default:"pd_session"`
	CookieSecure    bool          `envconfig:"PRODUCTDESK_SESSION_COOKIE_SECURE" default:"false"`
	TTL             time.Duration `envconfig:"PRODUCTDESK_SESSION_TTL" default:"168h"`
	IdleTTL         time.Duration `envconfig:"PRODUCTDESK_SESSION_IDLE_TTL" default:"30m"`
	JanitorInterval time.Duration `envconfig:"PRODUCTDESK_SESSION_JANITOR_INTERVAL" default:"1m"`
	FlashTTL        time.Duration `envconfig:"PRODUCTDESK_FLASH_TTL" default:"10m"`
}

type AuthRateLimitConfig struct {
	LoginWindow      time.Duration `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit  int           `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit     int           `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	SignupWindow     time.Duration `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_SIGNUP_WINDOW" default:"5m"`
	SignupEmailLimit int           `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_SIGNUP_EMAIL_LIMIT" default:"3"`
	SignupIPLimit    int           `envconfig:"PRODUCTDESK_AUTH_RATE_LIMIT_SIGNUP_IP_LIMIT" default:"20"`
}

type SubmissionConfig struct {
	MaxUploadMB int           `envconfig:"PRODUCTDESK_MAX_UPLOAD_MB" default:"5"`
	LockTTL     time.Duration `envconfig:"PRODUCTDESK_SUBMISSION_LOCK_TTL" default:"2m"`
}

// MaxUploadBytes converts the configured megabyte limit to bytes.
func (s SubmissionConfig) MaxUploadBytes() int64 {
	if s.MaxUploadMB <= 0 {
		return 0
	}
	return int64(s.MaxUploadMB) << 20
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PRODUCTDESK_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PRODUCTDESK_AUTO_MIGRATE" default:"false"`
}
