package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is empty because every field carries its fully-qualified env name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "TRADERSSQUARE_DB_DSN"
	EnvDBHost = "TRADERSSQUARE_DB_HOST"
	EnvDBUser = "TRADERSSQUARE_DB_USER"
	EnvDBName = "TRADERSSQUARE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Stripe       StripeConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRADERSSQUARE_APP_ENV" required:"true"`
	Port         string `envconfig:"TRADERSSQUARE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TRADERSSQUARE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRADERSSQUARE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TRADERSSQUARE_DB_DSN"`
	Driver string `envconfig:"TRADERSSQUARE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TRADERSSQUARE_DB_HOST"`
	LegacyPort     int    `envconfig:"TRADERSSQUARE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TRADERSSQUARE_DB_USER"`
	LegacyPassword string `envconfig:"TRADERSSQUARE_DB_PASSWORD"`
	LegacyName     string `envconfig:"TRADERSSQUARE_DB_NAME"`
	LegacySSLMode  string `envconfig:"TRADERSSQUARE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TRADERSSQUARE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRADERSSQUARE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRADERSSQUARE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRADERSSQUARE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRADERSSQUARE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TRADERSSQUARE_REDIS_ADDR"`
	Password     string        `envconfig:"TRADERSSQUARE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRADERSSQUARE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRADERSSQUARE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TRADERSSQUARE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TRADERSSQUARE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRADERSSQUARE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRADERSSQUARE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TRADERSSQUARE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TRADERSSQUARE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TRADERSSQUARE_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the configured access token lifetime.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type StripeConfig struct {
	APIKey              string        `envconfig:"TRADERSSQUARE_STRIPE_API_KEY"`
	Secret              string        `envconfig:"TRADERSSQUARE_STRIPE_SECRET"`
	Env                 string        `envconfig:"TRADERSSQUARE_STRIPE_ENV" default:"test"`
	AppID               string        `envconfig:"TRADERSSQUARE_STRIPE_APP_ID" default:"traderssquare"`
	SubscriptionPriceID string        `envconfig:"TRADERSSQUARE_STRIPE_SUBSCRIPTION_PRICE_ID"`
	WebhookEventTTL     time.Duration `envconfig:"TRADERSSQUARE_STRIPE_WEBHOOK_EVENT_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TRADERSSQUARE_AUTO_MIGRATE" default:"false"`
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
