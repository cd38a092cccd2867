package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "TUTORLINK"

	AppEnvDev  = "dev"
	AppEnvProd = "production"

	EnvAppEnv = "TUTORLINK_APP_ENV"
	EnvDBDSN  = "TUTORLINK_DB_DSN"
	EnvDBHost = "TUTORLINK_DB_HOST"
	EnvDBUser = "TUTORLINK_DB_USER"
	EnvDBName = "TUTORLINK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Marketplace  MarketplaceConfig
	Stripe       StripeConfig
	Meet         MeetConfig
	FeatureFlags FeatureFlagsConfig
	Eventing     EventingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
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
	Env          string `envconfig:"TUTORLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"TUTORLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TUTORLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TUTORLINK_LOG_WARN_STACK" default:"false"`

	CORSOrigins []string `envconfig:"TUTORLINK_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TUTORLINK_DB_DSN"`
	Driver string `envconfig:"TUTORLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TUTORLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"TUTORLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TUTORLINK_DB_USER"`
	LegacyPassword string `envconfig:"TUTORLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"TUTORLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"TUTORLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TUTORLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TUTORLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TUTORLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TUTORLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TUTORLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TUTORLINK_REDIS_ADDR"`
	Password     string        `envconfig:"TUTORLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"TUTORLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TUTORLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TUTORLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TUTORLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TUTORLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TUTORLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"TUTORLINK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"TUTORLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"TUTORLINK_JWT_EXPIRATION_MINUTES" default:"60"`
}

// MarketplaceConfig carries the money and scheduling knobs of the booking core.
type MarketplaceConfig struct {
	PlatformFeePercent int `envconfig:"TUTORLINK_PLATFORM_FEE_PERCENT" default:"10"`
	PayoutHoldDays     int `envconfig:"TUTORLINK_PAYOUT_HOLD_DAYS" default:"7"`
	SlotStepMinutes    int `envconfig:"TUTORLINK_SLOT_STEP_MINUTES" default:"30"`
}

// PayoutHold returns the hold period applied to freshly created payouts.
func (m MarketplaceConfig) PayoutHold() time.Duration {
	if m.PayoutHoldDays <= 0 {
		return 0
	}
	return time.Duration(m.PayoutHoldDays) * 24 * time.Hour
}

type StripeConfig struct {
	APIKey string `envconfig:"TUTORLINK_STRIPE_API_KEY"`
	Secret string `envconfig:"TUTORLINK_STRIPE_SECRET"`
	Env    string `envconfig:"TUTORLINK_STRIPE_ENV" default:"test"`
	// PayoutAccountTemplate formats a tutor id into a connected-account id
	// until tutors carry their own gateway account records.
	PayoutAccountTemplate string `envconfig:"TUTORLINK_STRIPE_PAYOUT_ACCOUNT_TEMPLATE" default:"acct_%s"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type MeetConfig struct {
	APIKey  string        `envconfig:"TUTORLINK_MEET_API_KEY"`
	BaseURL string        `envconfig:"TUTORLINK_MEET_BASE_URL"`
	Timeout time.Duration `envconfig:"TUTORLINK_MEET_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"TUTORLINK_AUTO_MIGRATE" default:"false"`
}

type EventingConfig struct {
	IdempotencyTTL time.Duration `envconfig:"TUTORLINK_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"TUTORLINK_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	DomainTopic        string `envconfig:"TUTORLINK_PUBSUB_DOMAIN_TOPIC" default:"tl-domain-events"`
	DomainSubscription string `envconfig:"TUTORLINK_PUBSUB_DOMAIN_SUBSCRIPTION" default:"tl-domain-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TUTORLINK_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TUTORLINK_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TUTORLINK_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"TUTORLINK_CRON_INTERVAL" default:"1h"`
	LockTTL  time.Duration `envconfig:"TUTORLINK_CRON_LOCK_TTL" default:"55m"`
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
