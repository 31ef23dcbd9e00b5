package config

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	pkgconfig "github.com/evento-ems/access/pkg/config"
	"github.com/evento-ems/access/pkg/database"
)

const defaultJWTSecret = "change-this-to-a-secure-secret"

// minJWTSecretLength applies outside development.
const minJWTSecretLength = 32

// Config holds all configuration for the access service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort            int           `env:"HTTP_PORT" envDefault:"8080"`
	HTTPShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"evento"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"evento_secret"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"evento_access"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns           int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns           int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime    time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	DBSlowQueryThreshold time.Duration `env:"DB_SLOW_QUERY_THRESHOLD" envDefault:"200ms"`

	// Redis backs the session denylist.
	RedisHost                string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort                int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword            string `env:"REDIS_PASSWORD"`
	RedisDB                  int    `env:"REDIS_DB" envDefault:"0"`
	SessionRevocationEnabled bool   `env:"SESSION_REVOCATION_ENABLED" envDefault:"true"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Sessions
	JWTSecret           string        `env:"JWT_SECRET" envDefault:"change-this-to-a-secure-secret"`
	SessionTTL          time.Duration `env:"SESSION_TTL" envDefault:"0"`
	SessionCookieSecure bool          `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// Password reset
	ResetTokenTTL      time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	ResetURLBase       string        `env:"RESET_URL_BASE" envDefault:"http://localhost:3000/reset-password"`
	ResetSweepInterval time.Duration `env:"RESET_SWEEP_INTERVAL" envDefault:"15m"`

	BcryptCost             int `env:"BCRYPT_COST" envDefault:"12"`
	AuthRateLimitPerMinute int `env:"AUTH_RATE_LIMIT_PER_MINUTE" envDefault:"10"`

	// CORS
	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from the process environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load access config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.LoadFrom(cfg, vars); err != nil {
		return nil, fmt.Errorf("load access config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// Validate checks ranges and, outside development, secret strength.
func (c *Config) Validate() error {
	var errs []error

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP port: %d", c.HTTPPort))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost))
	}
	if c.SessionTTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must not be negative"))
	}
	if c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("RESET_TOKEN_TTL must be positive"))
	}
	if c.ResetSweepInterval < 0 {
		errs = append(errs, errors.New("RESET_SWEEP_INTERVAL must not be negative"))
	}
	if c.AuthRateLimitPerMinute < 1 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT_PER_MINUTE must be at least 1"))
	}
	if c.ResetURLBase == "" {
		errs = append(errs, errors.New("RESET_URL_BASE must be set"))
	}

	if !c.IsDevelopment() {
		if c.JWTSecret == defaultJWTSecret {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be explicitly set via environment variable in %q mode", c.Environment))
		} else if len(c.JWTSecret) < minJWTSecretLength {
			errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters long, got %d", minJWTSecretLength, len(c.JWTSecret)))
		}
	}

	return errors.Join(errs...)
}

// Postgres returns the connection pool settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:               c.PostgresHost,
		Port:               c.PostgresPort,
		User:               c.PostgresUser,
		Password:           c.PostgresPass,
		DBName:             c.PostgresDB,
		SSLMode:            c.PostgresSSL,
		MaxConns:           c.DBMaxConns,
		MinConns:           c.DBMinConns,
		MaxConnLifetime:    c.DBMaxConnLifetime,
		MaxConnIdleTime:    c.DBMaxConnIdleTime,
		SlowQueryThreshold: c.DBSlowQueryThreshold,
	}
}

// Redis returns the Redis client settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		DialTimeout: 5 * time.Second,
	}
}
