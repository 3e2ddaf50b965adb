// Package config loads the TradeFlow service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the complete service configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Google   GoogleConfig
	Limits   LimitsConfig
	Logging  LoggingConfig
	Quota    QuotaConfig
}

type ServerConfig struct {
	Addr            string        `env:"HTTP_ADDR,default=:3000"`
	BaseURL         string        `env:"BASE_URL,default=http://localhost:3000"`
	AllowedOrigins  string        `env:"CORS_ALLOWED_ORIGINS,default=http://localhost:3000"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=30s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=60s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=10"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`
	QueryTimeout    time.Duration `env:"DB_QUERY_TIMEOUT,default=10s"`
}

// RedisConfig is optional; when URL is empty OAuth state lives in Postgres.
type RedisConfig struct {
	URL string `env:"REDIS_URL"`
}

type AuthConfig struct {
	Secret     string        `env:"AUTH_SECRET"`
	SessionTTL time.Duration `env:"SESSION_TTL,default=168h"`
	CookieName string        `env:"SESSION_COOKIE_NAME,default=tradeflow_session"`
}

type GoogleConfig struct {
	ClientID     string `env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
}

type LimitsConfig struct {
	RateLimitRPS   int   `env:"RATE_LIMIT_RPS,default=20"`
	RateLimitBurst int   `env:"RATE_LIMIT_BURST,default=40"`
	UploadMaxBytes int64 `env:"UPLOAD_MAX_BYTES,default=10485760"`
	JSONMaxBytes   int64 `env:"JSON_MAX_BYTES,default=1048576"`
}

type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=json"`
}

type QuotaConfig struct {
	ResetSchedule string `env:"QUOTA_RESET_SCHEDULE,default=0 0 1 * *"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	envFile := os.Getenv("TRADEFLOW_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the values that have no safe default.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if len(c.Auth.Secret) < 32 {
		return errors.New("AUTH_SECRET must be at least 32 characters")
	}
	if c.Auth.SessionTTL <= 0 {
		return errors.New("SESSION_TTL must be positive")
	}
	u, err := url.Parse(c.Server.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BASE_URL %q must be an absolute URL", c.Server.BaseURL)
	}
	if c.Limits.UploadMaxBytes <= 0 {
		return errors.New("UPLOAD_MAX_BYTES must be positive")
	}
	return nil
}

// GoogleEnabled reports whether the Google connect flow can be offered.
func (c *Config) GoogleEnabled() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// Origins returns the CORS allowlist.
func (c *Config) Origins() []string {
	return parseCSV(c.Server.AllowedOrigins)
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
