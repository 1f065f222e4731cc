// Package config loads service configuration from an optional YAML file overlaid
// with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Mail      MailConfig      `yaml:"mail"`
	Broadcast BroadcastConfig `yaml:"broadcast"`
	Cache     CacheConfig     `yaml:"cache"`
}

type HTTPConfig struct {
	Port               string   `yaml:"port" env:"PORT"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type StorageConfig struct {
	// Backend is memory, postgres or sqlite.
	Backend     string `yaml:"backend" env:"STORAGE_BACKEND"`
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"SQLITE_PATH"`

	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env:"IDEMPOTENCY_TTL"`
}

type AuthConfig struct {
	// Mode is "jwt" (bearer tokens checked against JWKS) or "dev", where callers
	// name themselves with the X-Debug-Subject header.
	Mode       string    `yaml:"mode" env:"AUTH_MODE"`
	JWT        JWTConfig `yaml:"jwt"`
	DevSubject string    `yaml:"dev_subject" env:"DEV_SUBJECT"`
	// AdminSubjects restricts /admin routes when non-empty.
	AdminSubjects []string `yaml:"admin_subjects" env:"ADMIN_SUBJECTS" envSeparator:","`
}

// JWTConfig configures JWT verification against a JWKS endpoint.
type JWTConfig struct {
	Issuer   string `yaml:"issuer" env:"JWT_ISSUER"`
	Audience string `yaml:"audience" env:"JWT_AUDIENCE"`
	JWKSURL  string `yaml:"jwks_url" env:"JWT_JWKS_URL"`

	ClockSkew              time.Duration `yaml:"clock_skew" env:"JWT_CLOCK_SKEW"`
	JWKSRefreshInterval    time.Duration `yaml:"jwks_refresh_interval" env:"JWT_JWKS_REFRESH_INTERVAL"`
	JWKSMinRefreshInterval time.Duration `yaml:"jwks_min_refresh_interval" env:"JWT_JWKS_MIN_REFRESH_INTERVAL"`

	HTTPTimeout time.Duration `yaml:"http_timeout" env:"JWT_HTTP_TIMEOUT"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type MailConfig struct {
	// Backend is log, smtp or ses.
	Backend string     `yaml:"backend" env:"MAIL_BACKEND"`
	From    string     `yaml:"from" env:"MAIL_FROM"`
	SMTP    SMTPConfig `yaml:"smtp"`
	SES     SESConfig  `yaml:"ses"`
}

type SMTPConfig struct {
	Host     string `yaml:"host" env:"SMTP_HOST"`
	Port     int    `yaml:"port" env:"SMTP_PORT"`
	Username string `yaml:"username" env:"SMTP_USERNAME"`
	Password string `yaml:"password" env:"SMTP_PASSWORD"`
	// TLS is none, starttls or implicit.
	TLS string `yaml:"tls" env:"SMTP_TLS"`
}

type SESConfig struct {
	Region          string `yaml:"region" env:"SES_REGION"`
	AccessKeyID     string `yaml:"access_key_id" env:"SES_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" env:"SES_SECRET_ACCESS_KEY"`
}

type BroadcastConfig struct {
	// RatePerSecond paces broadcast sends; zero means unpaced.
	RatePerSecond  float64 `yaml:"rate_per_second" env:"BROADCAST_RATE_PER_SECOND"`
	DefaultSubject string  `yaml:"default_subject" env:"BROADCAST_DEFAULT_SUBJECT"`
}

type CacheConfig struct {
	// RedisURL enables the campaign list cache when set.
	RedisURL    string        `yaml:"redis_url" env:"REDIS_URL"`
	CampaignTTL time.Duration `yaml:"campaign_ttl" env:"CAMPAIGN_CACHE_TTL"`
}

// Default returns the configuration used for local development.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Port: "8080"},
		Storage: StorageConfig{
			Backend:        "memory",
			SQLitePath:     "portal.db",
			IdempotencyTTL: 24 * time.Hour,
		},
		Auth: AuthConfig{
			Mode: "jwt",
			JWT: JWTConfig{
				ClockSkew:              30 * time.Second,
				JWKSRefreshInterval:    5 * time.Minute,
				JWKSMinRefreshInterval: 10 * time.Second,
				HTTPTimeout:            5 * time.Second,
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Mail: MailConfig{
			Backend: "log",
			From:    "no-reply@localhost",
			SMTP:    SMTPConfig{Port: 587, TLS: "starttls"},
			SES:     SESConfig{Region: "us-east-1"},
		},
		Broadcast: BroadcastConfig{DefaultSubject: "Mensagem do hemocentro"},
		Cache:     CacheConfig{CampaignTTL: time.Minute},
	}
}

// Load starts from Default, applies the YAML file at path (if non-empty) and then
// any environment variables that are set.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Auth.Mode = strings.ToLower(strings.TrimSpace(c.Auth.Mode))
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Mail.Backend = strings.ToLower(strings.TrimSpace(c.Mail.Backend))
	c.Mail.SMTP.TLS = strings.ToLower(strings.TrimSpace(c.Mail.SMTP.TLS))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.HTTP.CORSAllowedOrigins = trimAll(c.HTTP.CORSAllowedOrigins)
	c.Auth.AdminSubjects = trimAll(c.Auth.AdminSubjects)
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.HTTP.Port) == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres"))
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("SQLITE_PATH is required when STORAGE_BACKEND=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND must be memory, postgres or sqlite (got %q)", c.Storage.Backend))
	}

	switch c.Auth.Mode {
	case "dev":
	case "jwt":
		if c.Auth.JWT.Issuer == "" || c.Auth.JWT.Audience == "" || c.Auth.JWT.JWKSURL == "" {
			errs = append(errs, errors.New("JWT_ISSUER, JWT_AUDIENCE and JWT_JWKS_URL are required when AUTH_MODE=jwt"))
		}
		if c.Auth.JWT.ClockSkew < 0 || c.Auth.JWT.JWKSRefreshInterval < 0 || c.Auth.JWT.JWKSMinRefreshInterval < 0 {
			errs = append(errs, errors.New("JWT durations must not be negative"))
		}
	default:
		errs = append(errs, fmt.Errorf("AUTH_MODE must be jwt or dev (got %q)", c.Auth.Mode))
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json (got %q)", c.Logging.Format))
	}

	if strings.TrimSpace(c.Mail.From) == "" {
		errs = append(errs, errors.New("MAIL_FROM must not be empty"))
	}
	switch c.Mail.Backend {
	case "log", "ses":
	case "smtp":
		if c.Mail.SMTP.Host == "" {
			errs = append(errs, errors.New("SMTP_HOST is required when MAIL_BACKEND=smtp"))
		}
		if c.Mail.SMTP.Port <= 0 || c.Mail.SMTP.Port > 65535 {
			errs = append(errs, fmt.Errorf("SMTP_PORT must be a valid port (got %d)", c.Mail.SMTP.Port))
		}
		switch c.Mail.SMTP.TLS {
		case "none", "starttls", "implicit":
		default:
			errs = append(errs, fmt.Errorf("SMTP_TLS must be none, starttls or implicit (got %q)", c.Mail.SMTP.TLS))
		}
	default:
		errs = append(errs, fmt.Errorf("MAIL_BACKEND must be log, smtp or ses (got %q)", c.Mail.Backend))
	}

	if c.Broadcast.RatePerSecond < 0 {
		errs = append(errs, errors.New("BROADCAST_RATE_PER_SECOND must not be negative"))
	}
	if c.Cache.CampaignTTL < 0 {
		errs = append(errs, errors.New("CAMPAIGN_CACHE_TTL must not be negative"))
	}

	return errors.Join(errs...)
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
