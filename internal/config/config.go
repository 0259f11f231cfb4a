// Package config loads server settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	MailTransportLog  = "log"
	MailTransportSMTP = "smtp"
	MailTransportAMQP = "amqp"

	AvatarBackendSQLite = "sqlite"
	AvatarBackendS3     = "s3"
)

// Config holds runtime settings for the server and the mail worker.
type Config struct {
	Port         string `env:"PORT" envDefault:"8080"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"quill.db"`
	// BaseURL is used to build absolute links in outgoing email.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	JWTSecret string `env:"JWT_SECRET,required"`
	// Default to secure cookies; disable only for local development.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`
	BcryptCost   int  `env:"BCRYPT_COST" envDefault:"12"`

	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	RememberTTL time.Duration `env:"REMEMBER_TTL" envDefault:"720h"`

	ResetTokenTTL       time.Duration `env:"RESET_TOKEN_TTL" envDefault:"30m"`
	ResetTokenSingleUse bool          `env:"RESET_TOKEN_SINGLE_USE" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// RedisURL, when set, moves consumed reset tokens and rate limiting
	// into Redis so several server instances share them.
	RedisURL string `env:"REDIS_URL"`

	Mail      MailConfig      `envPrefix:"MAIL_"`
	Avatar    AvatarConfig    `envPrefix:"AVATAR_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`
}

type MailConfig struct {
	Transport string `env:"TRANSPORT" envDefault:"log"`
	From      string `env:"FROM" envDefault:"noreply@localhost"`

	SMTPHost     string `env:"SMTP_HOST" envDefault:"smtp.googlemail.com"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPStartTLS bool   `env:"SMTP_STARTTLS" envDefault:"true"`

	AMQPURL   string `env:"AMQP_URL"`
	AMQPQueue string `env:"AMQP_QUEUE" envDefault:"outgoing_mail"`
}

type AvatarConfig struct {
	Backend     string `env:"BACKEND" envDefault:"sqlite"`
	MaxBytes    int    `env:"MAX_BYTES" envDefault:"5242880"`
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint  string `env:"S3_ENDPOINT"`
	S3AccessKey string `env:"S3_ACCESS_KEY"`
	S3SecretKey string `env:"S3_SECRET_KEY"`
}

// RateLimitConfig throttles login and reset-request attempts per client IP.
type RateLimitConfig struct {
	Attempts int           `env:"ATTEMPTS" envDefault:"10"`
	Window   time.Duration `env:"WINDOW" envDefault:"1m"`
}

// WorkerConfig holds the settings the mail worker needs. It reads the
// same variables as Config but does not require the JWT secret.
type WorkerConfig struct {
	LogLevel  string     `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string     `env:"LOG_FORMAT" envDefault:"text"`
	Mail      MailConfig `envPrefix:"MAIL_"`
}

// Load reads .env (if present) and the process environment, then validates.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorker reads the mail worker's settings.
func LoadWorker() (*WorkerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg := &WorkerConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	var errs []error
	if cfg.Mail.AMQPURL == "" {
		errs = append(errs, errors.New("MAIL_AMQP_URL is required"))
	}
	if cfg.Mail.SMTPHost == "" || cfg.Mail.SMTPPort <= 0 {
		errs = append(errs, errors.New("MAIL_SMTP_HOST and MAIL_SMTP_PORT are required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

// Validate checks value ranges and the settings each selected backend needs.
func (c *Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if c.SessionTTL <= 0 || c.RememberTTL <= 0 || c.ResetTokenTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL, REMEMBER_TTL and RESET_TOKEN_TTL must be positive"))
	}
	if c.RateLimit.Attempts < 1 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_ATTEMPTS and RATE_LIMIT_WINDOW must be positive"))
	}
	if c.Avatar.MaxBytes <= 0 {
		errs = append(errs, errors.New("AVATAR_MAX_BYTES must be positive"))
	}

	switch c.Mail.Transport {
	case MailTransportLog:
	case MailTransportSMTP:
		if c.Mail.SMTPHost == "" || c.Mail.SMTPPort <= 0 {
			errs = append(errs, errors.New("MAIL_SMTP_HOST and MAIL_SMTP_PORT are required for smtp transport"))
		}
	case MailTransportAMQP:
		if c.Mail.AMQPURL == "" {
			errs = append(errs, errors.New("MAIL_AMQP_URL is required for amqp transport"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown MAIL_TRANSPORT %q", c.Mail.Transport))
	}

	switch c.Avatar.Backend {
	case AvatarBackendSQLite:
	case AvatarBackendS3:
		if c.Avatar.S3Bucket == "" {
			errs = append(errs, errors.New("AVATAR_S3_BUCKET is required for s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AVATAR_BACKEND %q", c.Avatar.Backend))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
