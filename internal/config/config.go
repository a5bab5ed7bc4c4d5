// Package config loads process settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port         string `env:"PORT" env-default:"8080"`
	DatabasePath string `env:"DATABASE_PATH" env-default:"modfusion.db"`
	JWTSecret    string `env:"JWT_SECRET" env-required:"true"`
	// Secure cookies by default; disable only for local development.
	CookieSecure bool   `env:"COOKIE_SECURE" env-default:"true"`
	BcryptCost   int    `env:"BCRYPT_COST" env-default:"12"`
	AdminCode    string `env:"ADMIN_CODE"`
	LogLevel     string `env:"LOG_LEVEL" env-default:"info"`

	Verification Verification
	SMTP         SMTP
	Redis        Redis
	RateLimit    RateLimit
}

// Verification configures the one-time login codes.
type Verification struct {
	OnRegister  bool          `env:"VERIFY_ON_REGISTER" env-default:"true"`
	CodeTTL     time.Duration `env:"CODE_TTL" env-default:"10m"`
	MaxAttempts int           `env:"CODE_MAX_ATTEMPTS" env-default:"5"`
}

// SMTP configures code delivery. An empty host logs codes instead.
type SMTP struct {
	Host       string `env:"SMTP_HOST"`
	Port       int    `env:"SMTP_PORT" env-default:"587"`
	User       string `env:"SMTP_USER"`
	Password   string `env:"SMTP_PASSWORD"`
	From       string `env:"SMTP_FROM" env-default:"no-reply@modfusion.local"`
	RequireTLS bool   `env:"SMTP_REQUIRE_TLS" env-default:"true"`
}

// Redis configures the shared code store. An empty address keeps codes in
// process memory.
type Redis struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" env-default:"0"`
}

// RateLimit bounds login, verify and register requests per client IP.
type RateLimit struct {
	PerMinute float64 `env:"AUTH_RATE_PER_MINUTE" env-default:"10"`
	Burst     int     `env:"AUTH_RATE_BURST" env-default:"5"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges that env tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	if len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 characters for HMAC-SHA256 security"))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost))
	}
	if c.Verification.CodeTTL < 30*time.Second {
		errs = append(errs, fmt.Errorf("CODE_TTL must be at least 30s, got %s", c.Verification.CodeTTL))
	}
	if c.Verification.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("CODE_MAX_ATTEMPTS must be positive, got %d", c.Verification.MaxAttempts))
	}
	if c.RateLimit.PerMinute < 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("AUTH_RATE_PER_MINUTE must be >= 0 and AUTH_RATE_BURST >= 1"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLevel maps LOG_LEVEL onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
