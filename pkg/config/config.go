package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	UserStoreMemory   = "memory"
	UserStorePostgres = "postgres"
)

// Config is the full auth server configuration read from the environment
type Config struct {
	JWT       JWTConfig
	Login     LoginConfig
	Throttle  ThrottleConfig
	RateLimit RateLimitConfig
	Database  DatabaseConfig
	Redis     RedisConfig

	CaptchaTTL    string `env:"CAPTCHA_TTL" env-default:"PT5M"`
	SweepInterval string `env:"SWEEP_INTERVAL" env-default:"PT1H"`
	UserStore     string `env:"USER_STORE" env-default:"memory"`
	SentryDSN     string `env:"SENTRY_DSN"`

	// Bootstrap admin, created at startup when both are set
	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminEmail    string `env:"ADMIN_EMAIL" env-default:"admin@example.com"`
}

// Load reads an optional .env file, then the environment, and validates the result
func Load() (Config, error) {
	LoadEnvFile()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks every section and reports all problems at once
func (c Config) Validate() error {
	var errs ValidationErrors
	errs = append(errs, c.JWT.validate()...)
	errs = append(errs, c.Login.validate()...)
	errs = append(errs, c.Throttle.validate()...)
	errs = append(errs, c.RateLimit.validate()...)
	errs = append(errs, CollectErrors(
		RequireOneOf("user_store", c.UserStore, []string{UserStoreMemory, UserStorePostgres}),
	)...)
	for field, value := range map[string]string{"captcha_ttl": c.CaptchaTTL, "sweep_interval": c.SweepInterval} {
		d, err := ParseDuration(value)
		if err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error()})
			continue
		}
		if verr := RequirePositiveDuration(field, d); verr != nil {
			errs = append(errs, *verr)
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ParseCaptchaTTL parses the captcha lifetime
func (c Config) ParseCaptchaTTL() (time.Duration, error) {
	return ParseDuration(c.CaptchaTTL)
}

// ParseSweepInterval parses the cleanup interval
func (c Config) ParseSweepInterval() (time.Duration, error) {
	return ParseDuration(c.SweepInterval)
}
