package config

import "time"

// ThrottleConfig is the per-IP fixed-window throttle guarding the unauthenticated endpoints
type ThrottleConfig struct {
	MaxRequests int      `env:"THROTTLE_MAX_REQUESTS" env-default:"30"`
	Window      string   `env:"THROTTLE_WINDOW" env-default:"PT1H"`
	Allowlist   []string `env:"THROTTLE_ALLOWLIST" env-separator:","`
	Denylist    []string `env:"THROTTLE_DENYLIST" env-separator:","`

	// Peers (IPs or CIDRs) whose X-Forwarded-For / X-Real-IP headers are believed
	TrustedProxies []string `env:"THROTTLE_TRUSTED_PROXIES" env-separator:","`
}

// ParseWindow parses the counter window
func (t ThrottleConfig) ParseWindow() (time.Duration, error) {
	return ParseDuration(t.Window)
}

// RateLimitConfig is the optional process-wide token bucket in front of the throttle
type RateLimitConfig struct {
	GlobalEnabled    bool    `env:"RATELIMIT_GLOBAL_ENABLED" env-default:"false"`
	GlobalCapacity   int     `env:"RATELIMIT_GLOBAL_CAPACITY" env-default:"1000"`
	GlobalRefillRate float64 `env:"RATELIMIT_GLOBAL_REFILL_RATE" env-default:"16.67"` // tokens per second
	IncludeHeaders   bool    `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`
}

func (t ThrottleConfig) validate() ValidationErrors {
	errs := CollectErrors(RequirePositive("throttle_max_requests", t.MaxRequests))
	if d, err := t.ParseWindow(); err != nil {
		errs = append(errs, ValidationError{Field: "throttle_window", Message: err.Error()})
	} else if verr := RequirePositiveDuration("throttle_window", d); verr != nil {
		errs = append(errs, *verr)
	}
	return errs
}

func (r RateLimitConfig) validate() ValidationErrors {
	if !r.GlobalEnabled {
		return nil
	}
	errs := CollectErrors(RequirePositive("ratelimit_global_capacity", r.GlobalCapacity))
	if r.GlobalRefillRate <= 0 {
		errs = append(errs, ValidationError{Field: "ratelimit_global_refill_rate", Message: "must be positive"})
	}
	return errs
}
