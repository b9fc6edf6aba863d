package config

import "time"

// LoginConfig controls brute-force protection on the login endpoint
type LoginConfig struct {
	// MaxFailedAttempts is the number of consecutive failures that locks a key
	MaxFailedAttempts int `env:"LOGIN_MAX_FAILED_ATTEMPTS" env-default:"5"`

	// LockoutDuration is measured from the last failure (ISO 8601, e.g. "PT15M")
	LockoutDuration string `env:"LOGIN_LOCKOUT_DURATION" env-default:"PT15M"`

	// KeyByIP tracks attempts per username and client IP instead of per username
	KeyByIP bool `env:"LOGIN_KEY_BY_IP" env-default:"false"`

	// CaptchaRequired makes login demand a solved captcha
	CaptchaRequired bool `env:"LOGIN_CAPTCHA_REQUIRED" env-default:"false"`

	// RegistrationDefaultRole is assigned to self-registered users
	RegistrationDefaultRole string `env:"LOGIN_REGISTRATION_DEFAULT_ROLE" env-default:"USER"`
}

// ParseLockoutDuration parses the lockout window
func (l LoginConfig) ParseLockoutDuration() (time.Duration, error) {
	return ParseDuration(l.LockoutDuration)
}

func (l LoginConfig) validate() ValidationErrors {
	errs := CollectErrors(RequirePositive("login_max_failed_attempts", l.MaxFailedAttempts))
	if d, err := l.ParseLockoutDuration(); err != nil {
		errs = append(errs, ValidationError{Field: "login_lockout_duration", Message: err.Error()})
	} else if verr := RequirePositiveDuration("login_lockout_duration", d); verr != nil {
		errs = append(errs, *verr)
	}
	return errs
}
