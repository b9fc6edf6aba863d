// Package config loads the simple-auth server configuration.
//
// Settings come from environment variables, optionally seeded from a .env file, and are
// bound to structs with cleanenv tags. Durations use ISO 8601 ("PT15M", "PT1H") and
// also accept Go syntax ("15m").
//
//	cfg, err := config.Load()
//	if err != nil {
//		slog.Error("Failed to load configuration", "error", err)
//		os.Exit(1)
//	}
//	lockout, _ := cfg.Login.ParseLockoutDuration()
//
// Environment variables:
//   - JWT_SECRET, JWT_ACCESS_TOKEN_TTL (3600), JWT_REFRESH_TOKEN_TTL (604800), JWT_ISSUER (oauth-server)
//   - LOGIN_MAX_FAILED_ATTEMPTS (5), LOGIN_LOCKOUT_DURATION (PT15M), LOGIN_KEY_BY_IP, LOGIN_CAPTCHA_REQUIRED
//   - THROTTLE_MAX_REQUESTS (30), THROTTLE_WINDOW (PT1H), THROTTLE_ALLOWLIST, THROTTLE_DENYLIST
//   - RATELIMIT_GLOBAL_ENABLED, RATELIMIT_GLOBAL_CAPACITY, RATELIMIT_GLOBAL_REFILL_RATE
//   - CAPTCHA_TTL (PT5M), SWEEP_INTERVAL (PT1H)
//   - USER_STORE (memory|postgres), IDM_PG_HOST/PORT/DATABASE/USER/PASSWORD/SCHEMA
//   - REDIS_ADDR, REDIS_PASSWORD, REDIS_DB
//   - SENTRY_DSN, ADMIN_USERNAME, ADMIN_PASSWORD, ADMIN_EMAIL
//
// Never log secrets read from here.
package config
