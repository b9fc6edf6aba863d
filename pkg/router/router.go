// Package router mounts the simple-auth HTTP surface on a chi router.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tendant/simple-auth/pkg/admin"
	"github.com/tendant/simple-auth/pkg/auth"
	"github.com/tendant/simple-auth/pkg/captcha"
	"github.com/tendant/simple-auth/pkg/client"
	"github.com/tendant/simple-auth/pkg/metrics"
	"github.com/tendant/simple-auth/pkg/observability"
	"github.com/tendant/simple-auth/pkg/ratelimit"
)

const (
	AuthPrefix    = "/api/auth"
	CaptchaPrefix = "/api/captcha"
	UsersPrefix   = "/api/users"
	AdminPrefix   = "/api/admin/security"
	MetricsPath   = "/metrics"

	DefaultAdminRole = "ADMIN"
)

// Config holds all the dependencies and handlers needed to setup routes
type Config struct {
	AuthHandle    *auth.Handle
	CaptchaHandle *captcha.Handle
	AdminHandle   *admin.SecurityHandle // optional

	// Bearer authentication
	Tokens client.TokenValidator
	Users  client.UserFinder

	// Per-IP throttle in front of the login, registration and captcha endpoints
	RateLimit *ratelimit.Middleware

	Metrics        *metrics.Metrics
	MetricsHandler http.Handler // optional, served at /metrics to admins

	AdminRole string
}

// SetupRoutes mounts all routes on the provided router
func SetupRoutes(router chi.Router, cfg Config) {
	if cfg.AdminRole == "" {
		cfg.AdminRole = DefaultAdminRole
	}

	router.Use(observability.RecoverMiddleware)
	router.Use(observability.ServerErrors(cfg.Metrics))
	router.Use(client.Authenticator(cfg.Tokens, cfg.Users))

	throttled := func(r chi.Router) chi.Router {
		if cfg.RateLimit == nil {
			return r
		}
		return r.With(cfg.RateLimit.Handler)
	}

	throttled(router).Route(CaptchaPrefix, cfg.CaptchaHandle.RegisterRoutes)
	throttled(router).Route(AuthPrefix, cfg.AuthHandle.RegisterRoutes)
	router.Route(UsersPrefix, cfg.AuthHandle.RegisterUserRoutes)

	if cfg.AdminHandle != nil {
		router.Route(AdminPrefix, func(r chi.Router) {
			r.Use(client.RequireRole(cfg.AdminRole))
			cfg.AdminHandle.RegisterRoutes(r)
		})
	}

	if cfg.MetricsHandler != nil {
		router.With(client.RequireRole(cfg.AdminRole)).Method(http.MethodGet, MetricsPath, cfg.MetricsHandler)
	}
}
