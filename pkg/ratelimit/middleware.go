package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// Config holds rate limiting configuration
type Config struct {
	// Global token bucket shared by every client
	GlobalEnabled    bool
	GlobalCapacity   int     // Max burst
	GlobalRefillRate float64 // Requests per second

	// Headers to include in response
	IncludeHeaders bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		GlobalEnabled:    false,
		GlobalCapacity:   1000,
		GlobalRefillRate: 1000.0 / 60.0, // ~16.67 req/s
		IncludeHeaders:   true,
	}
}

// RejectHook is called for every refused request with the limit that refused it
type RejectHook func(r *http.Request, limitType string)

// Middleware holds the rate limiting middleware state
type Middleware struct {
	config   *Config
	global   *rate.Limiter
	throttle *Throttle
	resolver *IPResolver
	onReject RejectHook
}

// MiddlewareOption configures a Middleware
type MiddlewareOption func(*Middleware)

// WithRejectHook observes refused requests, e.g. for metrics
func WithRejectHook(hook RejectHook) MiddlewareOption {
	return func(m *Middleware) {
		m.onReject = hook
	}
}

// WithTrustedProxies lets forwarding headers from these peers name the client
func WithTrustedProxies(proxies ...string) MiddlewareOption {
	return func(m *Middleware) {
		m.resolver = NewIPResolver(proxies...)
	}
}

// NewMiddleware creates a new rate limiting middleware. throttle may be nil to apply
// only the global limit.
func NewMiddleware(config *Config, throttle *Throttle, opts ...MiddlewareOption) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{
		config:   config,
		throttle: throttle,
		resolver: NewIPResolver(),
	}

	if config.GlobalEnabled {
		m.global = rate.NewLimiter(rate.Limit(config.GlobalRefillRate), config.GlobalCapacity)
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler returns the rate limiting middleware handler
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.global != nil && !m.global.Allow() {
			m.rateLimitExceeded(w, r, "global", 1)
			return
		}

		ip := m.resolver.Resolve(r)
		r = r.WithContext(WithClientIP(r.Context(), ip))

		if m.throttle != nil && ip != "" {
			if !m.throttle.IsAllowed(ip) {
				m.rateLimitExceeded(w, r, "ip", int(math.Ceil(m.throttle.RetryAfter(ip).Seconds())))
				return
			}
			if m.config.IncludeHeaders {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.throttle.MaxRequests()))
				w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(m.throttle.Remaining(ip)))
			}
		}

		next.ServeHTTP(w, r)
	})
}

// rateLimitExceeded handles rate limit exceeded responses
func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, retryAfter int) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", ClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)
	if m.onReject != nil {
		m.onReject(r, limitType)
	}

	if retryAfter < 1 {
		retryAfter = 60
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)

	fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later.","type":%q}`, limitType)
}
