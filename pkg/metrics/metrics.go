// Package metrics exposes Prometheus counters for authentication and throttling events.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "simple_auth"

// Login outcomes
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeLocked             = "locked"
	OutcomeCaptchaInvalid     = "captcha_invalid"
	OutcomeError              = "error"
)

type Metrics struct {
	logins         *prometheus.CounterVec
	lockouts       prometheus.Counter
	throttled      *prometheus.CounterVec
	tokensIssued   *prometheus.CounterVec
	sweepEvictions *prometheus.CounterVec
	httpErrors     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lockouts_total",
			Help:      "Login keys that reached the failure threshold.",
		}),
		throttled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "throttled_requests_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"type"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Issued tokens by type.",
		}, []string{"type"}),
		sweepEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_evictions_total",
			Help:      "Entries evicted by the periodic sweeper.",
		}, []string{"task"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_server_errors_total",
			Help:      "Responses with a 5xx status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.logins, m.lockouts, m.throttled, m.tokensIssued, m.sweepEvictions, m.httpErrors)
	return m
}

func (m *Metrics) LoginOutcome(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Lockout() {
	if m == nil {
		return
	}
	m.lockouts.Inc()
}

func (m *Metrics) Throttled(limitType string) {
	if m == nil {
		return
	}
	m.throttled.WithLabelValues(limitType).Inc()
}

func (m *Metrics) TokenIssued(tokenType string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) SweepEvicted(task string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepEvictions.WithLabelValues(task).Add(float64(n))
}

func (m *Metrics) ServerError(status int) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
