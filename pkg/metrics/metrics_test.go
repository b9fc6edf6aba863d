package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.LoginOutcome(OutcomeSuccess)
	m.LoginOutcome(OutcomeInvalidCredentials)
	m.LoginOutcome(OutcomeInvalidCredentials)
	m.Lockout()
	m.Throttled("ip")
	m.TokenIssued("access")
	m.SweepEvicted("login_attempts", 3)
	m.SweepEvicted("login_attempts", 0)
	m.ServerError(http.StatusInternalServerError)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeInvalidCredentials)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.throttled.WithLabelValues("ip")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("access")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.sweepEvictions.WithLabelValues("login_attempts")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpErrors.WithLabelValues("500")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.LoginOutcome(OutcomeSuccess)
		m.Lockout()
		m.Throttled("global")
		m.TokenIssued("refresh")
		m.SweepEvicted("captcha", 1)
		m.ServerError(502)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Lockout()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "simple_auth_lockouts_total 1")
}
