package ratelimit

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_ThrottlesPerIP(t *testing.T) {
	var rejected []string
	m := NewMiddleware(DefaultConfig(), NewThrottle(WithMaxRequests(2)),
		WithRejectHook(func(r *http.Request, limitType string) { rejected = append(rejected, limitType) }))
	h := m.Handler(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/captcha", nil)
		req.RemoteAddr = "10.0.0.5:51234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/captcha", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if !strings.Contains(rec.Body.String(), `"error":"rate_limit_exceeded"`) {
		t.Errorf("Unexpected body %s", rec.Body.String())
	}
	if len(rejected) != 1 || rejected[0] != "ip" {
		t.Errorf("Expected one ip rejection, got %v", rejected)
	}
}

func TestMiddleware_GlobalLimit(t *testing.T) {
	cfg := &Config{GlobalEnabled: true, GlobalCapacity: 1, GlobalRefillRate: 0.001}
	h := NewMiddleware(cfg, nil).Handler(okHandler())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", rec.Code)
	}
}

func TestIPResolver(t *testing.T) {
	resolver := NewIPResolver("10.0.0.1", "172.16.0.0/12", "not-an-ip")

	tests := []struct {
		name       string
		xff        string
		realIP     string
		remoteAddr string
		want       string
	}{
		{"untrusted peer ignores forwarded for", "203.0.113.7", "", "198.51.100.9:1234", "198.51.100.9"},
		{"untrusted peer ignores real ip", "", "203.0.113.7", "198.51.100.9:1234", "198.51.100.9"},
		{"trusted peer forwarded for", "203.0.113.7", "", "10.0.0.1:1234", "203.0.113.7"},
		{"right-most untrusted hop wins", "1.2.3.4, 203.0.113.7, 172.16.5.5", "", "10.0.0.1:1234", "203.0.113.7"},
		{"all hops trusted", "172.16.0.9", "", "10.0.0.1:1234", "172.16.0.9"},
		{"garbage hop falls back to peer", "nonsense", "", "10.0.0.1:1234", "10.0.0.1"},
		{"trusted peer real ip", "", "198.51.100.2", "172.20.0.3:1234", "198.51.100.2"},
		{"trusted peer without headers", "", "", "10.0.0.1:1234", "10.0.0.1"},
		{"ipv6 remote addr", "", "", "[::1]:8080", "::1"},
		{"remote addr without port", "", "", "10.0.0.5", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}
			if got := resolver.Resolve(req); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClientIP_IgnoresHeadersWithoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	req.Header.Set("X-Real-IP", "203.0.113.8")

	if got := ClientIP(req); got != "10.0.0.5" {
		t.Errorf("ClientIP() = %q, want 10.0.0.5", got)
	}
	if got := ClientIP(req.WithContext(WithClientIP(req.Context(), "203.0.113.9"))); got != "203.0.113.9" {
		t.Errorf("ClientIP() = %q, want the resolved address", got)
	}
}

func TestMiddleware_RotatingForwardedForSharesPeerCounter(t *testing.T) {
	throttle := NewThrottle(WithMaxRequests(3))
	h := NewMiddleware(DefaultConfig(), throttle).Handler(okHandler())

	served := 0
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.5:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusOK {
			served++
		}
	}
	if served != 3 {
		t.Errorf("Expected 3 requests served, got %d", served)
	}
}

func TestMiddleware_TrustedProxyKeysByForwardedClient(t *testing.T) {
	throttle := NewThrottle(WithMaxRequests(1))
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = ClientIP(r)
		w.WriteHeader(http.StatusOK)
	})
	h := NewMiddleware(DefaultConfig(), throttle, WithTrustedProxies("10.0.0.1")).Handler(next)

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:40000"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 for %s, got %d", client, rec.Code)
		}
		if seen != client {
			t.Errorf("Handler saw client %q, want %q", seen, client)
		}
	}
}
