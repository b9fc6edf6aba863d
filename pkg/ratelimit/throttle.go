package ratelimit

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultMaxRequests = 30
	DefaultWindow      = time.Hour
)

// counter is one IP's request count in a fixed window. expiresAt never changes;
// an expired counter is replaced, not reset.
type counter struct {
	count     atomic.Int32
	expiresAt int64 // unix nanoseconds
}

func (c *counter) expired(now time.Time) bool {
	return now.UnixNano() >= c.expiresAt
}

// Throttle limits requests per client IP with a fixed window counter.
// Allowlisted IPs are never counted and denylisted IPs are always refused.
type Throttle struct {
	counters    sync.Map // ip -> *counter
	allowlist   sync.Map // ip -> struct{}
	denylist    sync.Map // ip -> struct{}
	maxRequests int32
	window      time.Duration
	now         func() time.Time
}

// ThrottleOption configures a Throttle
type ThrottleOption func(*Throttle)

// WithMaxRequests sets how many requests an IP may make per window
func WithMaxRequests(n int) ThrottleOption {
	return func(t *Throttle) {
		if n > 0 {
			t.maxRequests = int32(n)
		}
	}
}

// WithWindow sets the counter lifetime, fixed from the first request
func WithWindow(d time.Duration) ThrottleOption {
	return func(t *Throttle) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithAllowlist seeds the allowlist
func WithAllowlist(ips ...string) ThrottleOption {
	return func(t *Throttle) {
		for _, ip := range ips {
			t.allowlist.Store(ip, struct{}{})
		}
	}
}

// WithDenylist seeds the denylist
func WithDenylist(ips ...string) ThrottleOption {
	return func(t *Throttle) {
		for _, ip := range ips {
			t.denylist.Store(ip, struct{}{})
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ThrottleOption {
	return func(t *Throttle) {
		t.now = now
	}
}

// NewThrottle creates a Throttle allowing 30 requests per IP per hour unless overridden
func NewThrottle(opts ...ThrottleOption) *Throttle {
	t := &Throttle{
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxRequests returns the per-window limit
func (t *Throttle) MaxRequests() int {
	return int(t.maxRequests)
}

// IsAllowed counts a request from ip and reports whether it may proceed
func (t *Throttle) IsAllowed(ip string) bool {
	if _, ok := t.allowlist.Load(ip); ok {
		return true
	}
	if _, ok := t.denylist.Load(ip); ok {
		return false
	}

	now := t.now()
	for {
		c := t.load(ip, now)
		if c.expired(now) {
			t.counters.CompareAndDelete(ip, c)
			continue
		}
		for {
			n := c.count.Load()
			if n >= t.maxRequests {
				return false
			}
			if c.count.CompareAndSwap(n, n+1) {
				return true
			}
		}
	}
}

func (t *Throttle) load(ip string, now time.Time) *counter {
	if v, ok := t.counters.Load(ip); ok {
		return v.(*counter)
	}
	v, _ := t.counters.LoadOrStore(ip, &counter{expiresAt: now.Add(t.window).UnixNano()})
	return v.(*counter)
}

// Remaining returns how many requests ip has left in its current window
func (t *Throttle) Remaining(ip string) int {
	v, ok := t.counters.Load(ip)
	if !ok || v.(*counter).expired(t.now()) {
		return int(t.maxRequests)
	}
	return max(0, int(t.maxRequests-v.(*counter).count.Load()))
}

// RetryAfter returns the time until ip's current window ends, or 0 without one
func (t *Throttle) RetryAfter(ip string) time.Duration {
	v, ok := t.counters.Load(ip)
	if !ok {
		return 0
	}
	return max(0, time.Unix(0, v.(*counter).expiresAt).Sub(t.now()))
}

// Reset drops ip's counter
func (t *Throttle) Reset(ip string) {
	t.counters.Delete(ip)
	slog.Info("Throttle counter reset", "ip", ip)
}

// AddToDenylist refuses every future request from ip
func (t *Throttle) AddToDenylist(ip string) {
	t.denylist.Store(ip, struct{}{})
	slog.Info("IP added to throttle denylist", "ip", ip)
}

// RemoveFromDenylist undoes AddToDenylist
func (t *Throttle) RemoveFromDenylist(ip string) {
	t.denylist.Delete(ip)
	slog.Info("IP removed from throttle denylist", "ip", ip)
}

// AddToAllowlist exempts ip from throttling
func (t *Throttle) AddToAllowlist(ip string) {
	t.allowlist.Store(ip, struct{}{})
	slog.Info("IP added to throttle allowlist", "ip", ip)
}

// RemoveFromAllowlist undoes AddToAllowlist
func (t *Throttle) RemoveFromAllowlist(ip string) {
	t.allowlist.Delete(ip)
	slog.Info("IP removed from throttle allowlist", "ip", ip)
}

// Lists is a snapshot of the allow and deny sets
type Lists struct {
	Allowlist []string `json:"allowlist"`
	Denylist  []string `json:"denylist"`
}

// Lists returns the current allow and deny sets, sorted
func (t *Throttle) Lists() Lists {
	return Lists{Allowlist: keys(&t.allowlist), Denylist: keys(&t.denylist)}
}

func keys(m *sync.Map) []string {
	out := []string{}
	m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	sort.Strings(out)
	return out
}

// SweepExpired drops counters whose window has ended and returns how many were removed
func (t *Throttle) SweepExpired() int {
	now := t.now()
	removed := 0
	t.counters.Range(func(k, v any) bool {
		if v.(*counter).expired(now) && t.counters.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	return removed
}

// Stats describes the throttle's current state
type Stats struct {
	ActiveCounters int           `json:"active_counters"`
	MaxRequests    int           `json:"max_requests"`
	Window         time.Duration `json:"-"`
	WindowSeconds  int64         `json:"window_seconds"`
}

// GetStats returns current statistics
func (t *Throttle) GetStats() Stats {
	n := 0
	t.counters.Range(func(_, _ any) bool {
		n++
		return true
	})
	return Stats{ActiveCounters: n, MaxRequests: int(t.maxRequests), Window: t.window, WindowSeconds: int64(t.window.Seconds())}
}
