// Package loginattempt tracks consecutive failed logins per key and locks a key out
// once it reaches the failure threshold.
//
// A key is usually a username, optionally combined with the client IP. A record
// lives until its lockout window, measured from the most recent failure, has passed;
// after that it is treated as absent and is dropped lazily or by SweepExpired.
package loginattempt

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// state is an immutable snapshot of one key's failures. Records move between
// snapshots with compare-and-swap, so no lock is held per key.
type state struct {
	attempts    int32
	lastAttempt int64 // unix nanoseconds
	dead        bool  // removed from the map; writers must start a new record
}

type record struct {
	state atomic.Pointer[state]
}

func newRecord() *record {
	r := &record{}
	r.state.Store(&state{})
	return r
}

// Tracker counts failed login attempts. It is safe for concurrent use.
type Tracker struct {
	records         sync.Map // string -> *record
	maxAttempts     int32
	lockoutDuration time.Duration
	now             func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithMaxAttempts sets how many consecutive failures lock a key
func WithMaxAttempts(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.maxAttempts = int32(n)
		}
	}
}

// WithLockoutDuration sets how long a key stays locked after its last failure
func WithLockoutDuration(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.lockoutDuration = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a Tracker with 5 attempts and a 15 minute lockout unless overridden
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxAttempts returns the failure threshold
func (t *Tracker) MaxAttempts() int {
	return int(t.maxAttempts)
}

func (t *Tracker) expired(s *state, now time.Time) bool {
	return !now.Before(time.Unix(0, s.lastAttempt).Add(t.lockoutDuration))
}

// current returns the live snapshot for key, or nil when the key is absent or expired
func (t *Tracker) current(key string, now time.Time) (*record, *state) {
	v, ok := t.records.Load(key)
	if !ok {
		return nil, nil
	}
	rec := v.(*record)
	s := rec.state.Load()
	if s.dead || s.attempts == 0 || t.expired(s, now) {
		return rec, nil
	}
	return rec, s
}

// RecordFailure adds one failed attempt for key and returns the new consecutive count
func (t *Tracker) RecordFailure(key string) int {
	now := t.now()
	for {
		v, ok := t.records.Load(key)
		if !ok {
			v, _ = t.records.LoadOrStore(key, newRecord())
		}
		rec := v.(*record)

		s := rec.state.Load()
		if s.dead {
			t.records.CompareAndDelete(key, rec)
			continue
		}

		next := &state{attempts: s.attempts + 1, lastAttempt: now.UnixNano()}
		if s.attempts > 0 && t.expired(s, now) {
			next.attempts = 1
		}
		if rec.state.CompareAndSwap(s, next) {
			if next.attempts == t.maxAttempts {
				slog.Warn("Login key locked after repeated failures", "key", key, "attempts", next.attempts)
			}
			return int(next.attempts)
		}
	}
}

// Reset forgets all failures for key
func (t *Tracker) Reset(key string) {
	if v, ok := t.records.Load(key); ok {
		t.retire(key, v.(*record), func(*state) bool { return true })
	}
}

// IsBlocked reports whether key has reached the threshold within the lockout window.
// An expired lockout is evicted on the way.
func (t *Tracker) IsBlocked(key string) bool {
	now := t.now()
	rec, s := t.current(key, now)
	if s != nil {
		return s.attempts >= t.maxAttempts
	}
	if rec != nil {
		t.retire(key, rec, func(s *state) bool { return t.expired(s, now) })
	}
	return false
}

// RemainingAttempts returns how many more failures key may have before it is locked
func (t *Tracker) RemainingAttempts(key string) int {
	_, s := t.current(key, t.now())
	if s == nil {
		return int(t.maxAttempts)
	}
	return max(0, int(t.maxAttempts-s.attempts))
}

// LockoutRemainingMinutes returns the whole minutes left on key's lockout, or 0 when
// it is not locked. Partial minutes are truncated.
func (t *Tracker) LockoutRemainingMinutes(key string) int64 {
	now := t.now()
	_, s := t.current(key, now)
	if s == nil || s.attempts < t.maxAttempts {
		return 0
	}
	unlock := time.Unix(0, s.lastAttempt).Add(t.lockoutDuration)
	return max(0, int64(unlock.Sub(now)/time.Minute))
}

// SweepExpired drops every record whose lockout window has passed and returns how many
// were removed. Records touched concurrently are kept.
func (t *Tracker) SweepExpired() int {
	now := t.now()
	removed := 0
	t.records.Range(func(k, v any) bool {
		if t.retire(k.(string), v.(*record), func(s *state) bool { return t.expired(s, now) }) {
			removed++
		}
		return true
	})
	return removed
}

// Len returns the number of tracked keys, expired ones included
func (t *Tracker) Len() int {
	n := 0
	t.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// retire marks rec dead when cond holds for its current snapshot, then unlinks it.
// Writers that lose the race to a dead mark retry against a fresh record.
func (t *Tracker) retire(key string, rec *record, cond func(*state) bool) bool {
	for {
		s := rec.state.Load()
		if s.dead {
			t.records.CompareAndDelete(key, rec)
			return false
		}
		if !cond(s) {
			return false
		}
		if rec.state.CompareAndSwap(s, &state{attempts: s.attempts, lastAttempt: s.lastAttempt, dead: true}) {
			t.records.CompareAndDelete(key, rec)
			return true
		}
	}
}
