package loginattempt

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	nanos atomic.Int64
}

func newTestClock() *testClock {
	c := &testClock{}
	c.nanos.Store(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixNano())
	return c
}

func (c *testClock) Now() time.Time { return time.Unix(0, c.nanos.Load()) }

func (c *testClock) Advance(d time.Duration) { c.nanos.Add(int64(d)) }

func TestTrackerBlocksAfterMaxAttempts(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now))

	for i := 1; i <= 4; i++ {
		assert.Equal(t, i, tracker.RecordFailure("alice"))
		assert.False(t, tracker.IsBlocked("alice"))
		assert.Equal(t, 5-i, tracker.RemainingAttempts("alice"))
		assert.Zero(t, tracker.LockoutRemainingMinutes("alice"))
	}

	tracker.RecordFailure("alice")
	assert.True(t, tracker.IsBlocked("alice"))
	assert.Zero(t, tracker.RemainingAttempts("alice"))
	assert.Equal(t, int64(15), tracker.LockoutRemainingMinutes("alice"))

	assert.False(t, tracker.IsBlocked("bob"), "keys are independent")
	assert.Equal(t, 5, tracker.RemainingAttempts("bob"))
}

func TestTrackerResetClearsFailures(t *testing.T) {
	tracker := NewTracker()

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("alice")
	}
	tracker.Reset("alice")

	assert.Equal(t, 5, tracker.RemainingAttempts("alice"))
	assert.Equal(t, 1, tracker.RecordFailure("alice"))
	assert.Equal(t, 1, tracker.Len())

	tracker.Reset("nobody")
}

func TestTrackerLockoutExpires(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice")
	}
	require.True(t, tracker.IsBlocked("alice"))

	clock.Advance(30 * time.Second)
	assert.Equal(t, int64(14), tracker.LockoutRemainingMinutes("alice"), "partial minutes truncate")

	clock.Advance(14 * time.Minute)
	assert.True(t, tracker.IsBlocked("alice"))
	assert.Zero(t, tracker.LockoutRemainingMinutes("alice"))

	clock.Advance(31 * time.Second)
	assert.False(t, tracker.IsBlocked("alice"))
	assert.Zero(t, tracker.Len(), "expired lockout is evicted by IsBlocked")
	assert.Equal(t, 5, tracker.RemainingAttempts("alice"))
}

func TestTrackerLockoutMeasuredFromLastFailure(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		tracker.RecordFailure("alice")
	}
	clock.Advance(10 * time.Minute)
	tracker.RecordFailure("alice")

	clock.Advance(10 * time.Minute)
	assert.True(t, tracker.IsBlocked("alice"))
	assert.Equal(t, int64(5), tracker.LockoutRemainingMinutes("alice"))
}

func TestTrackerStaleFailuresStartOver(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now))

	for i := 0; i < 4; i++ {
		tracker.RecordFailure("alice")
	}
	clock.Advance(16 * time.Minute)

	assert.Equal(t, 5, tracker.RemainingAttempts("alice"))
	assert.Equal(t, 1, tracker.RecordFailure("alice"))
	assert.False(t, tracker.IsBlocked("alice"))
}

func TestTrackerOptions(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now), WithMaxAttempts(2), WithLockoutDuration(time.Minute))

	tracker.RecordFailure("k")
	tracker.RecordFailure("k")
	assert.True(t, tracker.IsBlocked("k"))
	assert.Equal(t, 2, tracker.MaxAttempts())

	clock.Advance(time.Minute)
	assert.False(t, tracker.IsBlocked("k"))
}

func TestTrackerSweepExpired(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now))

	tracker.RecordFailure("old-1")
	tracker.RecordFailure("old-2")
	clock.Advance(10 * time.Minute)
	tracker.RecordFailure("recent")

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 2, tracker.SweepExpired())
	assert.Equal(t, 1, tracker.Len())
	assert.Equal(t, 4, tracker.RemainingAttempts("recent"))

	assert.Zero(t, tracker.SweepExpired())
}

func TestTrackerConcurrentFailuresAreCounted(t *testing.T) {
	tracker := NewTracker(WithMaxAttempts(1000))

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordFailure("alice")
		}()
	}
	wg.Wait()

	assert.Equal(t, 900, tracker.RemainingAttempts("alice"))
}

func TestTrackerSweepDoesNotLoseConcurrentFailures(t *testing.T) {
	clock := newTestClock()
	tracker := NewTracker(WithClock(clock.Now), WithMaxAttempts(100000))

	const keys = 8
	for k := 0; k < keys; k++ {
		tracker.RecordFailure(fmt.Sprintf("user-%d", k))
	}
	// every existing record is now past its window and eligible for sweeping
	clock.Advance(20 * time.Minute)

	stop := make(chan struct{})
	var sweeps sync.WaitGroup
	sweeps.Add(1)
	go func() {
		defer sweeps.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tracker.SweepExpired()
			}
		}
	}()

	const perKey = 500
	var wg sync.WaitGroup
	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("user-%d", k)
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perKey/4; i++ {
					tracker.RecordFailure(key)
				}
			}()
		}
	}
	wg.Wait()
	close(stop)
	sweeps.Wait()

	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("user-%d", k)
		assert.Equal(t, 100000-perKey, tracker.RemainingAttempts(key), key)
	}
}

func BenchmarkRecordFailure(b *testing.B) {
	tracker := NewTracker()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			tracker.RecordFailure(fmt.Sprintf("user-%d", i%64))
			i++
		}
	})
}
