package sweeper

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-auth/pkg/loginattempt"
)

func TestRunOnce_IsolatesFailures(t *testing.T) {
	var reported []string
	var observed []string

	s := New(
		WithTasks(
			Task{Name: "panics", Run: func(context.Context) (int, error) { panic("boom") }},
			Task{Name: "fails", Run: func(context.Context) (int, error) { return 0, errors.New("store down") }},
			Evictor("evicts", func() int { return 3 }),
		),
		WithErrorReporter(func(task string, err error) {
			require.Error(t, err)
			reported = append(reported, task)
		}),
		WithEvictionObserver(func(task string, n int) {
			observed = append(observed, task)
		}),
	)

	total := s.RunOnce(context.Background())

	assert.Equal(t, 3, total)
	assert.Equal(t, []string{"panics", "fails"}, reported)
	assert.Equal(t, []string{"evicts"}, observed)
}

func TestStart_RunsOnSchedule(t *testing.T) {
	var runs atomic.Int32
	ran := make(chan struct{}, 1)

	s := New(
		WithInterval(10*time.Millisecond),
		WithTasks(
			Task{Name: "flaky", Run: func(context.Context) (int, error) {
				if runs.Add(1) == 1 {
					panic("first run fails")
				}
				select {
				case ran <- struct{}{}:
				default:
				}
				return 0, nil
			}},
		),
	)

	s.Start(context.Background())
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("schedule did not survive a panicking run")
	}
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestStop(t *testing.T) {
	var runs atomic.Int32
	s := New(WithInterval(5*time.Millisecond), WithTasks(Evictor("count", func() int {
		runs.Add(1)
		return 0
	})))

	s.Start(context.Background())
	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()
	s.Stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after Stop")
}

func TestContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(WithInterval(5 * time.Millisecond))
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancellation")
	}
}

func TestSweepsLoginAttempts(t *testing.T) {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	tracker := loginattempt.NewTracker(loginattempt.WithClock(clock))
	tracker.RecordFailure("alice")
	tracker.RecordFailure("bob")

	s := New(WithTasks(Evictor("login_attempts", tracker.SweepExpired)))
	assert.Equal(t, 0, s.RunOnce(context.Background()))

	mu.Lock()
	now = now.Add(16 * time.Minute)
	mu.Unlock()
	assert.Equal(t, 2, s.RunOnce(context.Background()))
	assert.Equal(t, 0, tracker.Len())
}
