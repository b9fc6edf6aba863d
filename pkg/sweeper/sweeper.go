// Package sweeper runs periodic housekeeping tasks such as evicting expired
// login-attempt records and throttle counters.
//
// A failing or panicking task is logged and reported; it never stops the schedule
// or the other tasks.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const DefaultInterval = time.Hour

// Task is one unit of periodic work. Run returns the number of evicted entries.
type Task struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Evictor adapts a SweepExpired style method into a Task
func Evictor(name string, sweep func() int) Task {
	return Task{
		Name: name,
		Run: func(context.Context) (int, error) {
			return sweep(), nil
		},
	}
}

// ErrorReporter receives task failures, e.g. to forward them to Sentry
type ErrorReporter func(task string, err error)

// EvictionObserver receives eviction counts after each successful task run
type EvictionObserver func(task string, evicted int)

type Sweeper struct {
	interval time.Duration
	tasks    []Task
	report   ErrorReporter
	observe  EvictionObserver

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithTasks(tasks ...Task) Option {
	return func(s *Sweeper) {
		s.tasks = append(s.tasks, tasks...)
	}
}

func WithErrorReporter(r ErrorReporter) Option {
	return func(s *Sweeper) {
		s.report = r
	}
}

func WithEvictionObserver(o EvictionObserver) Option {
	return func(s *Sweeper) {
		s.observe = o
	}
}

func New(opts ...Option) *Sweeper {
	s := &Sweeper{interval: DefaultInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Interval returns the time between runs
func (s *Sweeper) Interval() time.Duration {
	return s.interval
}

// Start runs the tasks every interval in a background goroutine until ctx is
// cancelled or Stop is called. Starting a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	slog.Info("Sweeper started", "interval", s.interval, "tasks", len(s.tasks))
	go s.loop(ctx, s.done)
}

// Stop halts the schedule and waits for an in-flight run to finish
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
	slog.Info("Sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce runs every task once and returns the total number of evicted entries
func (s *Sweeper) RunOnce(ctx context.Context) int {
	total := 0
	for _, task := range s.tasks {
		n, err := s.runTask(ctx, task)
		if err != nil {
			slog.Error("Sweep task failed", "task", task.Name, "error", err)
			if s.report != nil {
				s.report(task.Name, err)
			}
			continue
		}
		if n > 0 {
			slog.Info("Sweep task evicted entries", "task", task.Name, "evicted", n)
		}
		if s.observe != nil {
			s.observe(task.Name, n)
		}
		total += n
	}
	return total
}

func (s *Sweeper) runTask(ctx context.Context, task Task) (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in sweep task %s: %v\n%s", task.Name, rec, debug.Stack())
		}
	}()
	return task.Run(ctx)
}
