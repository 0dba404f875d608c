package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// TickFunc is one scheduled read. tick increases by one per firing and lets
// consumers drop results that arrive after a newer one.
type TickFunc func(ctx context.Context, tick uint64)

// Scheduler runs named periodic tasks. Cancelling the parent context or
// calling Stop ends every task.
type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Logger

	mu    sync.Mutex
	tasks map[*Task]struct{}
	wg    sync.WaitGroup
}

func NewScheduler(ctx context.Context, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
		tasks:  make(map[*Task]struct{}),
	}
}

// Task is a handle on a scheduled read.
type Task struct {
	name     string
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
	ticks    atomic.Uint64
}

// Name returns the name the task was scheduled under.
func (t *Task) Name() string { return t.name }

// Ticks reports how many times the task has fired.
func (t *Task) Ticks() uint64 { return t.ticks.Load() }

// Stop cancels the task and any read still running. It waits for the loop
// to exit but not for in-flight reads.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Every fires fn immediately and then every interval. Each firing runs in its
// own goroutine so a slow read never delays the next one.
func (s *Scheduler) Every(name string, interval time.Duration, fn TickFunc) *Task {
	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{
		name:     name,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[t] = struct{}{}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer func() {
			s.mu.Lock()
			delete(s.tasks, t)
			s.mu.Unlock()
		}()

		s.logger.WithFields(logrus.Fields{
			"task":     name,
			"interval": interval,
		}).Debug("starting scheduled task")

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.fire(ctx, t, fn)
		for {
			select {
			case <-ctx.Done():
				s.logger.WithField("task", name).Debug("scheduled task stopped")
				return
			case <-ticker.C:
				s.fire(ctx, t, fn)
			}
		}
	}()

	return t
}

func (s *Scheduler) fire(ctx context.Context, t *Task, fn TickFunc) {
	tick := t.ticks.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.logger.WithFields(logrus.Fields{
					"task": t.name,
					"tick": tick,
				}).Errorf("scheduled read panicked: %v", r)
			}
		}()
		fn(ctx, tick)
	}()
}

// Len reports the number of running tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Stop cancels all tasks and waits for loops and reads to return.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Done is closed when the scheduler's context ends.
func (s *Scheduler) Done() <-chan struct{} { return s.ctx.Done() }

// TickGate keeps the newest tick seen. Results from older ticks are stale.
type TickGate struct {
	mu   sync.Mutex
	last uint64
}

// Accept reports whether tick is newer than every tick accepted so far and
// records it when it is.
func (g *TickGate) Accept(tick uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if tick <= g.last {
		return false
	}
	g.last = tick
	return true
}

// Reset forgets every accepted tick.
func (g *TickGate) Reset() {
	g.mu.Lock()
	g.last = 0
	g.mu.Unlock()
}
