// Package scheduler serializes periodic jobs and user intents on one goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"mt5Assistant/internal/metrics"
	"mt5Assistant/internal/ports"
)

// ErrStopped is returned by Do once the scheduler loop has exited.
var ErrStopped = errors.New("scheduler stopped")

// Job is a periodic task. Priority jobs run before any queued normal task.
type Job struct {
	Name     string
	Interval time.Duration
	Priority bool
	Run      func(ctx context.Context) error
}

type task struct {
	name    string
	ctx     context.Context
	fn      func(ctx context.Context) error
	done    chan error // nil for periodic jobs
	pending *atomic.Bool
}

// Scheduler executes every task serially. Periodic jobs are skipped while a previous tick
// of the same job is still queued.
type Scheduler struct {
	logger  ports.Logger
	metrics *metrics.Metrics

	mu      sync.Mutex
	jobs    []Job
	running bool

	priority chan task
	normal   chan task
	stopped  chan struct{}
}

// New creates an idle scheduler. metrics may be nil.
func New(logger ports.Logger, m *metrics.Metrics) *Scheduler {
	return &Scheduler{
		logger:   logger,
		metrics:  m,
		priority: make(chan task, 16),
		normal:   make(chan task, 64),
		stopped:  make(chan struct{}),
	}
}

// Every registers a periodic job. It must be called before Run.
func (s *Scheduler) Every(job Job) error {
	if job.Interval <= 0 || job.Run == nil || job.Name == "" {
		return fmt.Errorf("%w: job needs a name, a positive interval and a function", ports.ErrInvalidArgument)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running, cannot add job %q", job.Name)
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Run executes tasks until ctx is cancelled. Every job runs once at start.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()
	defer close(s.stopped)

	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.tick(ctx, job)
		}(job)
	}
	defer wg.Wait()

	s.logger.Info(ctx, "scheduler: started", map[string]interface{}{"jobs": len(jobs)})
	for {
		// Priority work first.
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler: stopped")
			return nil
		case t := <-s.priority:
			s.exec(t)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler: stopped")
			return nil
		case t := <-s.priority:
			s.exec(t)
		case t := <-s.normal:
			s.drainPriority()
			s.exec(t)
		}
	}
}

func (s *Scheduler) drainPriority() {
	for {
		select {
		case t := <-s.priority:
			s.exec(t)
		default:
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, job Job) {
	var pending atomic.Bool
	queue := s.normal
	if job.Priority {
		queue = s.priority
	}
	enqueue := func() {
		if !pending.CompareAndSwap(false, true) {
			return
		}
		select {
		case queue <- task{name: job.Name, ctx: ctx, fn: job.Run, pending: &pending}:
		case <-ctx.Done():
		}
	}

	enqueue()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			enqueue()
		}
	}
}

// Do runs fn on the scheduler goroutine and returns its error.
func (s *Scheduler) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	t := task{name: name, ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.normal <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrStopped
	}
}

func (s *Scheduler) exec(t task) {
	if t.pending != nil {
		defer t.pending.Store(false)
	}
	err := t.ctx.Err()
	if err == nil {
		err = s.safeRun(t)
	}
	if s.metrics != nil {
		s.metrics.JobRuns.WithLabelValues(t.name).Inc()
		if err != nil {
			s.metrics.JobFailures.WithLabelValues(t.name).Inc()
		}
	}
	if err != nil && t.done == nil {
		s.logger.Error(t.ctx, err, "scheduler: job failed", map[string]interface{}{"job": t.name})
	}
	if t.done != nil {
		t.done <- err
	}
}

func (s *Scheduler) safeRun(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
	}()
	return t.fn(t.ctx)
}
