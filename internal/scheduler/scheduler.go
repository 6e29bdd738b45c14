// Package scheduler runs named periodic tasks for the host process.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/SuperK55/aluri-back-sub001/pkg/logging"
)

var (
	// ErrUnknownJob is returned by RunOnce for a name that was never added.
	ErrUnknownJob = errors.New("scheduler: unknown job")
	// ErrDuplicateJob is returned when a job name is added twice.
	ErrDuplicateJob = errors.New("scheduler: duplicate job")
)

// Task is one tick of a periodic job.
type Task func(ctx context.Context) error

// CountingTask adapts workers whose tick reports a processed count.
func CountingTask(fn func(ctx context.Context) (int, error)) Task {
	return func(ctx context.Context) error {
		_, err := fn(ctx)
		return err
	}
}

type job struct {
	name     string
	interval time.Duration
	task     Task
}

// Scheduler owns a list of (name, interval, task) jobs. A job never overlaps
// itself, and a panicking tick is recovered and logged.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[string]*job
	order   []string
	logger  *logging.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	stopped context.Context
}

// New creates a stopped scheduler.
func New(logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			// Recover sits inside SkipIfStillRunning so a panicking tick still
			// releases the job for the next one.
			cron.WithChain(cron.SkipIfStillRunning(cl), cron.Recover(cl)),
		),
		jobs:   make(map[string]*job),
		logger: logger,
		ctx:    context.Background(),
		cancel: func() {},
	}
}

// Add registers task to run every interval. Intervals below one second are
// rounded up to one second.
func (s *Scheduler) Add(name string, interval time.Duration, task Task) error {
	if name == "" {
		return errors.New("scheduler: job name required")
	}
	if interval <= 0 {
		return fmt.Errorf("scheduler: job %s: interval must be positive", name)
	}
	if task == nil {
		return fmt.Errorf("scheduler: job %s: task required", name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, name)
	}
	j := &job{name: name, interval: interval, task: task}
	s.cron.Schedule(cron.Every(interval), cron.FuncJob(func() { s.tick(j) }))
	s.jobs[name] = j
	s.order = append(s.order, name)
	return nil
}

// Names lists jobs in the order they were added.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Start begins running jobs. Jobs are stopped when ctx is cancelled or Stop
// is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
	go func(ctx context.Context) {
		<-ctx.Done()
		s.Stop()
	}(s.ctx)
}

// Stop cancels running ticks and waits for them to return. Concurrent
// callers all wait for the same shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		done := s.stopped
		s.mu.Unlock()
		if done != nil {
			<-done.Done()
		}
		return
	}
	s.started = false
	s.cancel()
	s.stopped = s.cron.Stop()
	done := s.stopped
	s.mu.Unlock()

	<-done.Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs a single tick of the named job synchronously.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) tick(j *job) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	_ = s.execute(ctx, j)
}

func (s *Scheduler) execute(ctx context.Context, j *job) error {
	started := time.Now()
	err := j.task(ctx)
	elapsed := time.Since(started)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("scheduler: job failed", "job", j.name, "duration", elapsed, "error", err)
		return err
	}
	s.logger.Debug("scheduler: job finished", "job", j.name, "duration", elapsed)
	return err
}

// cronLogger routes cron's internal logging through the service logger.
type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
