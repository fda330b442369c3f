// Package scheduler runs the recurring ingestion and digest jobs on cron
// expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one named recurring task.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Scheduler wraps a cron runner. A job that is still running when its next
// tick arrives is skipped for that tick.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	parent  context.Context
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[string]cron.EntryID
}

func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	logger = logger.With("component", "scheduler")
	cl := cronLogger{logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		parent:  context.Background(),
		ctx:     context.Background(),
		entries: map[string]cron.EntryID{},
	}
}

// Add registers job. Jobs run with the context passed to Start.
func (s *Scheduler) Add(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[job.Name]; dup {
		return fmt.Errorf("job %q already scheduled", job.Name)
	}
	id, err := s.cron.AddFunc(job.Spec, func() {
		s.mu.Lock()
		ctx, parent := s.ctx, s.parent
		s.mu.Unlock()
		if ctx.Err() != nil || parent.Err() != nil {
			return
		}
		start := time.Now()
		log := s.logger.With("job", job.Name)
		log.Info("job started")
		if err := job.Run(ctx); err != nil {
			log.Error("job failed", "error", err, "duration", time.Since(start).Round(time.Millisecond))
			return
		}
		log.Info("job finished", "duration", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", job.Name, job.Spec, err)
	}
	s.entries[job.Name] = id
	return nil
}

// Start begins firing jobs. Jobs see ctx's values but not its
// cancellation; once ctx is done no new run begins, and running ones are
// cancelled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.parent = ctx
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.mu.Unlock()
	s.cron.Start()
	for name, id := range s.entries {
		s.logger.Info("job scheduled", "job", name, "next", s.cron.Entry(id).Next)
	}
}

// Stop stops new ticks and waits for running jobs until ctx is done, at
// which point their context is cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	defer func() {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	}()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		s.logger.Warn("jobs still running at shutdown, cancelling")
		return ctx.Err()
	}
}

// Next reports when the named job fires next; zero if unknown or stopped.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	id, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
