// Package app wires the configuration to the store, the pipeline stages and
// the schedules.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"feedsieve/internal/api"
	"feedsieve/internal/config"
	"feedsieve/internal/digest"
	"feedsieve/internal/httpclient"
	"feedsieve/internal/ingest"
	"feedsieve/internal/llm"
	"feedsieve/internal/mailer"
	"feedsieve/internal/scheduler"
	"feedsieve/internal/store"
)

const (
	JobPoll   = "poll"
	JobDigest = "digest"

	stopTimeout = 30 * time.Second
)

// Application owns the store and every long-lived component built on it.
type Application struct {
	Config config.Config
	Store  *store.Store
	Logger *slog.Logger
	Cycle  *ingest.Coordinator
	Digest *digest.Orchestrator
}

// New opens the store, creates the schema and builds the pipeline. Digests
// go out over SMTP when it is configured and are written to out otherwise.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) (*Application, error) {
	s, err := store.Open(ctx, cfg.Database.Driver, config.ExpandPath(cfg.Database.DSN))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.InitSchema(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	client, err := llm.New(cfg.LLM)
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Warn("no language model configured, articles will not be assessed")
	case err != nil:
		s.Close()
		return nil, err
	}

	return &Application{
		Config: cfg,
		Store:  s,
		Logger: logger,
		Cycle:  newCoordinator(s, client, cfg, logger),
		Digest: digest.NewOrchestrator(s, mailer.New(cfg.SMTP, out, logger), digest.Config{
			Recipient:     cfg.Digest.To(),
			From:          cfg.Digest.From,
			SubjectPrefix: cfg.Digest.SubjectPrefix,
		}, logger),
	}, nil
}

func newCoordinator(s *store.Store, client llm.Client, cfg config.Config, logger *slog.Logger) *ingest.Coordinator {
	deps := ingest.CoordinatorDeps{
		Store:  s,
		Poller: ingest.NewPoller(nil),
		Dedup:  ingest.NewDeduplicator(s),
		Fetcher: ingest.NewFetcher(s, httpclient.New(ingest.FetchTimeout), ingest.FetcherConfig{
			MaxConcurrency: cfg.Fetch.MaxConcurrency,
			PerHostDelay:   cfg.Fetch.PerHostDelay(),
			BatchLimit:     cfg.Fetch.BatchLimit,
		}, logger),
		Extraction: ingest.NewExtraction(s, cfg.Fetch.BatchLimit, logger),
		Logger:     logger,
	}
	if client != nil {
		deps.Assessor = ingest.NewAssessor(s, client, ingest.AssessorConfig{MaxChars: cfg.LLM.MaxChars}, logger)
	}
	return ingest.NewCoordinator(deps)
}

func (a *Application) Close() error {
	return a.Store.Close()
}

// Seed inserts the configured feeds and topics that the store does not
// know yet. Existing rows are left as they are.
func (a *Application) Seed(ctx context.Context) error {
	for _, fc := range a.Config.Feeds {
		f, created, err := a.Store.SeedFeed(ctx, fc.Feed())
		if err != nil {
			return fmt.Errorf("seed feed %s: %w", fc.URL, err)
		}
		if created {
			a.Logger.Info("feed added", "id", f.ID, "url", f.URL)
		}
	}
	for _, tc := range a.Config.Topics {
		t, created, err := a.Store.SeedTopic(ctx, tc.Topic())
		if err != nil {
			return fmt.Errorf("seed topic %s: %w", tc.Name, err)
		}
		if created {
			a.Logger.Info("topic added", "id", t.ID, "name", t.Name)
		}
	}
	return nil
}

// Scheduler registers the poll and digest jobs. A run that is refused
// because another one is in flight is not an error.
func (a *Application) Scheduler() (*scheduler.Scheduler, error) {
	sched := scheduler.New(a.Config.Schedule.Location(), a.Logger)
	err := sched.Add(scheduler.Job{Name: JobPoll, Spec: a.Config.Schedule.Poll, Run: func(ctx context.Context) error {
		_, err := a.Cycle.RunCycle(ctx)
		if errors.Is(err, ingest.ErrCycleRunning) {
			return nil
		}
		return err
	}})
	if err != nil {
		return nil, err
	}
	err = sched.Add(scheduler.Job{Name: JobDigest, Spec: a.Config.Schedule.Digest, Run: func(ctx context.Context) error {
		_, err := a.Digest.Run(ctx)
		if errors.Is(err, digest.ErrDigestRunning) {
			return nil
		}
		return err
	}})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// API builds the REST server. nextRun may be nil.
func (a *Application) API(nextRun func(string) time.Time) *api.Server {
	return api.NewServer(api.Deps{Store: a.Store, Cycle: a.Cycle, NextRun: nextRun, Logger: a.Logger})
}

// Run starts both schedules, and the REST API when addr is not empty, and
// blocks until ctx is cancelled. Jobs still running then get stopTimeout
// to finish before their context is cancelled.
func (a *Application) Run(ctx context.Context, addr string) error {
	sched, err := a.Scheduler()
	if err != nil {
		return err
	}
	sched.Start(ctx)
	a.Logger.Info("scheduler started",
		"poll", a.Config.Schedule.Poll,
		"digest", a.Config.Schedule.Digest,
		"timezone", a.Config.Schedule.Location().String())

	g, gctx := errgroup.WithContext(ctx)
	if addr != "" {
		srv := a.API(sched.Next)
		g.Go(func() error { return srv.Start(gctx, addr) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		a.Logger.Warn("jobs did not stop in time", "error", err)
	}
	a.Logger.Info("scheduler stopped")
	return runErr
}
