package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"feedsieve/internal/store"
)

var ErrCycleRunning = errors.New("ingestion cycle already running")

type State int32

const (
	StateIdle State = iota
	StatePolling
	StateFetching
	StateExtracting
	StateAssessing
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "polling"
	case StateFetching:
		return "fetching"
	case StateExtracting:
		return "extracting"
	case StateAssessing:
		return "assessing"
	}
	return "idle"
}

type CycleReport struct {
	ID          string        `json:"id"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	Feeds       int           `json:"feeds"`
	FeedErrors  int           `json:"feed_errors"`
	New         int           `json:"new"`
	Skipped     int           `json:"skipped"`
	Fetch       FetchReport   `json:"fetch"`
	Extract     ExtractReport `json:"extract"`
	Assess      AssessReport  `json:"assess"`
	AssessRan   bool          `json:"assess_ran"`
	StageErrors []string      `json:"stage_errors,omitempty"`
}

// CoordinatorDeps wires the stages. Assessor may be nil when no model is
// configured; the assessment stage is then skipped.
type CoordinatorDeps struct {
	Store      *store.Store
	Poller     *Poller
	Dedup      *Deduplicator
	Fetcher    *Fetcher
	Extraction *Extraction
	Assessor   *Assessor
	Logger     *slog.Logger
}

// Coordinator runs poll, dedup, fetch, extract and assess in order.
type Coordinator struct {
	deps    CoordinatorDeps
	logger  *slog.Logger
	state   atomic.Int32
	running sync.Mutex
	last    atomic.Pointer[CycleReport]
}

func NewCoordinator(deps CoordinatorDeps) *Coordinator {
	return &Coordinator{deps: deps, logger: deps.Logger.With("component", "cycle")}
}

func (c *Coordinator) State() State { return State(c.state.Load()) }

// LastReport returns the report of the most recent finished cycle, or nil.
func (c *Coordinator) LastReport() *CycleReport { return c.last.Load() }

// RunCycle performs one full ingestion cycle. A failing feed or stage is
// logged and recorded in the report; it never stops the remaining work.
func (c *Coordinator) RunCycle(ctx context.Context) (CycleReport, error) {
	if !c.running.TryLock() {
		return CycleReport{}, ErrCycleRunning
	}
	defer c.running.Unlock()
	defer c.state.Store(int32(StateIdle))

	rep := CycleReport{ID: uuid.NewString(), StartedAt: time.Now()}
	log := c.logger.With("cycle_id", rep.ID)
	log.Info("cycle started")

	c.stage(ctx, log, &rep, StatePolling, func() error { return c.pollAll(ctx, log, &rep) })
	if c.deps.Fetcher != nil {
		c.stage(ctx, log, &rep, StateFetching, func() (err error) {
			rep.Fetch, err = c.deps.Fetcher.Run(ctx)
			return err
		})
	}
	if c.deps.Extraction != nil {
		c.stage(ctx, log, &rep, StateExtracting, func() (err error) {
			rep.Extract, err = c.deps.Extraction.Run(ctx)
			return err
		})
	}
	if c.deps.Assessor != nil {
		rep.AssessRan = true
		c.stage(ctx, log, &rep, StateAssessing, func() (err error) {
			rep.Assess, err = c.deps.Assessor.Run(ctx)
			return err
		})
	} else {
		log.Info("no model configured, skipping assessment")
	}

	rep.Duration = time.Since(rep.StartedAt)
	log.Info("cycle finished",
		"duration", rep.Duration.Round(time.Millisecond),
		"feeds", rep.Feeds, "feed_errors", rep.FeedErrors,
		"new", rep.New, "skipped", rep.Skipped,
		"fetched", rep.Fetch.Fetched, "fetch_failed", rep.Fetch.Failed,
		"extracted", rep.Extract.Extracted,
		"assessed", rep.Assess.Assessed,
		"stage_errors", len(rep.StageErrors))
	c.last.Store(&rep)
	return rep, ctx.Err()
}

func (c *Coordinator) stage(ctx context.Context, log *slog.Logger, rep *CycleReport, st State, fn func() error) {
	if ctx.Err() != nil {
		return
	}
	c.state.Store(int32(st))
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("stage failed", "stage", st.String(), "error", err)
		rep.StageErrors = append(rep.StageErrors, fmt.Sprintf("%s: %v", st, err))
	}
}

func (c *Coordinator) pollAll(ctx context.Context, log *slog.Logger, rep *CycleReport) error {
	feeds, err := c.deps.Store.ListFeeds(ctx, true)
	if err != nil {
		return err
	}
	for _, f := range feeds {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rep.Feeds++
		flog := log.With("feed", f.Name, "feed_id", f.ID)
		res := c.deps.Poller.Poll(ctx, f)
		if res.Err != nil {
			rep.FeedErrors++
			flog.Warn("poll failed", "error", res.Err)
			continue
		}
		dr, err := c.deps.Dedup.Insert(ctx, f.ID, res.Items)
		rep.New += dr.New
		rep.Skipped += dr.Skipped
		if err != nil {
			rep.FeedErrors++
			flog.Error("dedup failed", "error", err)
			continue
		}
		if err := c.deps.Store.MarkFeedPolled(ctx, f.ID, time.Now()); err != nil {
			flog.Error("mark feed polled", "error", err)
		}
		flog.Info("feed polled", "items", len(res.Items), "new", dr.New, "skipped", dr.Skipped)
	}
	return nil
}
