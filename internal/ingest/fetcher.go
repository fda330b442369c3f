package ingest

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"feedsieve/internal/domain"
	"feedsieve/internal/httpclient"
	"feedsieve/internal/store"
)

// FetchTimeout bounds every article request.
const FetchTimeout = 15 * time.Second

type FetcherConfig struct {
	MaxConcurrency int
	PerHostDelay   time.Duration
	// BatchLimit caps how many articles one pass picks up; 0 means all.
	BatchLimit int
}

type FetchReport struct {
	Attempted int
	Fetched   int
	Failed    int
}

// Fetcher downloads raw HTML for pending articles.
type Fetcher struct {
	store    *store.Store
	client   *httpclient.Client
	throttle *HostThrottle
	cfg      FetcherConfig
	logger   *slog.Logger
	now      func() time.Time
}

func NewFetcher(s *store.Store, client *httpclient.Client, cfg FetcherConfig, logger *slog.Logger) *Fetcher {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 2
	}
	if client == nil {
		client = httpclient.New(FetchTimeout)
	}
	return &Fetcher{
		store:    s,
		client:   client,
		throttle: NewHostThrottle(cfg.PerHostDelay),
		cfg:      cfg,
		logger:   logger.With("component", "fetcher"),
		now:      time.Now,
	}
}

// Run fetches every eligible article. Individual failures are recorded on
// the article and never stop the rest of the batch; Run returns only after
// every task has finished.
func (f *Fetcher) Run(ctx context.Context) (FetchReport, error) {
	var rep FetchReport
	articles, err := f.store.PendingFetch(ctx, f.cfg.BatchLimit)
	if err != nil {
		return rep, err
	}
	if len(articles) == 0 {
		return rep, nil
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(f.cfg.MaxConcurrency)
	for _, a := range articles {
		g.Go(func() error {
			ok, attempted := f.fetchOne(ctx, a)
			mu.Lock()
			defer mu.Unlock()
			if !attempted {
				return nil
			}
			rep.Attempted++
			if ok {
				rep.Fetched++
			} else {
				rep.Failed++
			}
			return nil
		})
	}
	_ = g.Wait()
	f.logger.Info("fetch pass done", "attempted", rep.Attempted, "fetched", rep.Fetched, "failed", rep.Failed)
	return rep, ctx.Err()
}

// fetchOne reports whether the fetch succeeded and whether it was attempted
// at all (cancellation before the request is not an attempt).
func (f *Fetcher) fetchOne(ctx context.Context, a domain.Article) (ok, attempted bool) {
	log := f.logger.With("article_id", a.ID, "url", a.URL)
	host := ""
	if u, err := url.Parse(a.URL); err == nil {
		host = u.Host
	}
	if err := f.throttle.Wait(ctx, host); err != nil {
		return false, false
	}

	body, err := f.client.Fetch(ctx, a.URL)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down; leave the counter alone so the next cycle retries.
			return false, false
		}
		next, serr := a.State.AfterFetchFailure()
		if serr != nil {
			log.Error("fetch failure on terminal article", "error", serr)
			return false, true
		}
		if serr := f.store.SaveState(ctx, a.ID, next); serr != nil {
			log.Error("record fetch failure", "error", serr)
		}
		log.Warn("fetch failed", "error", err, "retries", next.FetchRetries, "status", next.Status)
		return false, true
	}
	if err := f.store.SaveRawHTML(ctx, a.ID, string(body), f.now()); err != nil {
		log.Error("store raw html", "error", err)
		return false, true
	}
	log.Debug("fetched", "bytes", len(body))
	return true, true
}
