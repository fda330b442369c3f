package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"feedsieve/internal/domain"
	"feedsieve/internal/extract"
	"feedsieve/internal/store"
)

type ExtractReport struct {
	Extracted int
	Failed    int
}

// defaultExtractBatch bounds how much raw HTML one pass holds in memory.
const defaultExtractBatch = 50

// Extraction turns fetched HTML into article text and structured metadata.
type Extraction struct {
	store  *store.Store
	batch  int
	logger *slog.Logger
}

// NewExtraction processes at most batch articles per pass; batch <= 0 uses
// defaultExtractBatch. The rest wait for the next cycle.
func NewExtraction(s *store.Store, batch int, logger *slog.Logger) *Extraction {
	if batch <= 0 {
		batch = defaultExtractBatch
	}
	return &Extraction{store: s, batch: batch, logger: logger.With("component", "extraction")}
}

func (e *Extraction) Run(ctx context.Context) (ExtractReport, error) {
	var rep ExtractReport
	articles, err := e.store.PendingExtraction(ctx, e.batch)
	if err != nil {
		return rep, err
	}
	feeds := map[int64]domain.Feed{}
	for _, a := range articles {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		if err := e.extractOne(ctx, a, feeds); err != nil {
			rep.Failed++
			e.logger.Warn("extraction failed", "article_id", a.ID, "error", err)
			continue
		}
		rep.Extracted++
	}
	if len(articles) > 0 {
		e.logger.Info("extraction pass done", "extracted", rep.Extracted, "failed", rep.Failed)
	}
	return rep, nil
}

func (e *Extraction) extractOne(ctx context.Context, a domain.Article, feeds map[int64]domain.Feed) error {
	feed, ok := feeds[a.FeedID]
	if !ok {
		f, err := e.store.GetFeed(ctx, a.FeedID)
		if err != nil {
			return err
		}
		feeds[a.FeedID] = f
		feed = f
	}
	if a.RawHTML == nil {
		return fmt.Errorf("article %d has no raw html", a.ID)
	}

	res, err := extract.Extract(*a.RawHTML, feed.Extraction)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		e.logger.Debug("skipped structured data", "article_id", a.ID, "reason", w)
	}

	text := res.Text
	if text == "" {
		// The feed's own summary beats an empty body for assessment.
		text = extract.PlainText(a.Metadata.String("description"))
	}
	return e.store.SaveExtraction(ctx, a.ID, text, a.Metadata.WithStructuredData(res.StructuredData))
}
