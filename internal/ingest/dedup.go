package ingest

import (
	"context"
	"fmt"

	"feedsieve/internal/store"
)

type DedupResult struct {
	New     int
	Skipped int
}

// Deduplicator inserts items whose guid has not been seen before.
type Deduplicator struct {
	store *store.Store
}

func NewDeduplicator(s *store.Store) *Deduplicator {
	return &Deduplicator{store: s}
}

// Insert stores every item of batch whose guid is new as a pending article
// of feedID. Calling it again with the same items inserts nothing.
func (d *Deduplicator) Insert(ctx context.Context, feedID int64, batch []Item) (DedupResult, error) {
	var res DedupResult
	for _, it := range batch {
		exists, err := d.store.ArticleExists(ctx, it.GUID)
		if err != nil {
			return res, err
		}
		if exists {
			res.Skipped++
			continue
		}
		_, inserted, err := d.store.InsertArticle(ctx, store.NewArticle{
			FeedID:      feedID,
			GUID:        it.GUID,
			Title:       it.Title,
			URL:         it.URL,
			PublishedAt: it.PublishedAt,
			Metadata:    it.Metadata,
		})
		if err != nil {
			return res, fmt.Errorf("dedup feed %d: %w", feedID, err)
		}
		// A duplicate guid inside the same batch lands here.
		if !inserted {
			res.Skipped++
			continue
		}
		res.New++
	}
	return res, nil
}
