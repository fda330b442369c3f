package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
	"feedsieve/internal/store"
	"feedsieve/internal/store/storetest"
)

func TestDedupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	d := NewDeduplicator(s)

	batch := []Item{
		{GUID: "g1", URL: "https://example.com/1", Metadata: domain.Metadata{"author": "ann"}},
		{GUID: "g2", URL: "https://example.com/2"},
		{GUID: "g1", URL: "https://example.com/1"},
	}
	res, err := d.Insert(ctx, f.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, DedupResult{New: 2, Skipped: 1}, res)

	res, err = d.Insert(ctx, f.ID, batch)
	require.NoError(t, err)
	assert.Equal(t, DedupResult{New: 0, Skipped: len(batch)}, res)

	all, err := s.ListArticles(ctx, store.ArticleFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	for _, a := range all {
		assert.Equal(t, domain.StatusPending, a.State.Status)
		assert.Zero(t, a.State.FetchRetries)
		assert.Zero(t, a.State.AssessmentRetries)
	}
}
