package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
	"feedsieve/internal/extract"
	"feedsieve/internal/feedtest"
	"feedsieve/internal/logging"
	"feedsieve/internal/store"
	"feedsieve/internal/store/storetest"
)

func TestExtractionMergesStructuredData(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{
		BodySelector:      "article p",
		StructuredData:    true,
		MetadataSelectors: map[string]string{"byline": ".byline"},
	})
	id, _, err := s.InsertArticle(ctx, store.NewArticle{
		FeedID:   f.ID,
		GUID:     "a1",
		URL:      "https://example.com/a1",
		Metadata: domain.Metadata{"author": "ann", "description": "feed summary"},
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveRawHTML(ctx, id, feedtest.Page("Body"), time.Now()))

	rep, err := NewExtraction(s, 0, logging.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExtractReport{Extracted: 1}, rep)

	a := article(t, s, id)
	require.NotNil(t, a.ExtractedText)
	assert.Equal(t, "Body", *a.ExtractedText)
	assert.Equal(t, "ann", a.Metadata.String("author"))
	assert.Equal(t, "feed summary", a.Metadata.String("description"))

	sd, ok := a.Metadata[domain.StructuredDataKey].([]any)
	require.True(t, ok, "structured data is stored as a list")
	require.Len(t, sd, 2)
	ld := sd[0].(map[string]any)
	assert.Equal(t, "NewsArticle", ld["@type"])
	sel := sd[1].(map[string]any)
	assert.Equal(t, "byline", sel[extract.SelectorKey])
	assert.Equal(t, "By Ann", sel["value"])
	assert.Equal(t, domain.PhaseAwaitingAssessment, a.Phase())
}

func TestExtractionFallsBackToFeedDescription(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{BodySelector: "div.missing"})
	id, _, err := s.InsertArticle(ctx, store.NewArticle{
		FeedID:   f.ID,
		GUID:     "a1",
		URL:      "https://example.com/a1",
		Metadata: domain.Metadata{"description": "<p>Only the <b>summary</b></p>"},
	})
	require.NoError(t, err)
	require.NoError(t, s.SaveRawHTML(ctx, id, feedtest.Page("Body"), time.Now()))

	_, err = NewExtraction(s, 0, logging.Discard()).Run(ctx)
	require.NoError(t, err)

	a := article(t, s, id)
	require.NotNil(t, a.ExtractedText)
	assert.Equal(t, "Only the summary", *a.ExtractedText)
}

func TestExtractionSkipsUnfetched(t *testing.T) {
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	id := storetest.Article(t, s, f.ID, "a1", "https://example.com/a1")

	rep, err := NewExtraction(s, 0, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep.Extracted)
	assert.Nil(t, article(t, s, id).ExtractedText)
}

func TestExtractionTakesOneBatchPerPass(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{BodySelector: "article p"})
	for _, guid := range []string{"a1", "a2", "a3"} {
		id := storetest.Article(t, s, f.ID, guid, "https://example.com/"+guid)
		require.NoError(t, s.SaveRawHTML(ctx, id, feedtest.Page("Body "+guid), time.Now()))
	}

	ex := NewExtraction(s, 2, logging.Discard())
	rep, err := ex.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExtractReport{Extracted: 2}, rep)

	rep, err = ex.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, ExtractReport{Extracted: 1}, rep)

	queue, err := s.PendingExtraction(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, queue)
}
