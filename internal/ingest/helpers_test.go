package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
	"feedsieve/internal/httpclient"
	"feedsieve/internal/logging"
	"feedsieve/internal/store"
)

func quickClient() *httpclient.Client {
	return httpclient.New(2 * time.Second)
}

func newFetcher(s *store.Store, cfg FetcherConfig) *Fetcher {
	return NewFetcher(s, quickClient(), cfg, logging.Discard())
}

// extracted stores raw HTML and extracted text so the article is ready for
// assessment.
func extracted(t *testing.T, s *store.Store, id int64, text string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.SaveRawHTML(ctx, id, "<p>"+text+"</p>", time.Now()))
	require.NoError(t, s.SaveExtraction(ctx, id, text, domain.Metadata{}))
}

func article(t *testing.T, s *store.Store, id int64) domain.Article {
	t.Helper()
	a, err := s.GetArticle(context.Background(), id)
	require.NoError(t, err)
	return a
}
