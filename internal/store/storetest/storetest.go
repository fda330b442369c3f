// Package storetest opens throwaway SQLite stores for tests.
package storetest

import (
	"context"
	"path/filepath"
	"testing"

	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

// New returns a migrated store backed by a file in t.TempDir.
func New(t testing.TB) *store.Store {
	t.Helper()
	ctx := context.Background()
	s, err := store.Open(ctx, string(store.SQLite), filepath.Join(t.TempDir(), "feedsieve_test.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

// Feed inserts an enabled feed for url.
func Feed(t testing.TB, s *store.Store, url string, ext domain.ExtractionConfig) domain.Feed {
	t.Helper()
	f, err := s.CreateFeed(context.Background(), domain.Feed{Name: url, URL: url, Extraction: ext, Enabled: true})
	if err != nil {
		t.Fatalf("create feed: %v", err)
	}
	return f
}

// Topic inserts an enabled topic.
func Topic(t testing.TB, s *store.Store, name, description string) domain.Topic {
	t.Helper()
	tp, err := s.CreateTopic(context.Background(), domain.Topic{Name: name, Description: description, Enabled: true})
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	return tp
}

// Article inserts a pending article and returns its id.
func Article(t testing.TB, s *store.Store, feedID int64, guid, url string) int64 {
	t.Helper()
	title := guid
	id, ok, err := s.InsertArticle(context.Background(), store.NewArticle{FeedID: feedID, GUID: guid, Title: &title, URL: url})
	if err != nil || !ok {
		t.Fatalf("insert article %s: inserted=%v err=%v", guid, ok, err)
	}
	return id
}
