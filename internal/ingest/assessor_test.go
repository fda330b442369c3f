package ingest

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
	"feedsieve/internal/llm"
	"feedsieve/internal/logging"
	"feedsieve/internal/store"
	"feedsieve/internal/store/storetest"
)

func relevantClient(calls *atomic.Int32) llm.Client {
	return llm.Func(func(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error) {
		calls.Add(1)
		return domain.Verdict{Relevant: true, Summary: "S", Tags: []string{"x"}, Provider: "fake", Model: "m"}, nil
	})
}

func newAssessor(s *store.Store, c llm.Client) *Assessor {
	return NewAssessor(s, c, AssessorConfig{}, logging.Discard())
}

func TestAssessorRecordsOnePerPair(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	go1 := storetest.Topic(t, s, "Go", "Go programming")
	rust := storetest.Topic(t, s, "Rust", "Rust programming")
	id := storetest.Article(t, s, f.ID, "a1", "https://example.com/a1")
	extracted(t, s, id, "Go 1.23 ships range-over-func")

	var calls atomic.Int32
	rep, err := newAssessor(s, relevantClient(&calls)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, AssessReport{Articles: 1, Calls: 2, Inserted: 2, Assessed: 1}, rep)
	assert.Equal(t, domain.StatusAssessed, article(t, s, id).State.Status)

	// Assessed articles leave the queue; re-running makes no calls.
	rep, err = newAssessor(s, relevantClient(&calls)).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Calls)
	assert.EqualValues(t, 2, calls.Load())

	for _, tp := range []domain.Topic{go1, rust} {
		got, err := s.ListAssessments(ctx, store.AssessmentFilter{ArticleID: id, TopicID: tp.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Relevant)
		assert.Equal(t, "S", *got[0].Summary)
		assert.Equal(t, []string{"x"}, got[0].Tags)
		assert.Equal(t, "fake", got[0].Provider)
	}
}

func TestAssessorRetriesOnlyFailedPairs(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	storetest.Topic(t, s, "Go", "Go programming")
	rust := storetest.Topic(t, s, "Rust", "Rust programming")
	id := storetest.Article(t, s, f.ID, "a1", "https://example.com/a1")
	extracted(t, s, id, "text")

	var seen []string
	failRust := true
	client := llm.Func(func(ctx context.Context, topic domain.Topic, text string) (domain.Verdict, error) {
		seen = append(seen, topic.Name)
		if topic.ID == rust.ID && failRust {
			return domain.Verdict{}, errors.New("provider unavailable")
		}
		return domain.Verdict{Relevant: false}, nil
	})

	rep, err := newAssessor(s, client).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Retrying)
	assert.Equal(t, 1, rep.Inserted)
	a := article(t, s, id)
	assert.Equal(t, domain.StatusPending, a.State.Status)
	assert.Equal(t, 1, a.State.AssessmentRetries)
	assert.Zero(t, a.State.FetchRetries)

	failRust = false
	seen = nil
	rep, err = newAssessor(s, client).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rust"}, seen)
	assert.Equal(t, 1, rep.Assessed)
	a = article(t, s, id)
	assert.Equal(t, domain.StatusAssessed, a.State.Status)
	assert.Equal(t, 1, a.State.AssessmentRetries)
}

func TestAssessorGivesUpAfterMaxRetries(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	storetest.Topic(t, s, "Go", "Go programming")
	id := storetest.Article(t, s, f.ID, "a1", "https://example.com/a1")
	extracted(t, s, id, "text")

	failing := llm.Func(func(context.Context, domain.Topic, string) (domain.Verdict, error) {
		return domain.Verdict{}, llm.ErrMalformedVerdict
	})
	for i := 1; i <= domain.MaxRetries; i++ {
		_, err := newAssessor(s, failing).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, article(t, s, id).State.AssessmentRetries)
	}
	assert.Equal(t, domain.StatusFailed, article(t, s, id).State.Status)

	rep, err := newAssessor(s, failing).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Articles)
}

func TestAssessorWithoutTopicsIsNoop(t *testing.T) {
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	id := storetest.Article(t, s, f.ID, "a1", "https://example.com/a1")
	extracted(t, s, id, "text")

	var calls atomic.Int32
	rep, err := newAssessor(s, relevantClient(&calls)).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, rep)
	assert.Zero(t, calls.Load())
	assert.Equal(t, domain.StatusPending, article(t, s, id).State.Status)
}

func TestAssessorTruncatesText(t *testing.T) {
	s := storetest.New(t)
	f := storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{})
	storetest.Topic(t, s, "Go", "Go programming")
	id := storetest.Article(t, s, f.ID, "title", "https://example.com/a1")
	extracted(t, s, id, "ééééééééééééééééééééé")

	var got string
	client := llm.Func(func(_ context.Context, _ domain.Topic, text string) (domain.Verdict, error) {
		got = text
		return domain.Verdict{}, nil
	})
	_, err := NewAssessor(s, client, AssessorConfig{MaxChars: 10}, logging.Discard()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10), got)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo", 5))
	assert.Equal(t, "hé", truncateRunes("héllo", 2))
	assert.Equal(t, "héllo", truncateRunes("héllo", 0))
}
