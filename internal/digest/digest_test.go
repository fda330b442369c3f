package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsieve/internal/domain"
	"feedsieve/internal/logging"
	"feedsieve/internal/store"
	"feedsieve/internal/store/storetest"
)

var base = time.Date(2024, 6, 1, 7, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	s     *store.Store
	feed  domain.Feed
	topic domain.Topic
	n     int
}

func newFixture(t *testing.T) *fixture {
	s := storetest.New(t)
	return &fixture{
		t:     t,
		s:     s,
		feed:  storetest.Feed(t, s, "https://example.com/rss", domain.ExtractionConfig{}),
		topic: storetest.Topic(t, s, "Go", "Go programming"),
	}
}

// verdict inserts an article and one assessment for topic at assessedAt.
func (f *fixture) verdict(topic domain.Topic, relevant bool, assessedAt time.Time, published *time.Time) int64 {
	f.t.Helper()
	f.n++
	guid := "a" + string(rune('0'+f.n))
	title := "Article " + guid
	id, ok, err := f.s.InsertArticle(context.Background(), store.NewArticle{
		FeedID: f.feed.ID, GUID: guid, Title: &title, URL: "https://example.com/" + guid, PublishedAt: published,
	})
	require.True(f.t, ok)
	require.NoError(f.t, err)
	summary := "Summary of " + guid
	_, err = f.s.InsertAssessment(context.Background(), domain.Assessment{
		ArticleID: id, TopicID: topic.ID, Relevant: relevant, Summary: &summary,
		Tags: []string{"go"}, Provider: "fake", Model: "m", AssessedAt: assessedAt,
	})
	require.NoError(f.t, err)
	return id
}

type fakeSender struct {
	fail error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, msg Message) SendResult {
	if f.fail != nil {
		return Failed(f.fail)
	}
	f.sent = append(f.sent, msg)
	return Sent("")
}

func newOrchestrator(s *store.Store, sender Sender, at time.Time) *Orchestrator {
	o := NewOrchestrator(s, sender, Config{Recipient: "me@example.com", From: "bot@example.com"}, logging.Discard())
	o.now = func() time.Time { return at }
	return o
}

func TestBuildWindowIsHalfOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.s.InsertDigestRecord(ctx, domain.DigestRecord{SentAt: base, Recipient: "me", Status: domain.DigestSuccess})
	require.NoError(t, err)
	_, err = f.s.InsertDigestRecord(ctx, domain.DigestRecord{SentAt: base.Add(2 * time.Hour), Recipient: "me", Status: domain.DigestFailed})
	require.NoError(t, err)

	f.verdict(f.topic, true, base.Add(-time.Minute), nil)        // before the window
	f.verdict(f.topic, true, base, nil)                          // on the lower bound
	in := f.verdict(f.topic, true, base.Add(time.Hour), nil)     // inside
	f.verdict(f.topic, false, base.Add(time.Hour), nil)          // not relevant
	edge := f.verdict(f.topic, true, base.Add(3*time.Hour), nil) // on the upper bound
	f.verdict(f.topic, true, base.Add(4*time.Hour), nil)         // after until

	d, err := NewBuilder(f.s).Build(ctx, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, d.Since.Equal(base), "failed records do not move the window")
	assert.Equal(t, 2, d.Count)
	require.Len(t, d.Groups, 1)
	var ids []int64
	for _, e := range d.Groups[0].Entries {
		ids = append(ids, e.ArticleID)
	}
	assert.ElementsMatch(t, []int64{in, edge}, ids)
}

func TestBuildGroupsAndOrders(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rust := storetest.Topic(t, f.s, "Rust", "Rust programming")
	apis := storetest.Topic(t, f.s, "APIs", "HTTP APIs")
	at := base.Add(time.Minute)
	older := base.Add(-48 * time.Hour)
	newer := base.Add(-24 * time.Hour)

	undated := f.verdict(f.topic, true, at, nil)
	old := f.verdict(f.topic, true, at, &older)
	recent := f.verdict(f.topic, true, at, &newer)
	r := f.verdict(rust, true, at, nil)
	a := f.verdict(apis, true, at, nil)

	d, err := NewBuilder(f.s).Build(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 5, d.Count)
	require.Len(t, d.Groups, 3)
	assert.Equal(t, "APIs", d.Groups[0].Topic)
	assert.Equal(t, a, d.Groups[0].Entries[0].ArticleID)
	assert.Equal(t, "Go", d.Groups[1].Topic)
	assert.Equal(t, r, d.Groups[2].Entries[0].ArticleID)

	var goIDs []int64
	for _, e := range d.Groups[1].Entries {
		goIDs = append(goIDs, e.ArticleID)
	}
	assert.Equal(t, []int64{recent, old, undated}, goIDs)
	assert.Equal(t, []string{"go"}, d.Groups[1].Entries[0].Tags)
}

func TestEmptyDigestAdvancesWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.verdict(f.topic, false, base.Add(-time.Hour), nil)
	sender := &fakeSender{}

	res, err := newOrchestrator(f.s, sender, base).Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Empty(t, sender.sent)
	assert.Equal(t, domain.DigestSuccess, res.Record.Status)
	assert.Zero(t, res.Record.ArticleCount)

	last, err := f.s.LastSuccessfulDigest(ctx)
	require.NoError(t, err)
	assert.True(t, last.Equal(base))
}

func TestSendFailureThenRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.verdict(f.topic, true, base.Add(-time.Hour), nil)
	f.verdict(f.topic, true, base.Add(-30*time.Minute), nil)

	sender := &fakeSender{fail: errors.New("smtp: connection refused")}
	res, err := newOrchestrator(f.s, sender, base).Run(ctx)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.Equal(t, domain.DigestFailed, res.Record.Status)
	assert.Equal(t, 2, res.Record.ArticleCount)
	require.NotNil(t, res.Record.Error)
	assert.Contains(t, *res.Record.Error, "connection refused")

	sender.fail = nil
	f.verdict(f.topic, true, base.Add(30*time.Minute), nil)
	res, err = newOrchestrator(f.s, sender, base.Add(time.Hour)).Run(ctx)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	assert.Equal(t, domain.DigestSuccess, res.Record.Status)
	assert.Equal(t, 3, res.Record.ArticleCount, "articles from the failed send are carried over")
	require.NotNil(t, res.Record.MessageID)
	assert.True(t, strings.HasSuffix(*res.Record.MessageID, "@feedsieve"))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "me@example.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "https://example.com/a3")

	// Nothing new: the next run is empty.
	res, err = newOrchestrator(f.s, sender, base.Add(2*time.Hour)).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Digest.Count)

	records, err := f.s.ListDigestRecords(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.DigestSuccess, records[0].Status)
	assert.Equal(t, domain.DigestFailed, records[2].Status)
}

func TestPreviewDoesNotRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.verdict(f.topic, true, base.Add(-time.Hour), nil)
	sender := &fakeSender{}

	msg, d, err := newOrchestrator(f.s, sender, base).Preview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, d.Count)
	assert.Contains(t, msg.Text, "Article a1")
	assert.Empty(t, sender.sent)

	records, err := f.s.ListDigestRecords(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestOverlappingRunsAreRejected(t *testing.T) {
	f := newFixture(t)
	o := newOrchestrator(f.s, &fakeSender{}, base)
	o.running.Lock()
	defer o.running.Unlock()
	_, err := o.Run(context.Background())
	assert.ErrorIs(t, err, ErrDigestRunning)
}
