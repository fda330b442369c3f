// Package digest collects the relevant verdicts recorded since the last
// successful digest, renders them and hands the message to a Sender.
package digest

import (
	"cmp"
	"context"
	"slices"
	"time"

	"feedsieve/internal/store"
)

// Entry is one article line of a digest.
type Entry struct {
	ArticleID   int64      `json:"article_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Summary     string     `json:"summary"`
	Tags        []string   `json:"tags"`
}

type Group struct {
	Topic   string  `json:"topic"`
	Entries []Entry `json:"entries"`
}

// Digest covers verdicts with Since < assessed_at <= Until.
type Digest struct {
	Since  time.Time `json:"since"`
	Until  time.Time `json:"until"`
	Groups []Group   `json:"groups"`
	Count  int       `json:"count"`
}

func (d Digest) Empty() bool { return d.Count == 0 }

type Builder struct {
	store *store.Store
}

func NewBuilder(s *store.Store) *Builder {
	return &Builder{store: s}
}

// Build gathers everything assessed relevant after the last successful
// digest and up to until.
func (b *Builder) Build(ctx context.Context, until time.Time) (Digest, error) {
	since, err := b.store.LastSuccessfulDigest(ctx)
	if err != nil {
		return Digest{}, err
	}
	items, err := b.store.RelevantBetween(ctx, since, until)
	if err != nil {
		return Digest{}, err
	}
	return Digest{Since: since, Until: until.UTC(), Groups: group(items), Count: len(items)}, nil
}

func group(items []store.RelevantItem) []Group {
	byTopic := map[string]*Group{}
	var groups []*Group
	for _, it := range items {
		g, ok := byTopic[it.TopicName]
		if !ok {
			g = &Group{Topic: it.TopicName}
			byTopic[it.TopicName] = g
			groups = append(groups, g)
		}
		title := it.Title
		if title == "" {
			title = it.URL
		}
		g.Entries = append(g.Entries, Entry{
			ArticleID:   it.ArticleID,
			Title:       title,
			URL:         it.URL,
			PublishedAt: it.PublishedAt,
			Summary:     it.Summary,
			Tags:        it.Tags,
		})
	}

	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		slices.SortStableFunc(g.Entries, newestFirst)
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b Group) int { return cmp.Compare(a.Topic, b.Topic) })
	return out
}

// newestFirst orders entries by publication date descending; undated
// entries go last.
func newestFirst(a, b Entry) int {
	switch {
	case a.PublishedAt == nil && b.PublishedAt == nil:
		return cmp.Compare(b.ArticleID, a.ArticleID)
	case a.PublishedAt == nil:
		return 1
	case b.PublishedAt == nil:
		return -1
	}
	if c := b.PublishedAt.Compare(*a.PublishedAt); c != 0 {
		return c
	}
	return cmp.Compare(b.ArticleID, a.ArticleID)
}
