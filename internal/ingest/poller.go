package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"feedsieve/internal/domain"
)

// Item is a feed entry normalized for the deduplicator.
type Item struct {
	GUID        string
	Title       *string
	URL         string
	PublishedAt *time.Time
	Metadata    domain.Metadata
}

// PollResult carries either the items of one feed or the reason polling failed.
type PollResult struct {
	Items []Item
	Err   error
}

// Poller reads one feed document. The parser is supplied by the caller so
// tests and the daemon can share or isolate it as they see fit.
type Poller struct {
	parser *gofeed.Parser
}

func NewPoller(parser *gofeed.Parser) *Poller {
	if parser == nil {
		parser = gofeed.NewParser()
	}
	return &Poller{parser: parser}
}

// Poll never returns a Go error or panics; failures land in PollResult.Err.
func (p *Poller) Poll(ctx context.Context, feed domain.Feed) (res PollResult) {
	defer func() {
		if r := recover(); r != nil {
			res = PollResult{Err: fmt.Errorf("poll %s: panic: %v", feed.URL, r)}
		}
	}()
	f, err := p.parser.ParseURLWithContext(feed.URL, ctx)
	if err != nil {
		return PollResult{Err: fmt.Errorf("poll %s: %w", feed.URL, err)}
	}
	items := make([]Item, 0, len(f.Items))
	for _, it := range f.Items {
		if it == nil {
			continue
		}
		items = append(items, normalize(it, feed.CustomFields))
	}
	return PollResult{Items: items}
}

func normalize(it *gofeed.Item, customFields []string) Item {
	out := Item{
		GUID:     firstNonEmpty(it.GUID, it.Link),
		URL:      strings.TrimSpace(it.Link),
		Metadata: domain.Metadata{},
	}
	if t := strings.TrimSpace(it.Title); t != "" {
		out.Title = &t
	}
	if it.PublishedParsed != nil {
		t := it.PublishedParsed.UTC()
		out.PublishedAt = &t
	} else if it.UpdatedParsed != nil {
		t := it.UpdatedParsed.UTC()
		out.PublishedAt = &t
	}

	if d := strings.TrimSpace(firstNonEmpty(it.Description, it.Content)); d != "" {
		out.Metadata["description"] = d
	}
	if it.Author != nil && strings.TrimSpace(it.Author.Name) != "" {
		out.Metadata["author"] = strings.TrimSpace(it.Author.Name)
	}
	if len(it.Categories) > 0 {
		out.Metadata["categories"] = append([]string(nil), it.Categories...)
	}
	for _, name := range customFields {
		if v, ok := customField(it, name); ok {
			out.Metadata[name] = v
		}
	}
	return out
}

// customField looks name up on the item. Plain names come from elements the
// parser did not recognize; "prefix:name" comes from namespace extensions.
func customField(it *gofeed.Item, name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if prefix, local, ok := strings.Cut(name, ":"); ok {
		exts, ok := it.Extensions[prefix][local]
		if !ok || len(exts) == 0 {
			return "", false
		}
		v := strings.TrimSpace(exts[0].Value)
		return v, v != ""
	}
	v, ok := it.Custom[name]
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
