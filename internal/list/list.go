// Package list prints recently relevant articles to a terminal.
package list

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"feedsieve/internal/store"
)

type Options struct {
	Hours int
	Topic string
	// Now defaults to time.Now.
	Now func() time.Time
}

func Run(ctx context.Context, w io.Writer, s *store.Store, opts Options) error {
	if opts.Hours <= 0 {
		opts.Hours = 24
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	until := now()
	items, err := s.RelevantBetween(ctx, until.Add(-time.Duration(opts.Hours)*time.Hour), until)
	if err != nil {
		return fmt.Errorf("query failed while reading relevant articles: %w", err)
	}
	if opts.Topic != "" {
		kept := items[:0]
		for _, it := range items {
			if strings.EqualFold(it.TopicName, opts.Topic) {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	if len(items) == 0 {
		fmt.Fprintf(w, "No relevant articles in the last %d hours.\n", opts.Hours)
		return nil
	}

	fmt.Fprintf(w, "Found %d relevant items from the last %d hours:\n\n", len(items), opts.Hours)
	for _, it := range items {
		title := it.Title
		if title == "" {
			title = it.URL
		}
		fmt.Fprintf(w, "ID: %d\n", it.ArticleID)
		fmt.Fprintf(w, "Topic: %s\n", it.TopicName)
		fmt.Fprintf(w, "Title: %s\n", title)
		fmt.Fprintf(w, "URL: %s\n", it.URL)
		if it.PublishedAt != nil {
			fmt.Fprintf(w, "Published: %s\n", it.PublishedAt.Local().Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintf(w, "Assessed: %s\n", it.AssessedAt.Local().Format("2006-01-02 15:04:05"))
		if len(it.Tags) > 0 {
			fmt.Fprintf(w, "Tags: %s\n", strings.Join(it.Tags, ", "))
		}
		fmt.Fprintf(w, "Summary: %s\n", preview(it.Summary))
		fmt.Fprintln(w, strings.Repeat("-", 80))
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 400 {
		return string(r[:400]) + "..."
	}
	return s
}
