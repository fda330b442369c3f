package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"feedsieve/internal/domain"
)

var feedColumns = []string{"id", "name", "url", "body_selector", "structured_data", "metadata_selectors", "custom_fields", "enabled", "last_polled_at"}

func scanFeed(r rowScanner) (domain.Feed, error) {
	var (
		f            domain.Feed
		selectors    string
		customFields string
		lastPolled   sql.NullInt64
	)
	if err := r.Scan(&f.ID, &f.Name, &f.URL, &f.Extraction.BodySelector, &f.Extraction.StructuredData, &selectors, &customFields, &f.Enabled, &lastPolled); err != nil {
		return f, err
	}
	if selectors != "" && selectors != "{}" {
		if err := json.Unmarshal([]byte(selectors), &f.Extraction.MetadataSelectors); err != nil {
			return f, fmt.Errorf("feed %d metadata_selectors: %w", f.ID, err)
		}
	}
	if customFields != "" && customFields != "[]" {
		if err := json.Unmarshal([]byte(customFields), &f.CustomFields); err != nil {
			return f, fmt.Errorf("feed %d custom_fields: %w", f.ID, err)
		}
	}
	f.LastPolledAt = timePtr(lastPolled)
	return f, nil
}

func feedValues(f domain.Feed) (selectors, customFields string, err error) {
	if selectors, err = encodeJSON(f.Extraction.MetadataSelectors, "{}"); err != nil {
		return "", "", err
	}
	if customFields, err = encodeJSON(f.CustomFields, "[]"); err != nil {
		return "", "", err
	}
	return selectors, customFields, nil
}

func (s *Store) ListFeeds(ctx context.Context, enabledOnly bool) ([]domain.Feed, error) {
	q := s.sb.Select(feedColumns...).From("feeds").OrderBy("id")
	if enabledOnly {
		q = q.Where(sq.Eq{"enabled": true})
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer rows.Close()
	var out []domain.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) GetFeed(ctx context.Context, id int64) (domain.Feed, error) {
	q, args, err := s.sb.Select(feedColumns...).From("feeds").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Feed{}, err
	}
	f, err := scanFeed(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return f, fmt.Errorf("feed %d: %w", id, ErrNotFound)
	}
	return f, err
}

func (s *Store) FeedByURL(ctx context.Context, url string) (domain.Feed, error) {
	q, args, err := s.sb.Select(feedColumns...).From("feeds").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return domain.Feed{}, err
	}
	f, err := scanFeed(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return f, ErrNotFound
	}
	return f, err
}

func (s *Store) CreateFeed(ctx context.Context, f domain.Feed) (domain.Feed, error) {
	selectors, customFields, err := feedValues(f)
	if err != nil {
		return f, err
	}
	q := s.sb.Insert("feeds").
		Columns("name", "url", "body_selector", "structured_data", "metadata_selectors", "custom_fields", "enabled").
		Values(f.Name, f.URL, f.Extraction.BodySelector, f.Extraction.StructuredData, selectors, customFields, f.Enabled).
		Suffix("RETURNING id")
	if err := s.scanOne(ctx, q, &f.ID); err != nil {
		return f, fmt.Errorf("create feed %s: %w", f.URL, err)
	}
	return f, nil
}

// SeedFeed inserts f unless a feed with the same URL exists. Existing rows
// win so edits made through the API survive restarts.
func (s *Store) SeedFeed(ctx context.Context, f domain.Feed) (domain.Feed, bool, error) {
	existing, err := s.FeedByURL(ctx, f.URL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return f, false, err
	}
	created, err := s.CreateFeed(ctx, f)
	return created, err == nil, err
}

func (s *Store) UpdateFeed(ctx context.Context, f domain.Feed) error {
	selectors, customFields, err := feedValues(f)
	if err != nil {
		return err
	}
	q := s.sb.Update("feeds").
		Set("name", f.Name).
		Set("url", f.URL).
		Set("body_selector", f.Extraction.BodySelector).
		Set("structured_data", f.Extraction.StructuredData).
		Set("metadata_selectors", selectors).
		Set("custom_fields", customFields).
		Set("enabled", f.Enabled).
		Where(sq.Eq{"id": f.ID})
	if err := affectedOne(s.exec(ctx, q)); err != nil {
		return fmt.Errorf("update feed %d: %w", f.ID, err)
	}
	return nil
}

// DeleteFeed removes the feed together with its articles and their assessments.
func (s *Store) DeleteFeed(ctx context.Context, id int64) error {
	if err := affectedOne(s.exec(ctx, s.sb.Delete("feeds").Where(sq.Eq{"id": id}))); err != nil {
		return fmt.Errorf("delete feed %d: %w", id, err)
	}
	return nil
}

func (s *Store) MarkFeedPolled(ctx context.Context, id int64, at time.Time) error {
	_, err := s.exec(ctx, s.sb.Update("feeds").Set("last_polled_at", toMillis(at)).Where(sq.Eq{"id": id}))
	return err
}
