package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"feedsieve/internal/domain"
)

// NewArticle is what the deduplicator inserts for a feed item.
type NewArticle struct {
	FeedID      int64
	GUID        string
	Title       *string
	URL         string
	PublishedAt *time.Time
	Metadata    domain.Metadata
}

// ArticleFilter narrows ListArticles. Zero values mean "any".
type ArticleFilter struct {
	Status domain.Status
	FeedID int64
	Since  time.Time
	Limit  int
}

// articleColumns selects raw_html only when asked; otherwise it yields an
// empty string for fetched articles so Phase still sees them as fetched.
func articleColumns(withRaw bool) []string {
	raw := "CASE WHEN raw_html IS NULL THEN NULL ELSE '' END AS raw_html"
	if withRaw {
		raw = "raw_html"
	}
	return []string{"id", "feed_id", "guid", "title", "url", "published_at", raw, "fetched_at", "extracted_text", "metadata", "status", "fetch_retry_count", "assessment_retry_count", "created_at"}
}

func scanArticle(r rowScanner) (domain.Article, error) {
	var (
		a         domain.Article
		title     sql.NullString
		published sql.NullInt64
		raw       sql.NullString
		fetched   sql.NullInt64
		text      sql.NullString
		meta      string
		status    string
		created   int64
	)
	if err := r.Scan(&a.ID, &a.FeedID, &a.GUID, &title, &a.URL, &published, &raw, &fetched, &text, &meta, &status, &a.State.FetchRetries, &a.State.AssessmentRetries, &created); err != nil {
		return a, err
	}
	st, err := domain.ParseStatus(status)
	if err != nil {
		return a, fmt.Errorf("article %d: %w", a.ID, err)
	}
	a.State.Status = st
	m, err := domain.ParseMetadata(meta)
	if err != nil {
		return a, fmt.Errorf("article %d metadata: %w", a.ID, err)
	}
	a.Metadata = m
	a.Title = strPtr(title)
	a.PublishedAt = timePtr(published)
	a.RawHTML = strPtr(raw)
	a.FetchedAt = timePtr(fetched)
	a.ExtractedText = strPtr(text)
	a.CreatedAt = fromMillis(created)
	return a, nil
}

func (s *Store) listArticles(ctx context.Context, q sq.SelectBuilder) ([]domain.Article, error) {
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func withLimit(q sq.SelectBuilder, limit int) sq.SelectBuilder {
	if limit > 0 {
		return q.Limit(uint64(limit))
	}
	return q
}

func (s *Store) ArticleExists(ctx context.Context, guid string) (bool, error) {
	var n int
	err := s.scanOne(ctx, s.sb.Select("1").From("articles").Where(sq.Eq{"guid": guid}).Limit(1), &n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check guid %q: %w", guid, err)
	}
	return true, nil
}

// InsertArticle stores a new pending article. inserted is false when the
// guid already exists; the row is then left untouched.
func (s *Store) InsertArticle(ctx context.Context, a NewArticle) (id int64, inserted bool, err error) {
	meta, err := a.Metadata.JSON()
	if err != nil {
		return 0, false, err
	}
	st := domain.NewArticleState()
	q := s.sb.Insert("articles").
		Columns("feed_id", "guid", "title", "url", "published_at", "metadata", "status", "fetch_retry_count", "assessment_retry_count", "created_at").
		Values(a.FeedID, a.GUID, nullString(a.Title), a.URL, nullMillis(a.PublishedAt), meta, string(st.Status), st.FetchRetries, st.AssessmentRetries, toMillis(time.Now())).
		Suffix("ON CONFLICT (guid) DO NOTHING RETURNING id")
	err = s.scanOne(ctx, q, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("insert article %q: %w", a.GUID, err)
	}
	return id, true, nil
}

// PendingFetch returns pending articles without raw HTML whose fetch budget
// is not exhausted.
func (s *Store) PendingFetch(ctx context.Context, limit int) ([]domain.Article, error) {
	q := s.sb.Select(articleColumns(false)...).From("articles").
		Where(sq.Eq{"status": string(domain.StatusPending), "raw_html": nil}).
		Where(sq.Lt{"fetch_retry_count": domain.MaxRetries}).
		OrderBy("id")
	out, err := s.listArticles(ctx, withLimit(q, limit))
	if err != nil {
		return nil, fmt.Errorf("pending fetch: %w", err)
	}
	return out, nil
}

func (s *Store) SaveRawHTML(ctx context.Context, id int64, html string, fetchedAt time.Time) error {
	q := s.sb.Update("articles").Set("raw_html", html).Set("fetched_at", toMillis(fetchedAt)).Where(sq.Eq{"id": id})
	if err := affectedOne(s.exec(ctx, q)); err != nil {
		return fmt.Errorf("save raw html %d: %w", id, err)
	}
	return nil
}

// SaveState persists the status and both retry counters.
func (s *Store) SaveState(ctx context.Context, id int64, st domain.ArticleState) error {
	q := s.sb.Update("articles").
		Set("status", string(st.Status)).
		Set("fetch_retry_count", st.FetchRetries).
		Set("assessment_retry_count", st.AssessmentRetries).
		Where(sq.Eq{"id": id})
	if err := affectedOne(s.exec(ctx, q)); err != nil {
		return fmt.Errorf("save state %d: %w", id, err)
	}
	return nil
}

// PendingExtraction returns pending articles that were fetched but not yet
// extracted. Raw HTML is included.
func (s *Store) PendingExtraction(ctx context.Context, limit int) ([]domain.Article, error) {
	q := s.sb.Select(articleColumns(true)...).From("articles").
		Where(sq.Eq{"status": string(domain.StatusPending), "extracted_text": nil}).
		Where(sq.NotEq{"raw_html": nil}).
		OrderBy("id")
	out, err := s.listArticles(ctx, withLimit(q, limit))
	if err != nil {
		return nil, fmt.Errorf("pending extraction: %w", err)
	}
	return out, nil
}

func (s *Store) SaveExtraction(ctx context.Context, id int64, text string, meta domain.Metadata) error {
	m, err := meta.JSON()
	if err != nil {
		return err
	}
	q := s.sb.Update("articles").Set("extracted_text", text).Set("metadata", m).Where(sq.Eq{"id": id})
	if err := affectedOne(s.exec(ctx, q)); err != nil {
		return fmt.Errorf("save extraction %d: %w", id, err)
	}
	return nil
}

// PendingAssessment returns pending extracted articles whose assessment
// budget is not exhausted.
func (s *Store) PendingAssessment(ctx context.Context, limit int) ([]domain.Article, error) {
	q := s.sb.Select(articleColumns(false)...).From("articles").
		Where(sq.Eq{"status": string(domain.StatusPending)}).
		Where(sq.NotEq{"extracted_text": nil}).
		Where(sq.Lt{"assessment_retry_count": domain.MaxRetries}).
		OrderBy("id")
	out, err := s.listArticles(ctx, withLimit(q, limit))
	if err != nil {
		return nil, fmt.Errorf("pending assessment: %w", err)
	}
	return out, nil
}

func (s *Store) GetArticle(ctx context.Context, id int64) (domain.Article, error) {
	q, args, err := s.sb.Select(articleColumns(false)...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Article{}, err
	}
	a, err := scanArticle(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return a, fmt.Errorf("article %d: %w", id, ErrNotFound)
	}
	return a, err
}

// ListArticles returns articles newest first.
func (s *Store) ListArticles(ctx context.Context, f ArticleFilter) ([]domain.Article, error) {
	q := s.sb.Select(articleColumns(false)...).From("articles").OrderBy("id DESC")
	if f.Status != "" {
		q = q.Where(sq.Eq{"status": string(f.Status)})
	}
	if f.FeedID != 0 {
		q = q.Where(sq.Eq{"feed_id": f.FeedID})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": toMillis(f.Since)})
	}
	out, err := s.listArticles(ctx, withLimit(q, f.Limit))
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	return out, nil
}

// RequeueArticle puts a failed article back at the start of the pipeline.
// Content already fetched or extracted is kept.
func (s *Store) RequeueArticle(ctx context.Context, id int64) error {
	a, err := s.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	if a.State.Status != domain.StatusFailed {
		return fmt.Errorf("article %d is %s, only failed articles can be requeued", id, a.State.Status)
	}
	return s.SaveState(ctx, id, a.State.Requeue())
}
