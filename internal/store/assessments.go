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

// AssessmentFilter narrows ListAssessments. Zero values mean "any".
type AssessmentFilter struct {
	ArticleID int64
	TopicID   int64
	Relevant  *bool
	Since     time.Time
	Limit     int
}

var assessmentColumns = []string{"id", "article_id", "topic_id", "relevant", "summary", "tags", "provider", "model", "assessed_at"}

func scanAssessment(r rowScanner) (domain.Assessment, error) {
	var (
		a       domain.Assessment
		summary sql.NullString
		tags    string
		at      int64
	)
	if err := r.Scan(&a.ID, &a.ArticleID, &a.TopicID, &a.Relevant, &summary, &tags, &a.Provider, &a.Model, &at); err != nil {
		return a, err
	}
	a.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &a.Tags); err != nil {
			return a, fmt.Errorf("assessment %d tags: %w", a.ID, err)
		}
	}
	a.Summary = strPtr(summary)
	a.AssessedAt = fromMillis(at)
	return a, nil
}

func (s *Store) AssessmentExists(ctx context.Context, articleID, topicID int64) (bool, error) {
	var n int
	q := s.sb.Select("1").From("assessments").Where(sq.Eq{"article_id": articleID, "topic_id": topicID}).Limit(1)
	err := s.scanOne(ctx, q, &n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check assessment %d/%d: %w", articleID, topicID, err)
	}
	return true, nil
}

// InsertAssessment stores a verdict. The (article, topic) pair is unique;
// a second insert for the same pair is ignored and reports false.
func (s *Store) InsertAssessment(ctx context.Context, a domain.Assessment) (bool, error) {
	tags, err := encodeJSON(a.Tags, "[]")
	if err != nil {
		return false, err
	}
	q := s.sb.Insert("assessments").
		Columns("article_id", "topic_id", "relevant", "summary", "tags", "provider", "model", "assessed_at").
		Values(a.ArticleID, a.TopicID, a.Relevant, nullString(a.Summary), tags, a.Provider, a.Model, toMillis(a.AssessedAt)).
		Suffix("ON CONFLICT (article_id, topic_id) DO NOTHING")
	res, err := s.exec(ctx, q)
	if err != nil {
		return false, fmt.Errorf("insert assessment %d/%d: %w", a.ArticleID, a.TopicID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListAssessments(ctx context.Context, f AssessmentFilter) ([]domain.Assessment, error) {
	q := s.sb.Select(assessmentColumns...).From("assessments").OrderBy("assessed_at DESC", "id DESC")
	if f.ArticleID != 0 {
		q = q.Where(sq.Eq{"article_id": f.ArticleID})
	}
	if f.TopicID != 0 {
		q = q.Where(sq.Eq{"topic_id": f.TopicID})
	}
	if f.Relevant != nil {
		q = q.Where(sq.Eq{"relevant": *f.Relevant})
	}
	if !f.Since.IsZero() {
		q = q.Where(sq.Gt{"assessed_at": toMillis(f.Since)})
	}
	rows, err := s.query(ctx, withLimit(q, f.Limit))
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()
	var out []domain.Assessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// RelevantItem is one relevant verdict joined with its article and topic.
type RelevantItem struct {
	ArticleID   int64
	TopicName   string
	Title       string
	URL         string
	PublishedAt *time.Time
	Summary     string
	Tags        []string
	AssessedAt  time.Time
}

// RelevantBetween returns relevant verdicts with since < assessed_at <= until.
func (s *Store) RelevantBetween(ctx context.Context, since, until time.Time) ([]RelevantItem, error) {
	q := s.sb.Select("a.id", "t.name", "a.title", "a.url", "a.published_at", "s.summary", "s.tags", "s.assessed_at").
		From("assessments s").
		Join("articles a ON a.id = s.article_id").
		Join("topics t ON t.id = s.topic_id").
		Where(sq.Eq{"s.relevant": true}).
		Where(sq.Gt{"s.assessed_at": toMillis(since)}).
		Where(sq.LtOrEq{"s.assessed_at": toMillis(until)}).
		OrderBy("t.name", "s.id")
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("relevant assessments: %w", err)
	}
	defer rows.Close()
	var out []RelevantItem
	for rows.Next() {
		var (
			it        RelevantItem
			title     sql.NullString
			published sql.NullInt64
			summary   sql.NullString
			tags      string
			at        int64
		)
		if err := rows.Scan(&it.ArticleID, &it.TopicName, &title, &it.URL, &published, &summary, &tags, &at); err != nil {
			return nil, err
		}
		it.Title = title.String
		it.PublishedAt = timePtr(published)
		it.Summary = summary.String
		it.AssessedAt = fromMillis(at)
		if err := json.Unmarshal([]byte(tags), &it.Tags); err != nil {
			return nil, fmt.Errorf("tags for article %d: %w", it.ArticleID, err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
