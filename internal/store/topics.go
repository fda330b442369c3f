package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"feedsieve/internal/domain"
)

var topicColumns = []string{"id", "name", "description", "enabled"}

func scanTopic(r rowScanner) (domain.Topic, error) {
	var t domain.Topic
	err := r.Scan(&t.ID, &t.Name, &t.Description, &t.Enabled)
	return t, err
}

func (s *Store) ListTopics(ctx context.Context, enabledOnly bool) ([]domain.Topic, error) {
	q := s.sb.Select(topicColumns...).From("topics").OrderBy("name")
	if enabledOnly {
		q = q.Where(sq.Eq{"enabled": true})
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()
	var out []domain.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTopic(ctx context.Context, id int64) (domain.Topic, error) {
	q, args, err := s.sb.Select(topicColumns...).From("topics").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Topic{}, err
	}
	t, err := scanTopic(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *Store) CreateTopic(ctx context.Context, t domain.Topic) (domain.Topic, error) {
	q := s.sb.Insert("topics").
		Columns("name", "description", "enabled").
		Values(t.Name, t.Description, t.Enabled).
		Suffix("RETURNING id")
	if err := s.scanOne(ctx, q, &t.ID); err != nil {
		return t, fmt.Errorf("create topic %q: %w", t.Name, err)
	}
	return t, nil
}

func (s *Store) TopicByName(ctx context.Context, name string) (domain.Topic, error) {
	q, args, err := s.sb.Select(topicColumns...).From("topics").Where(sq.Eq{"name": name}).ToSql()
	if err != nil {
		return domain.Topic{}, err
	}
	t, err := scanTopic(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return t, fmt.Errorf("topic %q: %w", name, ErrNotFound)
	}
	return t, err
}

// SeedTopic inserts t unless a topic with the same name exists.
func (s *Store) SeedTopic(ctx context.Context, t domain.Topic) (domain.Topic, bool, error) {
	existing, err := s.TopicByName(ctx, t.Name)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return t, false, err
	}
	created, err := s.CreateTopic(ctx, t)
	return created, err == nil, err
}

func (s *Store) UpdateTopic(ctx context.Context, t domain.Topic) error {
	q := s.sb.Update("topics").
		Set("name", t.Name).
		Set("description", t.Description).
		Set("enabled", t.Enabled).
		Where(sq.Eq{"id": t.ID})
	if err := affectedOne(s.exec(ctx, q)); err != nil {
		return fmt.Errorf("update topic %d: %w", t.ID, err)
	}
	return nil
}

func (s *Store) DeleteTopic(ctx context.Context, id int64) error {
	if err := affectedOne(s.exec(ctx, s.sb.Delete("topics").Where(sq.Eq{"id": id}))); err != nil {
		return fmt.Errorf("delete topic %d: %w", id, err)
	}
	return nil
}
