package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"feedsieve/internal/domain"
)

// LastSuccessfulDigest returns the sent_at of the newest successful digest
// record, or the unix epoch when there is none.
func (s *Store) LastSuccessfulDigest(ctx context.Context) (time.Time, error) {
	var last sql.NullInt64
	q := s.sb.Select("MAX(sent_at)").From("digest_records").Where(sq.Eq{"status": string(domain.DigestSuccess)})
	if err := s.scanOne(ctx, q, &last); err != nil {
		return time.Time{}, fmt.Errorf("last successful digest: %w", err)
	}
	if !last.Valid {
		return time.Unix(0, 0).UTC(), nil
	}
	return fromMillis(last.Int64), nil
}

// InsertDigestRecord appends one digest outcome.
func (s *Store) InsertDigestRecord(ctx context.Context, r domain.DigestRecord) (domain.DigestRecord, error) {
	q := s.sb.Insert("digest_records").
		Columns("sent_at", "article_count", "recipient", "status", "message_id", "error").
		Values(toMillis(r.SentAt), r.ArticleCount, r.Recipient, string(r.Status), nullString(r.MessageID), nullString(r.Error)).
		Suffix("RETURNING id")
	if err := s.scanOne(ctx, q, &r.ID); err != nil {
		return r, fmt.Errorf("insert digest record: %w", err)
	}
	return r, nil
}

// ListDigestRecords returns records newest first.
func (s *Store) ListDigestRecords(ctx context.Context, limit int) ([]domain.DigestRecord, error) {
	q := s.sb.Select("id", "sent_at", "article_count", "recipient", "status", "message_id", "error").
		From("digest_records").OrderBy("sent_at DESC", "id DESC")
	rows, err := s.query(ctx, withLimit(q, limit))
	if err != nil {
		return nil, fmt.Errorf("list digest records: %w", err)
	}
	defer rows.Close()
	var out []domain.DigestRecord
	for rows.Next() {
		var (
			r      domain.DigestRecord
			sent   int64
			status string
			msgID  sql.NullString
			errMsg sql.NullString
		)
		if err := rows.Scan(&r.ID, &sent, &r.ArticleCount, &r.Recipient, &status, &msgID, &errMsg); err != nil {
			return nil, err
		}
		r.SentAt = fromMillis(sent)
		r.Status = domain.DigestStatus(status)
		r.MessageID = strPtr(msgID)
		r.Error = strPtr(errMsg)
		out = append(out, r)
	}
	return out, rows.Err()
}
