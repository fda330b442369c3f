package store

import (
	"context"
	"fmt"
	"strings"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS feeds (
            id {{id}},
            name TEXT NOT NULL,
            url TEXT NOT NULL UNIQUE,
            body_selector TEXT NOT NULL DEFAULT '',
            structured_data {{bool}} NOT NULL DEFAULT {{false}},
            metadata_selectors TEXT NOT NULL DEFAULT '{}',
            custom_fields TEXT NOT NULL DEFAULT '[]',
            enabled {{bool}} NOT NULL DEFAULT {{true}},
            last_polled_at BIGINT
        )`,
	`CREATE TABLE IF NOT EXISTS topics (
            id {{id}},
            name TEXT NOT NULL UNIQUE,
            description TEXT NOT NULL DEFAULT '',
            enabled {{bool}} NOT NULL DEFAULT {{true}}
        )`,
	`CREATE TABLE IF NOT EXISTS articles (
            id {{id}},
            feed_id BIGINT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
            guid TEXT NOT NULL UNIQUE,
            title TEXT,
            url TEXT NOT NULL,
            published_at BIGINT,
            raw_html TEXT,
            fetched_at BIGINT,
            extracted_text TEXT,
            metadata TEXT NOT NULL DEFAULT '{}',
            status TEXT NOT NULL DEFAULT 'pending',
            fetch_retry_count INTEGER NOT NULL DEFAULT 0,
            assessment_retry_count INTEGER NOT NULL DEFAULT 0,
            created_at BIGINT NOT NULL
        )`,
	`CREATE INDEX IF NOT EXISTS idx_articles_status ON articles(status)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_feed_id ON articles(feed_id)`,
	`CREATE TABLE IF NOT EXISTS assessments (
            id {{id}},
            article_id BIGINT NOT NULL REFERENCES articles(id) ON DELETE CASCADE,
            topic_id BIGINT NOT NULL REFERENCES topics(id) ON DELETE CASCADE,
            relevant {{bool}} NOT NULL,
            summary TEXT,
            tags TEXT NOT NULL DEFAULT '[]',
            provider TEXT NOT NULL,
            model TEXT NOT NULL,
            assessed_at BIGINT NOT NULL,
            UNIQUE (article_id, topic_id)
        )`,
	`CREATE INDEX IF NOT EXISTS idx_assessments_relevant_at ON assessments(relevant, assessed_at)`,
	`CREATE TABLE IF NOT EXISTS digest_records (
            id {{id}},
            sent_at BIGINT NOT NULL,
            article_count INTEGER NOT NULL,
            recipient TEXT NOT NULL,
            status TEXT NOT NULL,
            message_id TEXT,
            error TEXT
        )`,
	`CREATE INDEX IF NOT EXISTS idx_digest_records_status_sent ON digest_records(status, sent_at)`,
}

func (s *Store) schemaReplacer() *strings.Replacer {
	if s.dialect == Postgres {
		return strings.NewReplacer("{{id}}", "BIGSERIAL PRIMARY KEY", "{{bool}}", "BOOLEAN", "{{true}}", "TRUE", "{{false}}", "FALSE")
	}
	return strings.NewReplacer("{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT", "{{bool}}", "INTEGER", "{{true}}", "1", "{{false}}", "0")
}

// InitSchema creates every table and index that does not exist yet.
func (s *Store) InitSchema(ctx context.Context) error {
	r := s.schemaReplacer()
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, r.Replace(stmt)); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
