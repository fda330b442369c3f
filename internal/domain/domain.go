// Package domain holds the entities shared by the ingestion pipeline, the
// digest and the read surfaces.
package domain

import (
	"encoding/json"
	"time"
)

// ExtractionConfig tells the extractor where the article body and the extra
// metadata live on a feed's pages.
type ExtractionConfig struct {
	BodySelector      string            `json:"body_selector,omitempty" yaml:"body_selector"`
	StructuredData    bool              `json:"structured_data" yaml:"structured_data"`
	MetadataSelectors map[string]string `json:"metadata_selectors,omitempty" yaml:"metadata_selectors"`
}

type Feed struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	URL          string           `json:"url"`
	Extraction   ExtractionConfig `json:"extraction"`
	CustomFields []string         `json:"custom_fields,omitempty"`
	Enabled      bool             `json:"enabled"`
	LastPolledAt *time.Time       `json:"last_polled_at,omitempty"`
}

// Metadata is the free-form bag stored with an article. RSS fields live at
// the top level, extraction output under StructuredDataKey.
type Metadata map[string]any

const StructuredDataKey = "structured_data"

func (m Metadata) JSON() (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func ParseMetadata(s string) (Metadata, error) {
	m := Metadata{}
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// String returns a top-level string field, or "" when absent.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// WithStructuredData returns a copy of m with the structured data stored
// under StructuredDataKey. Existing top-level fields are left untouched.
func (m Metadata) WithStructuredData(items []map[string]any) Metadata {
	out := make(Metadata, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if len(items) == 0 {
		return out
	}
	list := make([]any, 0, len(items))
	for _, it := range items {
		list = append(list, it)
	}
	out[StructuredDataKey] = list
	return out
}

type Article struct {
	ID            int64        `json:"id"`
	FeedID        int64        `json:"feed_id"`
	GUID          string       `json:"guid"`
	Title         *string      `json:"title,omitempty"`
	URL           string       `json:"url"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
	RawHTML       *string      `json:"-"`
	FetchedAt     *time.Time   `json:"fetched_at,omitempty"`
	ExtractedText *string      `json:"extracted_text,omitempty"`
	Metadata      Metadata     `json:"metadata"`
	State         ArticleState `json:"state"`
	CreatedAt     time.Time    `json:"created_at"`
}

func (a Article) TitleOr(fallback string) string {
	if a.Title != nil && *a.Title != "" {
		return *a.Title
	}
	return fallback
}

// Phase derives the pipeline position of the article from its state and
// which content columns are filled.
func (a Article) Phase() Phase {
	return a.State.Phase(a.RawHTML != nil, a.ExtractedText != nil)
}

type Topic struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// Verdict is what a language model returns for one (topic, text) pair.
type Verdict struct {
	Relevant bool     `json:"relevant"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Provider string   `json:"-"`
	Model    string   `json:"-"`
}

type Assessment struct {
	ID         int64     `json:"id"`
	ArticleID  int64     `json:"article_id"`
	TopicID    int64     `json:"topic_id"`
	Relevant   bool      `json:"relevant"`
	Summary    *string   `json:"summary,omitempty"`
	Tags       []string  `json:"tags"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	AssessedAt time.Time `json:"assessed_at"`
}

type DigestStatus string

const (
	DigestSuccess DigestStatus = "success"
	DigestFailed  DigestStatus = "failed"
)

type DigestRecord struct {
	ID           int64        `json:"id"`
	SentAt       time.Time    `json:"sent_at"`
	ArticleCount int          `json:"article_count"`
	Recipient    string       `json:"recipient"`
	Status       DigestStatus `json:"status"`
	MessageID    *string      `json:"message_id,omitempty"`
	Error        *string      `json:"error,omitempty"`
}
