// Package server exposes the article store to MCP clients over stdio.
package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"feedsieve/internal/domain"
	"feedsieve/internal/store"
	"feedsieve/internal/version"
)

const previewChars = 400

type ListArticlesParams struct {
	Hours       int    `json:"hours,omitempty"`
	Status      string `json:"status,omitempty"`
	FeedID      int64  `json:"feed_id,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	IncludeText bool   `json:"include_text,omitempty"`
}

type GetArticleParams struct {
	ID int64 `json:"id"`
}

type ListRelevantParams struct {
	Hours int    `json:"hours,omitempty"`
	Topic string `json:"topic,omitempty"`
}

type ListDigestsParams struct {
	Limit int `json:"limit,omitempty"`
}

type ListTopicsParams struct{}

type Server struct {
	store *store.Store
	mcp   *mcp.Server
	now   func() time.Time
}

func New(s *store.Store) *Server {
	srv := &Server{
		store: s,
		mcp:   mcp.NewServer(&mcp.Implementation{Name: "feedsieve", Version: version.Version}, nil),
		now:   time.Now,
	}
	mcp.AddTool(srv.mcp, &mcp.Tool{Name: "list_articles", Description: "List ingested articles, newest first, optionally filtered by status (pending, assessed, failed), feed and age in hours"}, srv.handleListArticles)
	mcp.AddTool(srv.mcp, &mcp.Tool{Name: "get_article", Description: "Get one article with its extracted text and every topic verdict"}, srv.handleGetArticle)
	mcp.AddTool(srv.mcp, &mcp.Tool{Name: "list_relevant", Description: "List articles judged relevant in the last N hours, grouped by topic"}, srv.handleListRelevant)
	mcp.AddTool(srv.mcp, &mcp.Tool{Name: "list_digests", Description: "List recent digest deliveries and their outcome"}, srv.handleListDigests)
	mcp.AddTool(srv.mcp, &mcp.Tool{Name: "list_topics", Description: "List the topics articles are assessed against"}, srv.handleListTopics)
	return srv
}

// Run serves over stdin/stdout until ctx is done or the client goes away.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

func (s *Server) handleListArticles(ctx context.Context, _ *mcp.CallToolRequest, p ListArticlesParams) (*mcp.CallToolResult, any, error) {
	f := store.ArticleFilter{FeedID: p.FeedID, Limit: p.Limit}
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if p.Hours > 0 {
		f.Since = s.now().Add(-time.Duration(p.Hours) * time.Hour)
	}
	if p.Status != "" {
		st, err := domain.ParseStatus(strings.ToLower(strings.TrimSpace(p.Status)))
		if err != nil {
			return nil, failure("Unknown status filter", err), nil
		}
		f.Status = st
	}
	arts, err := s.store.ListArticles(ctx, f)
	if err != nil {
		return nil, failure("Query failed while reading articles", err), nil
	}
	items := make([]map[string]any, 0, len(arts))
	for _, a := range arts {
		items = append(items, serialize(a, p.IncludeText))
	}
	return nil, map[string]any{"count": len(items), "items": items}, nil
}

func (s *Server) handleGetArticle(ctx context.Context, _ *mcp.CallToolRequest, p GetArticleParams) (*mcp.CallToolResult, any, error) {
	a, err := s.store.GetArticle(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, map[string]any{"ok": false, "message": fmt.Sprintf("No article with id %d", p.ID)}, nil
	}
	if err != nil {
		return nil, nil, err
	}
	as, err := s.store.ListAssessments(ctx, store.AssessmentFilter{ArticleID: a.ID})
	if err != nil {
		return nil, nil, err
	}
	topics, err := s.topicNames(ctx)
	if err != nil {
		return nil, nil, err
	}
	verdicts := make([]map[string]any, 0, len(as))
	for _, v := range as {
		m := map[string]any{
			"topic":       topics[v.TopicID],
			"relevant":    v.Relevant,
			"tags":        v.Tags,
			"assessed_at": v.AssessedAt,
			"model":       v.Model,
		}
		if v.Summary != nil {
			m["summary"] = *v.Summary
		}
		verdicts = append(verdicts, m)
	}
	out := serialize(a, true)
	out["verdicts"] = verdicts
	return nil, out, nil
}

func (s *Server) handleListRelevant(ctx context.Context, _ *mcp.CallToolRequest, p ListRelevantParams) (*mcp.CallToolResult, any, error) {
	if p.Hours <= 0 {
		p.Hours = 24
	}
	until := s.now()
	items, err := s.store.RelevantBetween(ctx, until.Add(-time.Duration(p.Hours)*time.Hour), until)
	if err != nil {
		return nil, failure("Query failed while reading assessments", err), nil
	}
	groups := map[string][]map[string]any{}
	count := 0
	for _, it := range items {
		if p.Topic != "" && !strings.EqualFold(p.Topic, it.TopicName) {
			continue
		}
		count++
		groups[it.TopicName] = append(groups[it.TopicName], map[string]any{
			"article_id":   it.ArticleID,
			"title":        it.Title,
			"url":          it.URL,
			"published_at": it.PublishedAt,
			"summary":      it.Summary,
			"tags":         it.Tags,
		})
	}
	return nil, map[string]any{"count": count, "topics": groups}, nil
}

func (s *Server) handleListDigests(ctx context.Context, _ *mcp.CallToolRequest, p ListDigestsParams) (*mcp.CallToolResult, any, error) {
	if p.Limit <= 0 {
		p.Limit = 20
	}
	recs, err := s.store.ListDigestRecords(ctx, p.Limit)
	if err != nil {
		return nil, failure("Query failed while reading digest records", err), nil
	}
	if recs == nil {
		recs = []domain.DigestRecord{}
	}
	return nil, map[string]any{"count": len(recs), "items": recs}, nil
}

func (s *Server) handleListTopics(ctx context.Context, _ *mcp.CallToolRequest, _ ListTopicsParams) (*mcp.CallToolResult, any, error) {
	topics, err := s.store.ListTopics(ctx, false)
	if err != nil {
		return nil, failure("Query failed while reading topics", err), nil
	}
	if topics == nil {
		topics = []domain.Topic{}
	}
	return nil, map[string]any{"count": len(topics), "items": topics}, nil
}

func (s *Server) topicNames(ctx context.Context) (map[int64]string, error) {
	topics, err := s.store.ListTopics(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(topics))
	for _, t := range topics {
		names[t.ID] = t.Name
	}
	return names, nil
}

// serialize renders an article for tool output. Without includeText the
// extracted text is cut to a short preview.
func serialize(a domain.Article, includeText bool) map[string]any {
	m := map[string]any{
		"id":         a.ID,
		"feed_id":    a.FeedID,
		"guid":       a.GUID,
		"title":      a.TitleOr(""),
		"url":        a.URL,
		"status":     a.State.Status,
		"phase":      a.Phase(),
		"created_at": a.CreatedAt,
		"metadata":   a.Metadata,
	}
	if a.PublishedAt != nil {
		m["published_at"] = *a.PublishedAt
	}
	text := ""
	if a.ExtractedText != nil {
		text = *a.ExtractedText
	}
	if includeText {
		m["text"] = text
	} else {
		m["text_preview"] = preview(text)
	}
	return m
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= previewChars {
		return s
	}
	return string(r[:previewChars]) + "..."
}

func failure(msg string, err error) map[string]any {
	return map[string]any{"ok": false, "message": msg, "error": err.Error()}
}
