package ingest

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"feedsieve/internal/domain"
	"feedsieve/internal/llm"
	"feedsieve/internal/store"
)

type AssessorConfig struct {
	// MaxChars truncates article text before it is sent to the model.
	MaxChars   int
	BatchLimit int
}

type AssessReport struct {
	Articles int
	Calls    int
	Inserted int
	Assessed int
	Retrying int
	Failed   int
}

// Assessor records one verdict per (article, topic) pair.
type Assessor struct {
	store  *store.Store
	client llm.Client
	cfg    AssessorConfig
	logger *slog.Logger
	now    func() time.Time
}

func NewAssessor(s *store.Store, client llm.Client, cfg AssessorConfig, logger *slog.Logger) *Assessor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	return &Assessor{store: s, client: client, cfg: cfg, logger: logger.With("component", "assessor"), now: time.Now}
}

// Run assesses every eligible article against every enabled topic. Pairs
// that already have a verdict are skipped, so re-running only redoes what
// failed before.
func (a *Assessor) Run(ctx context.Context) (AssessReport, error) {
	var rep AssessReport
	topics, err := a.store.ListTopics(ctx, true)
	if err != nil {
		return rep, err
	}
	if len(topics) == 0 {
		a.logger.Info("no enabled topics, nothing to assess")
		return rep, nil
	}
	articles, err := a.store.PendingAssessment(ctx, a.cfg.BatchLimit)
	if err != nil {
		return rep, err
	}

	for _, art := range articles {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		anyFailed, aborted := a.assessArticle(ctx, art, topics, &rep)
		if aborted {
			return rep, ctx.Err()
		}
		rep.Articles++
		next, err := art.State.AfterAssessment(anyFailed)
		if err != nil {
			a.logger.Error("assessment on terminal article", "article_id", art.ID, "error", err)
			continue
		}
		if err := a.store.SaveState(ctx, art.ID, next); err != nil {
			a.logger.Error("record assessment outcome", "article_id", art.ID, "error", err)
			continue
		}
		switch next.Status {
		case domain.StatusAssessed:
			rep.Assessed++
		case domain.StatusFailed:
			rep.Failed++
			a.logger.Warn("assessment retries exhausted", "article_id", art.ID)
		default:
			rep.Retrying++
		}
	}
	if rep.Articles > 0 {
		a.logger.Info("assessment pass done", "articles", rep.Articles, "calls", rep.Calls, "assessed", rep.Assessed, "retrying", rep.Retrying, "failed", rep.Failed)
	}
	return rep, nil
}

// assessArticle walks the topics sequentially so the existence check and
// the insert for one pair never interleave with another call for it.
func (a *Assessor) assessArticle(ctx context.Context, art domain.Article, topics []domain.Topic, rep *AssessReport) (anyFailed, aborted bool) {
	log := a.logger.With("article_id", art.ID)
	text := ""
	if art.ExtractedText != nil {
		text = truncateRunes(*art.ExtractedText, a.cfg.MaxChars)
	}
	for _, t := range topics {
		exists, err := a.store.AssessmentExists(ctx, art.ID, t.ID)
		if err != nil {
			log.Error("check existing assessment", "topic", t.Name, "error", err)
			anyFailed = true
			continue
		}
		if exists {
			continue
		}

		rep.Calls++
		v, err := a.client.Assess(ctx, t, text)
		if err != nil {
			if ctx.Err() != nil {
				return anyFailed, true
			}
			log.Warn("assessment call failed", "topic", t.Name, "error", err)
			anyFailed = true
			continue
		}

		var summary *string
		if v.Summary != "" {
			summary = &v.Summary
		}
		inserted, err := a.store.InsertAssessment(ctx, domain.Assessment{
			ArticleID:  art.ID,
			TopicID:    t.ID,
			Relevant:   v.Relevant,
			Summary:    summary,
			Tags:       v.Tags,
			Provider:   v.Provider,
			Model:      v.Model,
			AssessedAt: a.now(),
		})
		if err != nil {
			log.Error("store assessment", "topic", t.Name, "error", err)
			anyFailed = true
			continue
		}
		if inserted {
			rep.Inserted++
		}
		log.Debug("assessed", "topic", t.Name, "relevant", v.Relevant)
	}
	return anyFailed, false
}

func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
