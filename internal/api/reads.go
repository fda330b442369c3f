package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"feedsieve/internal/apperr"
	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

type readRouter struct {
	store *store.Store
}

type articleResponse struct {
	domain.Article
	Phase       domain.Phase        `json:"phase"`
	Assessments []domain.Assessment `json:"assessments"`
}

func (r *readRouter) articles(c echo.Context) error {
	var f store.ArticleFilter
	if s := c.QueryParam("status"); s != "" {
		st, err := domain.ParseStatus(s)
		if err != nil {
			return apperr.NewValidationWrap("status", err)
		}
		f.Status = st
	}
	var err error
	if f.FeedID, err = queryInt64(c, "feed_id"); err != nil {
		return err
	}
	if f.Limit, err = queryLimit(c); err != nil {
		return err
	}
	arts, err := r.store.ListArticles(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if arts == nil {
		arts = []domain.Article{}
	}
	return c.JSON(http.StatusOK, arts)
}

func (r *readRouter) article(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	a, err := r.store.GetArticle(ctx, id)
	if err != nil {
		return err
	}
	as, err := r.store.ListAssessments(ctx, store.AssessmentFilter{ArticleID: id})
	if err != nil {
		return err
	}
	if as == nil {
		as = []domain.Assessment{}
	}
	return c.JSON(http.StatusOK, articleResponse{Article: a, Phase: a.Phase(), Assessments: as})
}

func (r *readRouter) assessments(c echo.Context) error {
	var (
		f   store.AssessmentFilter
		err error
	)
	if f.Relevant, err = queryBool(c, "relevant"); err != nil {
		return err
	}
	if f.ArticleID, err = queryInt64(c, "article_id"); err != nil {
		return err
	}
	if f.TopicID, err = queryInt64(c, "topic_id"); err != nil {
		return err
	}
	if f.Limit, err = queryLimit(c); err != nil {
		return err
	}
	as, err := r.store.ListAssessments(c.Request().Context(), f)
	if err != nil {
		return err
	}
	if as == nil {
		as = []domain.Assessment{}
	}
	return c.JSON(http.StatusOK, as)
}

func (r *readRouter) digests(c echo.Context) error {
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}
	recs, err := r.store.ListDigestRecords(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if recs == nil {
		recs = []domain.DigestRecord{}
	}
	return c.JSON(http.StatusOK, recs)
}
