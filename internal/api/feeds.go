package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"feedsieve/internal/apperr"
	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

type feedRequest struct {
	Name         string                  `json:"name"`
	URL          string                  `json:"url"`
	Enabled      *bool                   `json:"enabled"`
	Extraction   domain.ExtractionConfig `json:"extraction"`
	CustomFields []string                `json:"custom_fields"`
}

func (r feedRequest) validate() error {
	u, err := url.Parse(strings.TrimSpace(r.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperr.NewValidation(fmt.Sprintf("url: %q is not an http(s) URL", r.URL))
	}
	return nil
}

// apply copies the request onto f. Omitted enabled keeps the current value.
func (r feedRequest) apply(f domain.Feed) domain.Feed {
	f.URL = strings.TrimSpace(r.URL)
	f.Name = strings.TrimSpace(r.Name)
	if f.Name == "" {
		f.Name = f.URL
	}
	if r.Enabled != nil {
		f.Enabled = *r.Enabled
	}
	f.Extraction = r.Extraction
	f.CustomFields = r.CustomFields
	return f
}

type feedRouter struct {
	store *store.Store
}

func (r *feedRouter) list(c echo.Context) error {
	feeds, err := r.store.ListFeeds(c.Request().Context(), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, feeds)
}

func (r *feedRouter) get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	f, err := r.store.GetFeed(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (r *feedRouter) create(c echo.Context) error {
	var req feedRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid feed body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	ctx := c.Request().Context()
	f := req.apply(domain.Feed{Enabled: true})
	if err := r.ensureUniqueURL(c, f.URL, 0); err != nil {
		return err
	}
	created, err := r.store.CreateFeed(ctx, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (r *feedRouter) update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req feedRequest
	if err := c.Bind(&req); err != nil {
		return apperr.NewValidationWrap("invalid feed body", err)
	}
	if err := req.validate(); err != nil {
		return err
	}
	ctx := c.Request().Context()
	current, err := r.store.GetFeed(ctx, id)
	if err != nil {
		return err
	}
	f := req.apply(current)
	if err := r.ensureUniqueURL(c, f.URL, id); err != nil {
		return err
	}
	if err := r.store.UpdateFeed(ctx, f); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, f)
}

func (r *feedRouter) delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := r.store.DeleteFeed(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *feedRouter) ensureUniqueURL(c echo.Context, u string, self int64) error {
	existing, err := r.store.FeedByURL(c.Request().Context(), u)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("feed %d already uses %s", existing.ID, u))
	}
	return nil
}
