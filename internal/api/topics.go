package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"feedsieve/internal/apperr"
	"feedsieve/internal/domain"
	"feedsieve/internal/store"
)

type topicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     *bool  `json:"enabled"`
}

type topicRouter struct {
	store *store.Store
}

func (r *topicRouter) list(c echo.Context) error {
	topics, err := r.store.ListTopics(c.Request().Context(), false)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, topics)
}

func (r *topicRouter) get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, err := r.store.GetTopic(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (r *topicRouter) bind(c echo.Context) (topicRequest, error) {
	var req topicRequest
	if err := c.Bind(&req); err != nil {
		return req, apperr.NewValidationWrap("invalid topic body", err)
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return req, apperr.NewValidation("name is required")
	}
	return req, nil
}

func (r *topicRouter) create(c echo.Context) error {
	req, err := r.bind(c)
	if err != nil {
		return err
	}
	if err := r.ensureUniqueName(c, req.Name, 0); err != nil {
		return err
	}
	t := domain.Topic{Name: req.Name, Description: req.Description, Enabled: req.Enabled == nil || *req.Enabled}
	created, err := r.store.CreateTopic(c.Request().Context(), t)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (r *topicRouter) update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	req, err := r.bind(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	t, err := r.store.GetTopic(ctx, id)
	if err != nil {
		return err
	}
	if err := r.ensureUniqueName(c, req.Name, id); err != nil {
		return err
	}
	t.Name = req.Name
	t.Description = req.Description
	if req.Enabled != nil {
		t.Enabled = *req.Enabled
	}
	if err := r.store.UpdateTopic(ctx, t); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, t)
}

func (r *topicRouter) delete(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := r.store.DeleteTopic(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (r *topicRouter) ensureUniqueName(c echo.Context, name string, self int64) error {
	existing, err := r.store.TopicByName(c.Request().Context(), name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil
	case err != nil:
		return err
	case existing.ID != self:
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("topic %q already exists", name))
	}
	return nil
}
