package api

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"feedsieve/internal/apperr"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.NewValidation(fmt.Sprintf("invalid id %q", c.Param("id")))
	}
	return id, nil
}

func queryLimit(c echo.Context) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperr.NewValidation(fmt.Sprintf("invalid limit %q", raw))
	}
	return min(n, maxLimit), nil
}

func queryInt64(c echo.Context, name string) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 1 {
		return 0, apperr.NewValidation(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return n, nil
}

func queryBool(c echo.Context, name string) (*bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperr.NewValidation(fmt.Sprintf("invalid %s %q", name, raw))
	}
	return &b, nil
}
