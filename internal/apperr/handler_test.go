package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"feedsieve/internal/apperr"
	"feedsieve/internal/logging"
)

func TestGlobalErrorHandler(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		body string
	}{
		{"validation", apperr.NewValidation("url is required"), http.StatusBadRequest, "url is required"},
		{"not found", fmt.Errorf("feed 7: %w", apperr.ErrNotFound), http.StatusNotFound, "feed 7: not found"},
		{"echo error", echo.NewHTTPError(http.StatusConflict, "taken"), http.StatusConflict, "taken"},
		{"other", errors.New("db on fire"), http.StatusInternalServerError, "internal server error"},
	}
	e := echo.New()
	h := apperr.GlobalErrorHandler(logging.Discard())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			h(tc.err, c)
			assert.Equal(t, tc.code, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}
