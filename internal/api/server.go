// Package api serves the REST interface: read access to every entity and
// write access to feeds and topics.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"feedsieve/internal/apperr"
	"feedsieve/internal/ingest"
	"feedsieve/internal/store"
	"feedsieve/internal/version"
)

const GracefulShutdownTimeout = 10 * time.Second

type Deps struct {
	Store *store.Store
	// Cycle and NextRun are optional; /status reports what is available.
	Cycle   *ingest.Coordinator
	NextRun func(job string) time.Time
	Logger  *slog.Logger
}

type Server struct {
	Echo *echo.Echo

	deps   Deps
	logger *slog.Logger
}

func NewServer(deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	logger := deps.Logger.With("component", "api")
	e.HTTPErrorHandler = apperr.GlobalErrorHandler(logger)

	s := &Server{Echo: e, deps: deps, logger: logger}
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.health)
	s.Echo.GET("/status", s.status)

	feeds := &feedRouter{store: s.deps.Store}
	s.Echo.GET("/feeds", feeds.list)
	s.Echo.POST("/feeds", feeds.create)
	s.Echo.GET("/feeds/:id", feeds.get)
	s.Echo.PUT("/feeds/:id", feeds.update)
	s.Echo.DELETE("/feeds/:id", feeds.delete)

	topics := &topicRouter{store: s.deps.Store}
	s.Echo.GET("/topics", topics.list)
	s.Echo.POST("/topics", topics.create)
	s.Echo.GET("/topics/:id", topics.get)
	s.Echo.PUT("/topics/:id", topics.update)
	s.Echo.DELETE("/topics/:id", topics.delete)

	reads := &readRouter{store: s.deps.Store}
	s.Echo.GET("/articles", reads.articles)
	s.Echo.GET("/articles/:id", reads.article)
	s.Echo.GET("/assessments", reads.assessments)
	s.Echo.GET("/digests", reads.digests)
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := s.Echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), GracefulShutdownTimeout)
	defer cancel()
	if err := s.Echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c echo.Context) error {
	if err := s.deps.Store.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version.Version})
}

type statusResponse struct {
	Version    string               `json:"version"`
	Cycle      string               `json:"cycle_state,omitempty"`
	LastCycle  *ingest.CycleReport  `json:"last_cycle,omitempty"`
	NextRuns   map[string]time.Time `json:"next_runs,omitempty"`
	LastDigest *time.Time           `json:"last_successful_digest,omitempty"`
}

func (s *Server) status(c echo.Context) error {
	resp := statusResponse{Version: version.Version}
	if s.deps.Cycle != nil {
		resp.Cycle = s.deps.Cycle.State().String()
		resp.LastCycle = s.deps.Cycle.LastReport()
	}
	if s.deps.NextRun != nil {
		resp.NextRuns = map[string]time.Time{}
		for _, job := range []string{"poll", "digest"} {
			if next := s.deps.NextRun(job); !next.IsZero() {
				resp.NextRuns[job] = next
			}
		}
	}
	last, err := s.deps.Store.LastSuccessfulDigest(c.Request().Context())
	if err != nil {
		return err
	}
	if last.Unix() > 0 {
		resp.LastDigest = &last
	}
	return c.JSON(http.StatusOK, resp)
}
