package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gojosatorou999/jalscan-sih/internal/errors"
	"github.com/gojosatorou999/jalscan-sih/internal/logging"
)

var (
	obsLogger   *slog.Logger
	obsLevelVar = new(slog.LevelVar)
)

func init() {
	obsLevelVar.Set(slog.LevelInfo)

	var err error
	obsLogger, _, err = logging.NewFileLogger("logs/observability.log", "observability", obsLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: obsLevelVar})
		obsLogger = slog.New(fbHandler).With("service", "observability")
	}
}

// Server serves the Prometheus scrape endpoint and a liveness probe.
type Server struct {
	echo    *echo.Echo
	listen  string
	metrics *Metrics
}

// NewServer creates the telemetry HTTP server on the given listen address.
func NewServer(listen string, metrics *Metrics) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, listen: listen, metrics: metrics}

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
		metrics.Registry, promhttp.HandlerOpts{})))
	e.GET("/healthz", s.handleHealthz)

	return s
}

// Start runs the server until the context is canceled. It blocks.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		obsLogger.Info("telemetry endpoint listening", "listen", s.listen)
		errCh <- s.echo.Start(s.listen)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return errors.New(err).
				Component("observability").
				Category(errors.CategoryGeneric).
				Build()
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.New(err).
				Component("observability").
				Category(errors.CategoryGeneric).
				Context("listen", s.listen).
				Build()
		}
		return nil
	}
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
