// Package http provides the optional sidecar listener: health,
// Prometheus metrics, and read-only session endpoints. The stdio tool
// transport stays the write path; this listener never mutates state
// except for explicit session deletion.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/config"
	"github.com/fyrsmithlabs/thinkd/internal/export"
	"github.com/fyrsmithlabs/thinkd/internal/orchestrator"
)

// Server exposes the sidecar endpoints over echo.
type Server struct {
	echo     *echo.Echo
	engine   *orchestrator.Engine
	logger   *zap.Logger
	cfg      config.ServerConfig
	requests *prometheus.CounterVec
}

// NewServer creates the sidecar server. The engine is the single
// source of session state.
func NewServer(engine *orchestrator.Engine, logger *zap.Logger, cfg config.ServerConfig, reg prometheus.Registerer) (*Server, error) {
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		echo:   e,
		engine: engine,
		logger: logger,
		cfg:    cfg,
		requests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "thinkd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by path and status.",
		}, []string{"path", "status"}),
	}

	e.Use(s.observe)
	s.registerRoutes()
	return s, nil
}

func (s *Server) observe(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
		}

		s.requests.WithLabelValues(c.Path(), fmt.Sprintf("%d", status)).Inc()
		s.logger.Debug("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)
		return err
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/sessions", s.handleListSessions)
	v1.GET("/sessions/:id", s.handleGetSession)
	v1.GET("/sessions/:id/export", s.handleExportSession)
	v1.DELETE("/sessions/:id", s.handleDeleteSession)
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// SessionListResponse is the body of GET /api/v1/sessions.
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleListSessions(c echo.Context) error {
	ids, err := s.engine.List(c.Request().Context())
	if err != nil {
		return s.mapError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, SessionListResponse{Sessions: ids})
}

func (s *Server) handleGetSession(c echo.Context) error {
	sess, err := s.engine.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return s.mapError(err)
	}
	return c.JSON(http.StatusOK, export.Summarize(sess))
}

func (s *Server) handleExportSession(c echo.Context) error {
	format := export.Format(c.QueryParam("format"))
	if format == "" {
		format = export.FormatJSON
	}

	data, err := s.engine.Export(c.Request().Context(), c.Param("id"), format, nil)
	if err != nil {
		return s.mapError(err)
	}

	contentType := echo.MIMEApplicationJSON
	switch format {
	case export.FormatCSV:
		contentType = "text/csv"
	case export.FormatMarkdown:
		contentType = "text/markdown"
	}
	return c.Blob(http.StatusOK, contentType, data)
}

func (s *Server) handleDeleteSession(c echo.Context) error {
	if err := s.engine.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return s.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// mapError translates engine error kinds onto HTTP statuses.
func (s *Server) mapError(err error) error {
	switch orchestrator.KindOf(err) {
	case orchestrator.KindSessionNotFound:
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case orchestrator.KindInvalidInput:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("http handler failure", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// Start blocks serving on the configured address.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
