// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes processing runs over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/pipeline"
	"github.com/bcem/postmeet/internal/session"
)

// sessionKey is the echo context key of the caller session.
const sessionKey = "session"

// Sessions resolves bearer tokens into caller sessions.
type Sessions interface {
	Lookup(ctx context.Context, token string) (*models.Session, error)
}

// Submissions guards processing submissions against replays.
type Submissions interface {
	Claim(ctx context.Context, caller, key string) (bool, error)
	Release(ctx context.Context, caller, key string) error
}

// Assets lists and resolves the caller's media.
type Assets interface {
	List(ctx context.Context, s *models.Session) ([]models.MediaAsset, error)
	Get(ctx context.Context, s *models.Session, id string) (models.MediaAsset, error)
}

// Pinger is a dependency checked by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the server's dependencies. Submissions and Assets are
// optional.
type Config struct {
	Pipeline    *pipeline.Service
	Sessions    Sessions
	Submissions Submissions
	Assets      Assets
	Checks      map[string]Pinger
}

// Server is the HTTP API.
type Server struct {
	echo        *echo.Echo
	pipeline    *pipeline.Service
	sessions    Sessions
	submissions Submissions
	assets      Assets
	checks      map[string]Pinger
	stopped     chan struct{}
}

// New creates the HTTP API and registers its routes.
func New(cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("32M"))
	e.Use(requestLogger)

	s := &Server{
		echo:        e,
		pipeline:    cfg.Pipeline,
		sessions:    cfg.Sessions,
		submissions: cfg.Submissions,
		assets:      cfg.Assets,
		checks:      cfg.Checks,
		stopped:     make(chan struct{}),
	}
	s.registerRoutes()
	return s
}

// Stopped is closed once Serve has finished shutting down.
func (s *Server) Stopped() <-chan struct{} { return s.stopped }

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1", s.requireSession)
	v1.GET("/assets", s.handleListAssets)
	v1.POST("/runs", s.handleCreateRun)
	v1.POST("/runs/media", s.handleCreateMediaRun)
	v1.GET("/runs/:id", s.handleGetRun)
	v1.POST("/runs/:id/items/:item/send", s.handleSendItem)
	v1.POST("/runs/:id/items/:item/retry", s.handleRetryItem)
	v1.POST("/runs/:id/dispatch", s.handleDispatch)
	v1.POST("/runs/:id/sync/calendar", s.handleSyncCalendar)
	v1.POST("/runs/:id/sync/tasks", s.handleSyncTasks)
}

// requestLogger logs one line per request.
func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}

		slog.Info("http request",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", c.Response().Status,
			"duration", time.Since(start),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
		)
		return nil
	}
}

// requireSession resolves the bearer token. Requests without a valid
// session are rejected with AUTH_REQUIRED before any handler runs.
func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
		if !ok {
			return writeError(c, errAuthRequired)
		}

		sess, err := s.sessions.Lookup(c.Request().Context(), token)
		if errors.Is(err, session.ErrNotFound) {
			return writeError(c, errAuthRequired)
		}
		if err != nil {
			slog.Error("session lookup failed", "error", err)
			return writeError(c, err)
		}
		if !sess.HasIdentity() {
			return writeError(c, errAuthRequired)
		}

		c.Set(sessionKey, sess)
		return next(c)
	}
}

func callerSession(c echo.Context) *models.Session {
	sess, _ := c.Get(sessionKey).(*models.Session)
	return sess
}

func bearerToken(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// Serve starts the HTTP server on the given port and shuts it down
// gracefully when ctx is cancelled. The returned channel is closed once
// the listener is bound. Serve must be called at most once per Server.
func Serve(ctx context.Context, port int, s *Server) (<-chan struct{}, error) {
	server := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind http port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("http server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		close(s.stopped)
	}()

	go func() {
		slog.Info("http server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	return ready, nil
}
