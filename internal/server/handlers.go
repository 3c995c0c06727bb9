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

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/pipeline"
)

// Input kinds accepted by POST /api/v1/runs.
const (
	inputText   = "text"
	inputImport = "import"
)

// CreateRunRequest is the body of POST /api/v1/runs.
type CreateRunRequest struct {
	Kind  string `json:"kind"`
	Input string `json:"input"`
	URL   string `json:"url"`
}

// CreateMediaRunRequest is the body of POST /api/v1/runs/media.
type CreateMediaRunRequest struct {
	AssetID string `json:"asset_id"`
}

// BlockedResponse is returned with 422 for blocked runs.
type BlockedResponse struct {
	ErrorResponse
	Run pipeline.Snapshot `json:"run"`
}

// ItemResponse is the result of a single send or retry. A dispatch failure
// is reported in Error with status 200, since it is local to the item.
type ItemResponse struct {
	Item  models.DispatchItem `json:"item"`
	Error *ErrorResponse      `json:"error,omitempty"`
}

// SyncResponse is the result of a sync connector run.
type SyncResponse struct {
	Created int            `json:"created"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: map[string]string{}}
	status := http.StatusOK
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("health check failed", "check", name, "error", err)
			resp.Checks[name] = err.Error()
			resp.Status = kindUnavailable
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	return c.JSON(status, resp)
}

func (s *Server) handleListAssets(c echo.Context) error {
	if s.assets == nil {
		return c.JSON(http.StatusOK, []models.MediaAsset{})
	}
	list, err := s.assets.List(c.Request().Context(), callerSession(c))
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []models.MediaAsset{}
	}
	return c.JSON(http.StatusOK, list)
}

func (s *Server) handleCreateRun(c echo.Context) error {
	var body CreateRunRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}

	sess := callerSession(c)

	var (
		req models.OrchestrationRequest
		err error
	)
	switch strings.ToLower(body.Kind) {
	case "", inputText:
		req, err = models.NewTextRequest(sess, body.Input)
	case inputImport:
		req, err = models.NewImportRequest(sess, body.URL)
	default:
		return badRequest(c, "kind must be text or import")
	}
	if err != nil {
		return writeError(c, err)
	}

	return s.process(c, req)
}

func (s *Server) handleCreateMediaRun(c echo.Context) error {
	var body CreateMediaRunRequest
	if err := c.Bind(&body); err != nil || strings.TrimSpace(body.AssetID) == "" {
		return badRequest(c, "asset_id is required")
	}
	if s.assets == nil {
		return badRequest(c, "media processing is not configured")
	}

	sess := callerSession(c)
	asset, err := s.assets.Get(c.Request().Context(), sess, body.AssetID)
	if err != nil {
		return writeError(c, err)
	}

	return s.process(c, models.NewMediaRequest(sess, asset))
}

// process runs the pipeline once per Idempotency-Key.
func (s *Server) process(c echo.Context, req models.OrchestrationRequest) error {
	ctx := c.Request().Context()
	sess := callerSession(c)

	key := strings.TrimSpace(c.Request().Header.Get("Idempotency-Key"))
	if key != "" && s.submissions != nil {
		fresh, err := s.submissions.Claim(ctx, sess.Email, key)
		if err != nil {
			// Redis trouble must not block processing.
			slog.Warn("submission guard unavailable", "error", err)
		} else if !fresh {
			return writeError(c, errDuplicate)
		}
	}

	run, err := s.pipeline.Process(ctx, sess, req)
	if err != nil && failure.Is(err, failure.KindPipelineBlocked) && run != nil {
		return c.JSON(http.StatusUnprocessableEntity, BlockedResponse{
			ErrorResponse: errorBody(err),
			Run:           run.Snapshot(),
		})
	}
	if err != nil {
		if key != "" && s.submissions != nil {
			if relErr := s.submissions.Release(ctx, sess.Email, key); relErr != nil {
				slog.Warn("failed to release submission", "error", relErr)
			}
		}
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, run.Snapshot())
}

func (s *Server) handleGetRun(c echo.Context) error {
	snap, err := s.pipeline.Snapshot(c.Request().Context(), callerSession(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) handleSendItem(c echo.Context) error {
	item, err := s.pipeline.SendOne(c.Request().Context(), callerSession(c), c.Param("id"), c.Param("item"))
	return itemReply(c, item, err)
}

func (s *Server) handleRetryItem(c echo.Context) error {
	item, err := s.pipeline.Retry(c.Request().Context(), callerSession(c), c.Param("id"), c.Param("item"))
	return itemReply(c, item, err)
}

func itemReply(c echo.Context, item models.DispatchItem, err error) error {
	var de *dispatch.DispatchError
	if errors.As(err, &de) {
		body := errorBody(err)
		return c.JSON(http.StatusOK, ItemResponse{Item: item, Error: &body})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ItemResponse{Item: item})
}

func (s *Server) handleDispatch(c echo.Context) error {
	sum, err := s.pipeline.SendAll(c.Request().Context(), callerSession(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

func (s *Server) handleSyncCalendar(c echo.Context) error {
	n, err := s.pipeline.SyncCalendar(c.Request().Context(), callerSession(c), c.Param("id"))
	return syncReply(c, n, err)
}

func (s *Server) handleSyncTasks(c echo.Context) error {
	n, err := s.pipeline.SyncTasks(c.Request().Context(), callerSession(c), c.Param("id"))
	return syncReply(c, n, err)
}

func syncReply(c echo.Context, created int, err error) error {
	if failure.Is(err, failure.KindSyncPartial) {
		body := errorBody(err)
		return c.JSON(http.StatusOK, SyncResponse{Created: created, Error: &body})
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, SyncResponse{Created: created})
}
