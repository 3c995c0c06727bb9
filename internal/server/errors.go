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
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bcem/postmeet/internal/assets"
	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/pipeline"
)

// Kinds that exist only at the HTTP surface.
const (
	kindNotFound    = "NOT_FOUND"
	kindConflict    = "NOT_SENDABLE"
	kindDuplicate   = "DUPLICATE_SUBMISSION"
	kindInvalid     = "INVALID_REQUEST"
	kindTooLarge    = "INPUT_TOO_LARGE"
	kindUnavailable = "UNAVAILABLE"
	kindInternal    = "INTERNAL"
)

var (
	errAuthRequired = failure.New(failure.KindAuthRequired, "sign in to continue")
	errDuplicate    = errors.New("this submission is already being processed")
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// statusFor maps an error to its HTTP status and kind.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errDuplicate):
		return http.StatusConflict, kindDuplicate
	case errors.Is(err, pipeline.ErrUnknownRun),
		errors.Is(err, dispatch.ErrUnknownItem),
		errors.Is(err, assets.ErrNotFound):
		return http.StatusNotFound, kindNotFound
	case errors.Is(err, dispatch.ErrNotSendable):
		return http.StatusConflict, kindConflict
	case errors.Is(err, models.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge, kindTooLarge
	case errors.Is(err, models.ErrEmptyInput):
		return http.StatusBadRequest, kindInvalid
	}

	switch kind := failure.KindOf(err); kind {
	case failure.KindAuthRequired:
		return http.StatusUnauthorized, string(kind)
	case failure.KindOracleFailure:
		return http.StatusBadGateway, string(kind)
	case failure.KindPipelineBlocked:
		return http.StatusUnprocessableEntity, string(kind)
	case failure.KindSyncPartial:
		return http.StatusOK, string(kind)
	case failure.KindDispatch:
		return http.StatusOK, string(kind)
	}

	return http.StatusInternalServerError, kindInternal
}

func errorBody(err error) ErrorResponse {
	_, kind := statusFor(err)
	msg := failure.Explain(err)
	var de *dispatch.DispatchError
	if errors.As(err, &de) {
		kind = string(de.Kind)
		msg = de.Message
	}
	if kind == kindInternal {
		msg = "internal error"
	}
	return ErrorResponse{Kind: kind, Message: msg}
}

func writeError(c echo.Context, err error) error {
	status, _ := statusFor(err)
	return c.JSON(status, errorBody(err))
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{Kind: kindInvalid, Message: msg})
}
