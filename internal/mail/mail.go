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

// Package mail provides the provider transports that deliver dispatch items.
package mail

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bcem/postmeet/internal/auth"
	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/models"
)

// maxErrorBody caps how much of a provider error response is read.
const maxErrorBody = 64 << 10

// ForSession picks the transport for the caller's provider. Sessions
// without a usable credential, and passwordless sessions, get Unavailable.
func ForSession(ctx context.Context, cfg config.ProviderConfig, s *models.Session, now time.Time) dispatch.Sender {
	if !s.HasCredential(now) {
		return Unavailable{Reason: "no valid provider session; sign in again to send mail"}
	}

	client := auth.HTTPClient(ctx, s)
	switch s.Provider {
	case models.ProviderGoogle:
		return NewGmailSender(client, cfg.GmailBaseURL)
	case models.ProviderMicrosoft:
		return NewGraphSender(client, cfg.GraphBaseURL)
	default:
		return Unavailable{Reason: "provider " + string(s.Provider) + " cannot send mail"}
	}
}

// Unavailable fails every send with AUTH_EXPIRED without a network call.
type Unavailable struct {
	Reason string
}

// Send implements dispatch.Sender.
func (u Unavailable) Send(context.Context, dispatch.Outgoing) error {
	return &dispatch.DispatchError{Kind: dispatch.KindAuthExpired, Message: u.Reason}
}

// providerError converts a non-2xx response into a DispatchError, using the
// provider's error.message when the body carries one. Google and Graph both
// return {"error": {"code": ..., "message": ...}}.
func providerError(resp *http.Response) *dispatch.DispatchError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &envelope) == nil {
		msg = strings.TrimSpace(envelope.Error.Message)
	}
	return dispatch.FromStatus(resp.StatusCode, msg)
}

func ok(code int) bool { return code >= 200 && code < 300 }
