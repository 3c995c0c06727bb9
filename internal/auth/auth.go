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

// Package auth turns a caller session into authenticated provider clients.
package auth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/bcem/postmeet/internal/models"
)

// HTTPClient returns an http.Client that attaches the session's access
// token as a bearer credential. The token is never refreshed here; the
// auth collaborator owns its lifecycle.
func HTTPClient(ctx context.Context, s *models.Session) *http.Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: s.AccessToken,
		TokenType:   "Bearer",
		Expiry:      s.Expiry,
	})
	return oauth2.NewClient(ctx, ts)
}

// GoogleCredential reports whether s can call Google APIs at now.
func GoogleCredential(s *models.Session, now time.Time) bool {
	return s.HasCredential(now) && s.Provider == models.ProviderGoogle
}
