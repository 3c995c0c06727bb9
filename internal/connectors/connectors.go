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

// Package connectors projects a passed record's action items into Google
// Calendar events and Google Tasks entries. Each entry is created
// independently and in order; a failed entry is logged and the rest are
// still attempted. Re-running a sync creates duplicates.
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bcem/postmeet/internal/auth"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/metrics"
	"github.com/bcem/postmeet/internal/models"
)

// Syncer is implemented by Calendar and Tasks.
type Syncer interface {
	Sync(ctx context.Context, s *models.Session, record *models.OrchestrationRecord) (int, error)
}

// ClientFunc builds the authenticated client for a session.
type ClientFunc func(ctx context.Context, s *models.Session) *http.Client

// Option configures a connector.
type Option func(*base)

// WithClock overrides the connector's clock.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithClient overrides how the authenticated client is built.
func WithClient(fn ClientFunc) Option {
	return func(b *base) { b.client = fn }
}

type base struct {
	name    string
	baseURL string
	now     func() time.Time
	client  ClientFunc
}

func newBase(name, baseURL string, opts []Option) base {
	b := base{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
		client:  auth.HTTPClient,
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// ready reports whether a sync should run at all.
func (b *base) ready(s *models.Session, record *models.OrchestrationRecord) bool {
	return record != nil && record.SharedMeetingTemplate != nil && auth.GoogleCredential(s, b.now())
}

// tally counts one entry result.
func (b *base) tally(err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.SyncItems.WithLabelValues(b.name, result).Inc()
}

// partial builds the aggregate error for a run with failures.
func (b *base) partial(failed, attempted int) error {
	if failed == 0 {
		return nil
	}
	return failure.New(failure.KindSyncPartial, "%s sync: %d of %d entries failed", b.name, failed, attempted)
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
