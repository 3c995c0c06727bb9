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

// Package oracletest provides a canned Oracle for tests.
package oracletest

import (
	"context"
	"sync"

	"github.com/bcem/postmeet/internal/models"
)

// Stub returns a fixed record (or error) and records every request.
type Stub struct {
	Record *models.OrchestrationRecord
	Err    error

	mu       sync.Mutex
	requests []models.OrchestrationRequest
}

// Orchestrate implements oracle.Oracle.
func (s *Stub) Orchestrate(_ context.Context, req models.OrchestrationRequest) (*models.OrchestrationRecord, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	return s.Record, nil
}

// Calls returns how many times Orchestrate was invoked.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of the received requests.
func (s *Stub) Requests() []models.OrchestrationRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.OrchestrationRequest(nil), s.requests...)
}

// PassingRecord builds a non-blocking record sent from sender with one
// HTML email per recipient, in order.
func PassingRecord(sender string, recipients ...string) *models.OrchestrationRecord {
	emails := make([]models.EmailPayload, 0, len(recipients))
	for _, to := range recipients {
		emails = append(emails, models.EmailPayload{
			To:      to,
			Subject: "Meeting follow-up",
			Body: models.EmailBody{
				ContentType: models.ContentTypeHTML,
				Content:     "<p>Your action items for " + to + "</p>",
			},
		})
	}

	return &models.OrchestrationRecord{
		NextAllowedStep: models.NextStepTranscriptReady,
		EmailExecutionIntent: models.EmailExecutionIntent{
			Intent: "SEND_MEETING_SUMMARY_EMAILS",
			Sender: models.Sender{Email: sender, AuthProvider: "google"},
			Emails: emails,
		},
	}
}

// BlockingRecord builds a record the oracle marked as blocking.
func BlockingRecord(reason string) *models.OrchestrationRecord {
	return &models.OrchestrationRecord{
		BlockingError:   models.BlockingError{IsBlocking: true, Reason: &reason},
		NextAllowedStep: models.NextStepTranscriptReady,
		EmailExecutionIntent: models.EmailExecutionIntent{
			Intent: "SEND_MEETING_SUMMARY_EMAILS",
		},
	}
}
