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

package oracle

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bcem/postmeet/internal/models"
)

const validResponse = `{
  "blocking_error": {"is_blocking": false, "reason": null},
  "next_allowed_step": "TRANSCRIPT_READY",
  "email_execution_intent": {
    "intent": "SEND_MEETING_SUMMARY_EMAILS",
    "sender": {"email": "lead@example.com", "auth_provider": "google"},
    "emails": [
      {"to": "alice@example.com", "subject": "Sync recap", "body": {"contentType": "HTML", "content": "<p>Hi Alice</p>"}},
      {"to": "bob@example.com", "subject": "Sync recap", "body": {"contentType": "HTML", "content": "<p>Hi Bob</p>"}}
    ],
    "blocking_error": {"is_blocking": false, "reason": null}
  },
  "shared_meeting_template": {
    "summary": "Weekly sync",
    "agenda_items": ["Roadmap", "Hiring"],
    "key_discussions": [],
    "decisions": ["Ship v2"],
    "action_items": [
      {"task": "Draft roadmap", "owner": "Alice", "deadline": "2026-03-02", "confidence_score": 0.92}
    ]
  },
  "meeting_metadata": {
    "meeting_title": "Weekly sync",
    "attendees": [{"name": "Alice", "email": "alice@example.com"}, {"name": "Carol", "email": null}]
  }
}`

// fakeGenerator returns a canned response.
type fakeGenerator struct {
	text   string
	err    error
	prompt string
	system string
}

func (f *fakeGenerator) Generate(_ context.Context, system, prompt string) (string, error) {
	f.system = system
	f.prompt = prompt
	return f.text, f.err
}

// TestParse_ValidRecord verifies a well-formed response decodes fully.
func TestParse_ValidRecord(t *testing.T) {
	record, err := Parse(validResponse)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if record.BlockingError.IsBlocking {
		t.Error("record should not be blocking")
	}
	if record.NextAllowedStep != models.NextStepTranscriptReady {
		t.Errorf("NextAllowedStep = %q", record.NextAllowedStep)
	}
	if got := len(record.EmailExecutionIntent.Emails); got != 2 {
		t.Fatalf("emails = %d, want 2", got)
	}
	if record.EmailExecutionIntent.Emails[1].To != "bob@example.com" {
		t.Errorf("email order not preserved: %+v", record.EmailExecutionIntent.Emails)
	}
	items := record.ActionItems()
	if len(items) != 1 || items[0].OwnerName() != "Alice" || items[0].DeadlineText() != "2026-03-02" {
		t.Errorf("action items = %+v", items)
	}
	if record.MeetingMetadata.TitleText() != "Weekly sync" {
		t.Errorf("title = %q", record.MeetingMetadata.TitleText())
	}
	if record.MeetingMetadata.Attendees[1].Email != nil {
		t.Error("attendee without address should decode to nil email")
	}
}

// TestParse_RejectsMalformed verifies that responses missing required
// sections are rejected rather than treated as blocks.
func TestParse_RejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		schema bool
	}{
		{"empty", "", false},
		{"not json", "the meeting went well", false},
		{"missing blocking_error", strings.Replace(validResponse, `"blocking_error": {"is_blocking": false, "reason": null},
  "next_allowed_step"`, `"next_allowed_step"`, 1), true},
		{"missing next_allowed_step", strings.Replace(validResponse, `"next_allowed_step": "TRANSCRIPT_READY",`, "", 1), true},
		{"unknown next_allowed_step", strings.Replace(validResponse, `"TRANSCRIPT_READY"`, `"SEND_NOW"`, 1), true},
		{"missing email_execution_intent", `{"blocking_error": {"is_blocking": true, "reason": "x"}, "next_allowed_step": "NONE"}`, true},
		{"bad content type", strings.Replace(validResponse, `"contentType": "HTML", "content": "<p>Hi Bob</p>"`, `"contentType": "markdown", "content": "hi"`, 1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var se *SchemaError
			if tt.schema && !errors.As(err, &se) {
				t.Errorf("expected *SchemaError, got %T: %v", err, err)
			}
		})
	}
}

// TestParse_NormalizesContentType accepts any casing of the body format.
func TestParse_NormalizesContentType(t *testing.T) {
	text := strings.Replace(validResponse, `"contentType": "HTML", "content": "<p>Hi Alice</p>"`, `"contentType": "text", "content": "Hi Alice"`, 1)
	text = strings.Replace(text, `"contentType": "HTML", "content": "<p>Hi Bob</p>"`, `"contentType": "html", "content": "<p>Hi Bob</p>"`, 1)

	record, err := Parse(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	emails := record.EmailExecutionIntent.Emails
	if emails[0].Body.ContentType != models.ContentTypeText {
		t.Errorf("email 0 content type = %q, want Text", emails[0].Body.ContentType)
	}
	if emails[1].Body.ContentType != models.ContentTypeHTML {
		t.Errorf("email 1 content type = %q, want HTML", emails[1].Body.ContentType)
	}
}

// TestParse_StripsCodeFence verifies fenced JSON is accepted.
func TestParse_StripsCodeFence(t *testing.T) {
	if _, err := Parse("```json\n" + validResponse + "\n```"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// TestAdapter_Orchestrate verifies the prompt carries the caller context.
func TestAdapter_Orchestrate(t *testing.T) {
	gen := &fakeGenerator{text: validResponse}
	a := NewAdapter(gen, 100, 1)

	record, err := a.Orchestrate(context.Background(), models.OrchestrationRequest{
		RawInput:           "Alice: let's ship v2",
		CallerEmail:        "lead@example.com",
		CallerAuthProvider: "google",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record == nil {
		t.Fatal("expected record")
	}
	if gen.system != SystemInstruction {
		t.Error("system instruction not sent")
	}
	for _, want := range []string{"Email: lead@example.com", "Provider: google", "Alice: let's ship v2", "TRANSCRIPT TEXT"} {
		if !strings.Contains(gen.prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, gen.prompt)
		}
	}
}

// TestAdapter_GeneratorError verifies transport errors propagate.
func TestAdapter_GeneratorError(t *testing.T) {
	boom := errors.New("503 unavailable")
	a := NewAdapter(&fakeGenerator{err: boom}, 100, 1)

	_, err := a.Orchestrate(context.Background(), models.OrchestrationRequest{RawInput: "x"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
}

// TestBuildPrompt_MissingIdentity verifies placeholders for absent fields.
func TestBuildPrompt_MissingIdentity(t *testing.T) {
	p := BuildPrompt(models.OrchestrationRequest{RawInput: "Processing Media Asset: a.mp3", IsMedia: true})

	for _, want := range []string{"Email: MISSING", "Provider: NONE", "FROM unknown", "MEDIA ASSET DESCRIPTION"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
