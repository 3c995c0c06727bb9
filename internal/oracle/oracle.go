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

// Package oracle adapts the external generation service into typed
// orchestration records. Responses are validated against the record schema
// before anything downstream sees them; a response that fails validation is
// not a block, it is the absence of an answer.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/time/rate"

	"github.com/bcem/postmeet/internal/models"
)

// SystemInstruction is sent unchanged with every request.
const SystemInstruction = `You are the orchestration and enforcement layer for post-meeting automation.

Transcript enforcement:
- Audio and video must be transcribed before any meeting intelligence is extracted.
- No transcript means no meeting processing: set blocking_error.is_blocking to true,
  explain what is missing in blocking_error.reason and set next_allowed_step to "NONE".

Email orchestration:
- Prepare one email per attendee who has an email address; skip attendees without one.
- Every email is sent FROM the logged-in user; sender.email must equal the logged-in email.
- Each body contains the meeting title, the agenda as bullets, key decisions, the
  attendee's own to-dos and next steps. Never include tasks owned by other attendees.
- If the logged-in email is missing, block email execution in
  email_execution_intent.blocking_error.

Respond with a single JSON document matching the response schema.`

// Oracle turns a request into an orchestration record.
type Oracle interface {
	Orchestrate(ctx context.Context, req models.OrchestrationRequest) (*models.OrchestrationRecord, error)
}

// Generator is the raw text-generation transport behind the adapter.
type Generator interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ErrEmptyResponse is returned when the generator produced no text.
var ErrEmptyResponse = errors.New("oracle returned an empty response")

// Adapter implements Oracle on top of a Generator.
type Adapter struct {
	gen     Generator
	limiter *rate.Limiter
}

// NewAdapter creates an adapter that issues at most rps requests per second
// with the given burst.
func NewAdapter(gen Generator, rps float64, burst int) *Adapter {
	if burst < 1 {
		burst = 1
	}
	return &Adapter{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Orchestrate sends req to the generator and parses the answer.
func (a *Adapter) Orchestrate(ctx context.Context, req models.OrchestrationRequest) (*models.OrchestrationRecord, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("oracle rate limiter: %w", err)
	}

	text, err := a.gen.Generate(ctx, SystemInstruction, BuildPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}

	record, err := Parse(text)
	if err != nil {
		slog.Warn("oracle response rejected",
			"caller", req.CallerEmail,
			"response_len", len(text),
			"error", err,
		)
		return nil, err
	}

	slog.Debug("oracle response accepted",
		"caller", req.CallerEmail,
		"blocking", record.BlockingError.IsBlocking,
		"emails", len(record.EmailExecutionIntent.Emails),
	)

	return record, nil
}

// BuildPrompt renders the per-request prompt.
func BuildPrompt(req models.OrchestrationRequest) string {
	email := firstNonEmpty(req.CallerEmail, "MISSING")
	provider := firstNonEmpty(req.CallerAuthProvider, "NONE")
	sender := firstNonEmpty(req.CallerEmail, "unknown")

	inputKind := "TRANSCRIPT TEXT"
	if req.IsMedia {
		inputKind = "MEDIA ASSET DESCRIPTION"
	}

	var b strings.Builder
	b.WriteString("LOGGED-IN USER CONTEXT:\n")
	fmt.Fprintf(&b, "Email: %s\n", email)
	fmt.Fprintf(&b, "Provider: %s\n\n", provider)
	fmt.Fprintf(&b, "INPUT DATA (%s):\n%s\n\n", inputKind, req.RawInput)
	b.WriteString("TASK:\n")
	b.WriteString("Generate authenticated email execution payloads for all meeting attendees found in the input.\n")
	fmt.Fprintf(&b, "Each email is sent FROM %s and contains only that attendee's tasks.\n", sender)
	b.WriteString("If the sender email is missing, email execution MUST be blocked.\n")
	return b.String()
}

// Parse validates a raw oracle response and decodes it into a record.
func Parse(text string) (*models.OrchestrationRecord, error) {
	text = stripFence(text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	if err := validate([]byte(text)); err != nil {
		return nil, err
	}

	var record models.OrchestrationRecord
	if err := json.Unmarshal([]byte(text), &record); err != nil {
		return nil, fmt.Errorf("decode orchestration record: %w", err)
	}
	for i := range record.EmailExecutionIntent.Emails {
		body := &record.EmailExecutionIntent.Emails[i].Body
		body.ContentType = body.ContentType.Normalize()
	}
	return &record, nil
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
