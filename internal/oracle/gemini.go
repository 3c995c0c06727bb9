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
	"fmt"

	"google.golang.org/genai"

	"github.com/bcem/postmeet/internal/config"
)

// GeminiGenerator is the Generator backed by the Gemini API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, cfg config.OracleConfig) (*GeminiGenerator, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGenerator{client: client, model: cfg.Model}, nil
}

// Generate requests a JSON document constrained by the response schema.
func (g *GeminiGenerator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// responseSchema mirrors recordSchema in Gemini's schema dialect so the
// model is steered toward a valid answer. recordSchema stays authoritative.
func responseSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	nullStr := &genai.Schema{Type: genai.TypeString, Nullable: boolPtr(true)}
	strList := &genai.Schema{Type: genai.TypeArray, Items: str}
	blocking := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"is_blocking": {Type: genai.TypeBoolean},
			"reason":      nullStr,
		},
		Required: []string{"is_blocking"},
	}

	email := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"to":      str,
			"subject": str,
			"body": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"contentType": {Type: genai.TypeString, Enum: []string{"HTML", "Text"}},
					"content":     str,
				},
				Required: []string{"contentType", "content"},
			},
		},
		Required: []string{"to", "subject", "body"},
	}

	actionItem := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"task":             str,
			"owner":            nullStr,
			"deadline":         nullStr,
			"confidence_score": {Type: genai.TypeNumber},
		},
		Required: []string{"task", "confidence_score"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"blocking_error":    blocking,
			"next_allowed_step": {Type: genai.TypeString, Enum: []string{"NONE", "TRANSCRIPT_READY"}},
			"email_execution_intent": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"intent": str,
					"sender": {
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"email":         str,
							"auth_provider": str,
						},
						Required: []string{"email", "auth_provider"},
					},
					"emails":         {Type: genai.TypeArray, Items: email},
					"blocking_error": blocking,
				},
				Required: []string{"intent", "sender", "emails", "blocking_error"},
			},
			"shared_meeting_template": {
				Type:     genai.TypeObject,
				Nullable: boolPtr(true),
				Properties: map[string]*genai.Schema{
					"summary":         str,
					"agenda_items":    strList,
					"key_discussions": strList,
					"decisions":       strList,
					"action_items":    {Type: genai.TypeArray, Items: actionItem},
				},
			},
			"meeting_metadata": {
				Type:     genai.TypeObject,
				Nullable: boolPtr(true),
				Properties: map[string]*genai.Schema{
					"meeting_title": nullStr,
					"meeting_date":  nullStr,
					"attendees": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name":  str,
								"email": nullStr,
							},
							Required: []string{"name"},
						},
					},
				},
			},
			"transcript_preview": nullStr,
			"next_actions":       strList,
		},
		Required: []string{"blocking_error", "next_allowed_step", "email_execution_intent"},
	}
}

func boolPtr(b bool) *bool { return &b }
