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

package models

import (
	"errors"
	"fmt"
	"strings"
)

// MaxInputBytes caps a single transcript submission.
const MaxInputBytes = 25 * 1024 * 1024

var (
	// ErrEmptyInput is returned when the submission carries no text at all.
	ErrEmptyInput = errors.New("input is empty")

	// ErrInputTooLarge is returned when the submission exceeds MaxInputBytes.
	ErrInputTooLarge = fmt.Errorf("input exceeds %d bytes", MaxInputBytes)
)

// OrchestrationRequest is the normalized input for one oracle call. It is
// built once per processing action and never modified afterwards.
type OrchestrationRequest struct {
	RawInput           string
	CallerEmail        string
	CallerAuthProvider string
	IsMedia            bool
}

// NewTextRequest builds a request from a pasted or uploaded transcript.
func NewTextRequest(s *Session, text string) (OrchestrationRequest, error) {
	if strings.TrimSpace(text) == "" {
		return OrchestrationRequest{}, ErrEmptyInput
	}
	if len(text) > MaxInputBytes {
		return OrchestrationRequest{}, ErrInputTooLarge
	}
	return newRequest(s, text, false), nil
}

// NewImportRequest builds a request for a transcript hosted elsewhere.
func NewImportRequest(s *Session, rawURL string) (OrchestrationRequest, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return OrchestrationRequest{}, ErrEmptyInput
	}
	return newRequest(s, "External Import Requested: "+rawURL, false), nil
}

// NewMediaRequest builds a request describing a normalized media asset.
func NewMediaRequest(s *Session, asset MediaAsset) OrchestrationRequest {
	desc := fmt.Sprintf("Processing Media Asset: %s (%s).", asset.Name, asset.MimeType)
	return newRequest(s, desc, true)
}

func newRequest(s *Session, input string, media bool) OrchestrationRequest {
	req := OrchestrationRequest{RawInput: input, IsMedia: media}
	if s != nil {
		req.CallerEmail = s.Email
		req.CallerAuthProvider = string(s.Provider)
	}
	return req
}
