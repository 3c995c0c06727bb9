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
	"strings"
	"time"
)

// Provider is the identity provider the caller signed in with.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderMicrosoft Provider = "microsoft"
	ProviderEmail     Provider = "email"
)

// Session is the caller context handed to the service by the auth
// collaborator. A zero Session has no identity.
type Session struct {
	Email       string    `json:"email"`
	Provider    Provider  `json:"provider"`
	AccessToken string    `json:"access_token,omitempty"`
	Expiry      time.Time `json:"expiry,omitempty"`
}

// HasIdentity reports whether the caller is signed in at all.
func (s *Session) HasIdentity() bool {
	return s != nil && strings.TrimSpace(s.Email) != ""
}

// HasCredential reports whether the session carries a provider access
// token that has not expired at now. A zero Expiry never expires.
func (s *Session) HasCredential(now time.Time) bool {
	if !s.HasIdentity() || s.AccessToken == "" {
		return false
	}
	return s.Expiry.IsZero() || now.Before(s.Expiry)
}

// MediaKind tags a normalized media asset.
type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "video"
)

// MediaAsset is a storage listing entry normalized at the adapter boundary.
type MediaAsset struct {
	Kind     MediaKind `json:"kind"`
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	MimeType string    `json:"mime_type"`
}

// DispatchStatus is the lifecycle state of one queued email.
type DispatchStatus string

const (
	StatusStaged  DispatchStatus = "STAGED"
	StatusSending DispatchStatus = "SENDING"
	StatusSent    DispatchStatus = "SENT"
	StatusFailed  DispatchStatus = "FAILED"
)

// DispatchItem is an EmailPayload tracked by the dispatch queue.
type DispatchItem struct {
	EmailPayload
	ID        string         `json:"id"`
	Status    DispatchStatus `json:"status"`
	LastError string         `json:"last_error,omitempty"`
	Attempts  int            `json:"attempts"`
}
