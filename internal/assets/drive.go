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

// Package assets lists the caller's recorded meeting media from Google
// Drive. Drive entries are normalized into models.MediaAsset at this
// boundary; anything that is not audio or video is dropped.
package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bcem/postmeet/internal/auth"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/models"
)

// mediaQuery restricts files.list to audio and video.
const mediaQuery = "(mimeType contains 'audio/' or mimeType contains 'video/') and trashed = false"

// ErrNotFound is returned by Get for unknown or non-media files.
var ErrNotFound = errors.New("media asset not found")

// driveFile is the subset of a Drive file resource we request.
type driveFile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// driveListResponse is one page of files.list.
type driveListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

// DriveLister reads media assets from Google Drive.
type DriveLister struct {
	driveBaseURL string
	now          func() time.Time
}

// NewDriveLister creates a Drive lister.
func NewDriveLister(driveBaseURL string) *DriveLister {
	return &DriveLister{
		driveBaseURL: strings.TrimRight(driveBaseURL, "/"),
		now:          time.Now,
	}
}

// List returns every audio and video file visible to the caller.
func (d *DriveLister) List(ctx context.Context, s *models.Session) ([]models.MediaAsset, error) {
	if !auth.GoogleCredential(s, d.now()) {
		return nil, failure.New(failure.KindAuthRequired, "a Google sign-in is required to browse Drive media")
	}
	httpClient := auth.HTTPClient(ctx, s)

	params := url.Values{}
	params.Set("q", mediaQuery)
	params.Set("fields", "nextPageToken,files(id,name,mimeType)")
	params.Set("pageSize", "100")

	var out []models.MediaAsset
	pages := 0

	for pageToken := ""; ; {
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var page driveListResponse
		if err := d.get(ctx, httpClient, d.driveBaseURL+"/files?"+params.Encode(), &page); err != nil {
			return nil, fmt.Errorf("list drive files: %w", err)
		}
		pages++

		for _, f := range page.Files {
			asset, ok := Normalize(f.ID, f.Name, f.MimeType)
			if !ok {
				slog.Debug("skipping non-media drive file", "id", f.ID, "mime_type", f.MimeType)
				continue
			}
			out = append(out, asset)
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	slog.Info("drive media listing complete", "user", s.Email, "pages", pages, "assets", len(out))
	return out, nil
}

// Get fetches one media asset by Drive file ID.
func (d *DriveLister) Get(ctx context.Context, s *models.Session, id string) (models.MediaAsset, error) {
	if !auth.GoogleCredential(s, d.now()) {
		return models.MediaAsset{}, failure.New(failure.KindAuthRequired, "a Google sign-in is required to read Drive media")
	}

	params := url.Values{}
	params.Set("fields", "id,name,mimeType")

	var f driveFile
	u := fmt.Sprintf("%s/files/%s?%s", d.driveBaseURL, url.PathEscape(id), params.Encode())
	if err := d.get(ctx, auth.HTTPClient(ctx, s), u, &f); err != nil {
		return models.MediaAsset{}, err
	}

	asset, ok := Normalize(f.ID, f.Name, f.MimeType)
	if !ok {
		return models.MediaAsset{}, fmt.Errorf("%w: %s is %s", ErrNotFound, id, f.MimeType)
	}
	return asset, nil
}

func (d *DriveLister) get(ctx context.Context, httpClient *http.Client, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return failure.New(failure.KindAuthRequired, "Drive rejected the session token")
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("drive returned HTTP %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode drive response: %w", err)
	}
	return nil
}

// Normalize maps a storage listing entry to a MediaAsset. ok is false for
// anything that is not audio or video.
func Normalize(id, name, mimeType string) (models.MediaAsset, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	var kind models.MediaKind
	switch {
	case strings.HasPrefix(mt, "audio/"):
		kind = models.MediaAudio
	case strings.HasPrefix(mt, "video/"):
		kind = models.MediaVideo
	default:
		return models.MediaAsset{}, false
	}
	if id == "" {
		return models.MediaAsset{}, false
	}
	return models.MediaAsset{Kind: kind, ID: id, Name: name, MimeType: mimeType}, true
}
