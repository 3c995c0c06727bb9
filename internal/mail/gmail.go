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

package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bcem/postmeet/internal/dispatch"
)

// GmailSender delivers items through the Gmail API.
type GmailSender struct {
	httpClient *http.Client
	baseURL    string
}

// NewGmailSender creates a Gmail transport. The client must attach the
// caller's bearer token.
func NewGmailSender(httpClient *http.Client, baseURL string) *GmailSender {
	return &GmailSender{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Send posts the raw RFC 2822 message to users.messages.send.
func (g *GmailSender) Send(ctx context.Context, msg dispatch.Outgoing) error {
	raw := msg.Raw
	if raw == "" {
		raw = dispatch.EncodeRaw(dispatch.BuildMessage(msg.Payload))
	}

	body, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return fmt.Errorf("marshal gmail message: %w", err)
	}

	url := g.baseURL + "/gmail/v1/users/me/messages/send"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return dispatch.Network(err)
	}
	defer resp.Body.Close()

	if !ok(resp.StatusCode) {
		return providerError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	slog.Debug("gmail message sent", "item", msg.ItemID, "to", msg.Payload.To)
	return nil
}
