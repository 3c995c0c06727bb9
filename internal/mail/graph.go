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
	"github.com/bcem/postmeet/internal/models"
)

// graphAddress is the Graph recipient shape.
type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

// graphMessage carries the fields of a Graph message we set on send.
type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients []graphAddress `json:"toRecipients"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

// GraphSender delivers items through Microsoft Graph.
type GraphSender struct {
	httpClient   *http.Client
	graphBaseURL string
}

// NewGraphSender creates a Graph transport.
func NewGraphSender(httpClient *http.Client, graphBaseURL string) *GraphSender {
	return &GraphSender{
		httpClient:   httpClient,
		graphBaseURL: strings.TrimRight(graphBaseURL, "/"),
	}
}

// Send posts the item to /me/sendMail. Graph answers 202 with no body.
func (g *GraphSender) Send(ctx context.Context, msg dispatch.Outgoing) error {
	body, err := json.Marshal(buildSendMail(msg.Payload))
	if err != nil {
		return fmt.Errorf("marshal graph message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.graphBaseURL+"/me/sendMail", bytes.NewReader(body))
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

	slog.Debug("graph message sent", "item", msg.ItemID, "to", msg.Payload.To)
	return nil
}

func buildSendMail(p models.EmailPayload) sendMailRequest {
	var m graphMessage
	m.Subject = p.Subject
	m.Body.ContentType = "HTML"
	if strings.EqualFold(string(p.Body.ContentType), string(models.ContentTypeText)) {
		m.Body.ContentType = "Text"
	}
	m.Body.Content = p.Body.Content

	var to graphAddress
	to.EmailAddress.Address = p.To
	m.ToRecipients = []graphAddress{to}

	return sendMailRequest{Message: m, SaveToSentItems: true}
}
