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

package dispatch

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/mail"
	"strings"

	"github.com/bcem/postmeet/internal/models"
)

// Message is the parsed form of a built RFC 2822 message.
type Message struct {
	To          string
	Subject     string
	ContentType string
	MIMEVersion string
	Body        string
}

// BuildMessage renders p as an RFC 2822 message with CRLF line endings.
// CR and LF in header values are replaced with spaces. A subject outside
// printable ASCII is written as RFC 2047 encoded-words.
func BuildMessage(p models.EmailPayload) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(p.To))
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", headerValue(p.Subject)))
	fmt.Fprintf(&b, "Content-Type: %s\r\n", mimeType(p.Body.ContentType))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(p.Body.Content)
	return b.Bytes()
}

// EncodeRaw encodes a built message as URL-safe unpadded base64.
func EncodeRaw(msg []byte) string {
	return base64.RawURLEncoding.EncodeToString(msg)
}

// DecodeRaw reverses EncodeRaw.
func DecodeRaw(raw string) ([]byte, error) {
	msg, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode raw message: %w", err)
	}
	return msg, nil
}

// ParseMessage parses a message produced by BuildMessage.
func ParseMessage(msg []byte) (Message, error) {
	m, err := mail.ReadMessage(bytes.NewReader(msg))
	if err != nil {
		return Message{}, fmt.Errorf("parse message: %w", err)
	}

	body, err := io.ReadAll(m.Body)
	if err != nil {
		return Message{}, fmt.Errorf("read message body: %w", err)
	}

	subject, err := subjectDecoder.DecodeHeader(m.Header.Get("Subject"))
	if err != nil {
		return Message{}, fmt.Errorf("decode subject: %w", err)
	}

	return Message{
		To:          m.Header.Get("To"),
		Subject:     subject,
		ContentType: m.Header.Get("Content-Type"),
		MIMEVersion: m.Header.Get("MIME-Version"),
		Body:        string(body),
	}, nil
}

func mimeType(ct models.ContentType) string {
	if strings.EqualFold(string(ct), string(models.ContentTypeText)) {
		return "text/plain; charset=utf-8"
	}
	return "text/html; charset=utf-8"
}

var subjectDecoder = new(mime.WordDecoder)

var headerSanitizer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func headerValue(v string) string {
	return headerSanitizer.Replace(v)
}
