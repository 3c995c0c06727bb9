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

package connectors

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bcem/postmeet/internal/models"
)

const defaultSummaryTitle = "Meeting Summary"

type task struct {
	Title string `json:"title"`
	Notes string `json:"notes,omitempty"`
	Due   string `json:"due"`
}

// Tasks creates a summary task followed by one task per action item in
// the caller's default task list.
type Tasks struct {
	base
}

// NewTasks creates a Tasks connector.
func NewTasks(baseURL string, opts ...Option) *Tasks {
	return &Tasks{base: newBase("tasks", baseURL, opts)}
}

// Sync creates the tasks and returns how many were created.
func (t *Tasks) Sync(ctx context.Context, s *models.Session, record *models.OrchestrationRecord) (int, error) {
	if !t.ready(s, record) {
		slog.Debug("tasks sync skipped: no credential or template")
		return 0, nil
	}

	client := t.client(ctx, s)
	url := t.baseURL + "/lists/@default/tasks"
	due := t.now().UTC().Format(time.RFC3339)

	entries := []task{summaryTask(record, due)}
	for _, item := range record.ActionItems() {
		if strings.TrimSpace(item.Task) == "" {
			continue
		}
		entries = append(entries, task{
			Title: item.Task,
			Notes: actionNotes(item),
			Due:   due,
		})
	}

	var created, failed int
	for i, entry := range entries {
		err := postJSON(ctx, client, url, entry)
		t.tally(err)
		if err != nil {
			slog.Error("failed to create task", "index", i, "title", entry.Title, "error", err)
			failed++
			continue
		}
		created++
	}

	slog.Info("tasks sync complete", "created", created, "failed", failed)
	return created, t.partial(failed, len(entries))
}

func summaryTask(record *models.OrchestrationRecord, due string) task {
	title := record.MeetingMetadata.TitleText()
	if title == "" {
		title = defaultSummaryTitle
	}

	var notes strings.Builder
	for _, agenda := range record.SharedMeetingTemplate.AgendaItems {
		if notes.Len() > 0 {
			notes.WriteString("\n")
		}
		notes.WriteString("• ")
		notes.WriteString(agenda)
	}

	return task{Title: title, Notes: notes.String(), Due: due}
}

func actionNotes(item models.ActionItem) string {
	owner := item.OwnerName()
	if owner == "" {
		owner = "Unassigned"
	}
	return fmt.Sprintf("Owner: %s | Confidence: %s", owner, strconv.FormatFloat(item.ConfidenceScore, 'f', -1, 64))
}
