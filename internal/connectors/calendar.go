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
	"time"

	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/models"
)

// eventDuration is the length of every created event.
const eventDuration = time.Hour

type eventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type calendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

// Calendar creates one event per action item that has both a task and a
// deadline.
type Calendar struct {
	base
	loc *time.Location
}

// NewCalendar creates a Calendar connector. An empty zone name uses the
// host's zone, which must resolve to an IANA name.
func NewCalendar(baseURL, zone string, opts ...Option) (*Calendar, error) {
	if zone == "" {
		local, err := config.LocalZoneName()
		if err != nil {
			return nil, err
		}
		zone = local
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", zone, err)
	}

	return &Calendar{base: newBase("calendar", baseURL, opts), loc: loc}, nil
}

// Sync creates the events and returns how many were created.
func (c *Calendar) Sync(ctx context.Context, s *models.Session, record *models.OrchestrationRecord) (int, error) {
	if !c.ready(s, record) {
		slog.Debug("calendar sync skipped: no credential or template")
		return 0, nil
	}

	client := c.client(ctx, s)
	url := c.baseURL + "/calendars/primary/events"
	title := record.MeetingMetadata.TitleText()

	var created, failed int
	for i, item := range record.ActionItems() {
		deadline := item.DeadlineText()
		if item.Task == "" || deadline == "" {
			continue
		}

		start, parsed := ParseDeadline(deadline, c.now(), c.loc)
		if !parsed {
			slog.Debug("unparsable deadline, using fallback", "index", i, "deadline", deadline)
		}

		ev := calendarEvent{
			Summary:     item.Task,
			Description: eventDescription(item, title),
			Start:       eventTime{DateTime: start.Format(time.RFC3339), TimeZone: c.loc.String()},
			End:         eventTime{DateTime: start.Add(eventDuration).Format(time.RFC3339), TimeZone: c.loc.String()},
		}

		err := postJSON(ctx, client, url, ev)
		c.tally(err)
		if err != nil {
			slog.Error("failed to create calendar event", "index", i, "task", item.Task, "error", err)
			failed++
			continue
		}
		created++
	}

	slog.Info("calendar sync complete", "created", created, "failed", failed)
	return created, c.partial(failed, created+failed)
}

func eventDescription(item models.ActionItem, meeting string) string {
	owner := item.OwnerName()
	if owner == "" {
		owner = "Unassigned"
	}
	desc := fmt.Sprintf("Owner: %s", owner)
	if meeting != "" {
		desc = fmt.Sprintf("From meeting: %s\n%s", meeting, desc)
	}
	return desc
}
