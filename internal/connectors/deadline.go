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
	"strings"
	"time"
)

// deadlineLayouts are tried in order. Layouts without an offset are
// interpreted in the connector's time zone.
var deadlineLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDeadline parses a free-form deadline. Unparsable values fall back to
// now + 24h and ok is false.
func ParseDeadline(raw string, now time.Time, loc *time.Location) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range deadlineLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return parsed.In(loc), true
		}
	}
	return now.In(loc).Add(24 * time.Hour), false
}
