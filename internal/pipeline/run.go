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

package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/gate"
	"github.com/bcem/postmeet/internal/journal"
	"github.com/bcem/postmeet/internal/models"
)

// Run is one processing cycle. Blocked runs carry no queue.
type Run struct {
	ID        string
	Owner     string
	CreatedAt time.Time
	Request   models.OrchestrationRequest
	Result    gate.Result

	queue  *dispatch.Queue
	sender *boundSender
}

// Actionable reports whether the run passed the gate.
func (r *Run) Actionable() bool {
	return r.Result.Outcome == gate.Passed && r.queue != nil
}

// Queue returns the run's dispatch queue, nil for blocked runs.
func (r *Run) Queue() *dispatch.Queue { return r.queue }

// Snapshot is a read-only view of a run.
type Snapshot struct {
	ID              string                      `json:"id"`
	Outcome         gate.Outcome                `json:"outcome"`
	Cause           gate.Cause                  `json:"cause,omitempty"`
	Reason          string                      `json:"reason,omitempty"`
	NextAllowedStep models.NextStep             `json:"next_allowed_step"`
	CreatedAt       time.Time                   `json:"created_at"`
	Record          *models.OrchestrationRecord `json:"record,omitempty"`
	Items           []models.DispatchItem       `json:"items"`
	AllSent         bool                        `json:"all_sent"`

	// Archived marks a snapshot read back from the journal. Its run is no
	// longer held in memory and cannot be sent or synced.
	Archived bool `json:"archived,omitempty"`
}

// Snapshot returns the run's current state.
func (r *Run) Snapshot() Snapshot {
	s := Snapshot{
		ID:              r.ID,
		Outcome:         r.Result.Outcome,
		Cause:           r.Result.Cause,
		Reason:          r.Result.Reason,
		NextAllowedStep: r.Result.NextAllowedStep(),
		CreatedAt:       r.CreatedAt,
		Record:          r.Result.Record,
		Items:           []models.DispatchItem{},
	}
	if r.queue != nil {
		s.Items = r.queue.Items()
		s.AllSent = r.queue.AllSent()
	}
	return s
}

// journaledSnapshot rebuilds a read-only snapshot from journal rows.
// Bodies are not journaled, so items carry recipient and subject only.
func journaledSnapshot(rec *journal.RunRecord, rows []journal.ItemRecord) Snapshot {
	s := Snapshot{
		ID:              rec.RunID,
		Outcome:         gate.Outcome(rec.Outcome),
		Cause:           gate.Cause(rec.Cause),
		Reason:          rec.Reason,
		NextAllowedStep: rec.NextStep,
		CreatedAt:       rec.CreatedAt,
		Record:          rec.Record,
		Items:           make([]models.DispatchItem, 0, len(rows)),
		Archived:        true,
	}

	s.AllSent = len(rows) > 0
	for _, row := range rows {
		s.Items = append(s.Items, models.DispatchItem{
			EmailPayload: models.EmailPayload{To: row.Recipient, Subject: row.Subject},
			ID:           row.ItemID,
			Status:       row.Status,
			LastError:    row.LastError,
			Attempts:     row.Attempts,
		})
		if row.Status != models.StatusSent {
			s.AllSent = false
		}
	}
	return s
}

// boundSender forwards to the transport of the most recent caller session,
// so a run seeded before a re-sign-in sends with the fresh token.
type boundSender struct {
	mu     sync.Mutex
	sender dispatch.Sender
}

func (b *boundSender) bind(s dispatch.Sender) {
	b.mu.Lock()
	b.sender = s
	b.mu.Unlock()
}

func (b *boundSender) Send(ctx context.Context, msg dispatch.Outgoing) error {
	b.mu.Lock()
	s := b.sender
	b.mu.Unlock()
	if s == nil {
		return &dispatch.DispatchError{Kind: dispatch.KindAuthExpired, Message: "no mail transport is bound to this run"}
	}
	return s.Send(ctx, msg)
}

// registry holds runs for the lifetime of the process.
type registry struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

func newRegistry() *registry {
	return &registry{runs: make(map[string]*Run)}
}

func (r *registry) put(run *Run) {
	r.mu.Lock()
	r.runs[run.ID] = run
	r.mu.Unlock()
}

func (r *registry) get(id string) (*Run, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	return run, ok
}
