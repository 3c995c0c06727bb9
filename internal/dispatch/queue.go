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

// Package dispatch owns the per-recipient email batch of a passed record.
// Every item moves STAGED → SENDING → {SENT | FAILED}, and FAILED items
// re-enter SENDING on retry. SENT is terminal. The queue's transition
// function is the only writer of item status.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/postmeet/internal/metrics"
	"github.com/bcem/postmeet/internal/models"
)

// Outgoing is the wire form of one item handed to a Sender.
type Outgoing struct {
	ItemID  string
	Payload models.EmailPayload
	// Raw is the RFC 2822 message as URL-safe unpadded base64.
	Raw string
}

// Sender performs the network call for one item. Errors should be
// *DispatchError; anything else is recorded as a NETWORK failure.
type Sender interface {
	Send(ctx context.Context, msg Outgoing) error
}

// Transition describes one status change of an item.
type Transition struct {
	QueueID  string
	Position int
	From     models.DispatchStatus
	To       models.DispatchStatus
	Item     models.DispatchItem
	At       time.Time
}

// Observer is notified after each transition. Observers cannot veto or
// alter a transition; their errors are logged.
type Observer interface {
	ItemTransitioned(ctx context.Context, t Transition) error
}

// Summary is the aggregate result of SendAll.
type Summary struct {
	Sent    int  `json:"sent"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	AllSent bool `json:"all_sent"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithID sets the queue identifier reported to observers.
func WithID(id string) Option {
	return func(q *Queue) { q.id = id }
}

// WithObserver attaches an observer.
func WithObserver(o Observer) Option {
	return func(q *Queue) {
		if o != nil {
			q.observers = append(q.observers, o)
		}
	}
}

// Queue tracks the dispatch items of one processing run.
type Queue struct {
	id        string
	sender    Sender
	observers []Observer

	mu    sync.Mutex
	items []models.DispatchItem // fixed length after seeding
	index map[string]int
}

// NewQueue seeds a queue from the record's emails, one STAGED item per
// payload, in order. Payloads without a recipient address are dropped.
func NewQueue(emails []models.EmailPayload, sender Sender, opts ...Option) *Queue {
	q := &Queue{
		id:     uuid.NewString(),
		sender: sender,
		index:  make(map[string]int, len(emails)),
	}
	for _, opt := range opts {
		opt(q)
	}

	q.items = make([]models.DispatchItem, 0, len(emails))
	for _, e := range emails {
		if strings.TrimSpace(e.To) == "" {
			slog.Warn("dropping email without recipient", "queue", q.id, "subject", e.Subject)
			continue
		}
		item := models.DispatchItem{
			EmailPayload: e,
			ID:           uuid.NewString(),
			Status:       models.StatusStaged,
		}
		q.index[item.ID] = len(q.items)
		q.items = append(q.items, item)
	}

	slog.Info("dispatch queue seeded", "queue", q.id, "items", len(q.items))
	return q
}

// ID returns the queue identifier.
func (q *Queue) ID() string { return q.id }

// Items returns a snapshot of all items in queue order.
func (q *Queue) Items() []models.DispatchItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.DispatchItem(nil), q.items...)
}

// Item returns a snapshot of one item.
func (q *Queue) Item(id string) (models.DispatchItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx, ok := q.index[id]
	if !ok {
		return models.DispatchItem{}, false
	}
	return q.items[idx], true
}

// AllSent reports whether the queue is non-empty and every item is SENT.
func (q *Queue) AllSent() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return false
	}
	for _, it := range q.items {
		if it.Status != models.StatusSent {
			return false
		}
	}
	return true
}

// SendOne sends a STAGED or FAILED item. Items that are SENDING or SENT are
// rejected with ErrNotSendable and no network call is made. A failed send
// returns the *DispatchError that was recorded on the item.
//
// Once the item is SENDING the send runs to completion even if ctx is
// cancelled.
func (q *Queue) SendOne(ctx context.Context, id string) error {
	return q.send(ctx, id, false)
}

// Retry re-sends a FAILED item in place.
func (q *Queue) Retry(ctx context.Context, id string) error {
	return q.send(ctx, id, true)
}

// SendAll sends every item that is not SENT, one at a time in queue order.
// A failure never stops the loop and nothing is retried automatically.
// Calling it again only touches items that are still not SENT.
func (q *Queue) SendAll(ctx context.Context) Summary {
	var sum Summary

	for _, it := range q.Items() {
		if it.Status == models.StatusSent {
			sum.Skipped++
			continue
		}

		err := q.SendOne(ctx, it.ID)
		switch {
		case err == nil:
			sum.Sent++
		case errors.Is(err, ErrNotSendable):
			// Another caller holds the item in SENDING.
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	sum.AllSent = q.AllSent()

	slog.Info("dispatch batch complete",
		"queue", q.id,
		"sent", sum.Sent,
		"failed", sum.Failed,
		"skipped", sum.Skipped,
		"all_sent", sum.AllSent,
	)

	return sum
}

func (q *Queue) send(ctx context.Context, id string, retryOnly bool) error {
	q.mu.Lock()
	idx, ok := q.index[id]
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}

	item := &q.items[idx]
	if !claimable(item.Status, retryOnly) {
		status := item.Status
		q.mu.Unlock()
		return fmt.Errorf("%w: item %s is %s", ErrNotSendable, id, status)
	}

	from := item.Status
	item.Status = models.StatusSending
	item.Attempts++
	claimed := *item
	q.mu.Unlock()

	q.notify(ctx, idx, from, claimed)

	sendErr := q.deliver(context.WithoutCancel(ctx), claimed)

	q.mu.Lock()
	if sendErr == nil {
		item.Status = models.StatusSent
		item.LastError = ""
	} else {
		item.Status = models.StatusFailed
		item.LastError = sendErr.Error()
	}
	final := *item
	q.mu.Unlock()

	q.notify(ctx, idx, models.StatusSending, final)

	if sendErr != nil {
		metrics.DispatchErrors.WithLabelValues(string(sendErr.Kind)).Inc()
		slog.Warn("dispatch item failed",
			"queue", q.id,
			"item", id,
			"to", final.To,
			"attempt", final.Attempts,
			"kind", sendErr.Kind,
			"error", sendErr.Message,
		)
		return sendErr
	}

	slog.Info("dispatch item sent",
		"queue", q.id,
		"item", id,
		"to", final.To,
		"attempt", final.Attempts,
	)
	return nil
}

// deliver builds the wire message and calls the sender. A panicking sender
// is reported as a NETWORK failure so the claimed item still leaves SENDING.
func (q *Queue) deliver(ctx context.Context, item models.DispatchItem) (derr *DispatchError) {
	if q.sender == nil {
		return &DispatchError{Kind: KindAuthExpired, Message: "no mail transport is available for this session"}
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("mail transport panicked", "queue", q.id, "item", item.ID, "panic", r)
			derr = &DispatchError{Kind: KindNetwork, Message: fmt.Sprintf("mail transport failed: %v", r)}
		}
	}()

	msg := Outgoing{
		ItemID:  item.ID,
		Payload: item.EmailPayload,
		Raw:     EncodeRaw(BuildMessage(item.EmailPayload)),
	}
	if err := q.sender.Send(ctx, msg); err != nil {
		return classify(err)
	}
	return nil
}

func (q *Queue) notify(ctx context.Context, position int, from models.DispatchStatus, item models.DispatchItem) {
	metrics.DispatchTransitions.WithLabelValues(string(item.Status)).Inc()

	t := Transition{
		QueueID:  q.id,
		Position: position,
		From:     from,
		To:       item.Status,
		Item:     item,
		At:       time.Now().UTC(),
	}
	for _, o := range q.observers {
		if err := o.ItemTransitioned(context.WithoutCancel(ctx), t); err != nil {
			slog.Warn("dispatch observer failed",
				"queue", q.id,
				"item", item.ID,
				"status", item.Status,
				"error", err,
			)
		}
	}
}

func claimable(s models.DispatchStatus, retryOnly bool) bool {
	if retryOnly {
		return s == models.StatusFailed
	}
	return s == models.StatusStaged || s == models.StatusFailed
}
