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

// Package events publishes processing outcomes to Redis as Celery-compatible
// tasks. Downstream notification workers consume them from the list.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/models"
)

const (
	taskGateOutcome        = "notifications.tasks.gate_outcome"
	taskDispatchTransition = "notifications.tasks.dispatch_transition"
)

// Pusher is the subset of the Redis client the publisher needs.
type Pusher interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// GateEvent is published once per gate evaluation that reached the oracle.
type GateEvent struct {
	RunID       string          `json:"run_id"`
	Outcome     string          `json:"outcome"`
	Cause       string          `json:"cause,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	NextStep    models.NextStep `json:"next_allowed_step"`
	CallerEmail string          `json:"caller_email"`
	Emails      int             `json:"emails"`
	At          time.Time       `json:"at"`
}

// TransitionEvent is published for every dispatch item transition.
type TransitionEvent struct {
	RunID     string                `json:"run_id"`
	ItemID    string                `json:"item_id"`
	Position  int                   `json:"position"`
	To        string                `json:"to"`
	From      models.DispatchStatus `json:"from"`
	Status    models.DispatchStatus `json:"status"`
	Attempts  int                   `json:"attempts"`
	LastError string                `json:"last_error,omitempty"`
	At        time.Time             `json:"at"`
}

// Publisher sends outcome events to Redis in Celery task format.
type Publisher struct {
	rdb       Pusher
	queueName string
}

// NewPublisher creates a new Redis publisher targeting the specified queue.
func NewPublisher(rdb Pusher, queueName string) *Publisher {
	return &Publisher{
		rdb:       rdb,
		queueName: queueName,
	}
}

// celeryTask represents a Celery-compatible task message.
type celeryTask struct {
	ID      string        `json:"id"`
	Task    string        `json:"task"`
	Args    []interface{} `json:"args"`
	Kwargs  interface{}   `json:"kwargs"`
	Retries int           `json:"retries"`
	ETA     *string       `json:"eta"`
}

// celeryMessage wraps a task for Redis transport.
type celeryMessage struct {
	Body            string                 `json:"body"`
	ContentEncoding string                 `json:"content-encoding"`
	ContentType     string                 `json:"content-type"`
	Headers         map[string]interface{} `json:"headers"`
	Properties      map[string]interface{} `json:"properties"`
}

// PublishGateOutcome publishes the result of one gate evaluation.
func (p *Publisher) PublishGateOutcome(ctx context.Context, ev GateEvent) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	taskID, err := p.publish(ctx, taskGateOutcome, ev)
	if err != nil {
		return err
	}

	slog.Info("published gate outcome",
		"task_id", taskID,
		"run_id", ev.RunID,
		"outcome", ev.Outcome,
		"queue", p.queueName,
	)
	return nil
}

// ItemTransitioned implements dispatch.Observer.
func (p *Publisher) ItemTransitioned(ctx context.Context, t dispatch.Transition) error {
	ev := TransitionEvent{
		RunID:     t.QueueID,
		ItemID:    t.Item.ID,
		Position:  t.Position,
		To:        t.Item.To,
		From:      t.From,
		Status:    t.To,
		Attempts:  t.Item.Attempts,
		LastError: t.Item.LastError,
		At:        t.At,
	}
	taskID, err := p.publish(ctx, taskDispatchTransition, ev)
	if err != nil {
		return err
	}

	slog.Debug("published dispatch transition",
		"task_id", taskID,
		"run_id", ev.RunID,
		"item", ev.ItemID,
		"status", ev.Status,
	)
	return nil
}

// Ping checks the Redis connection.
func (p *Publisher) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Ping(ctx).Err()
}

func (p *Publisher) publish(ctx context.Context, task string, payload interface{}) (string, error) {
	msg, taskID, err := p.envelope(task, payload)
	if err != nil {
		return "", err
	}

	// Celery consumes with BRPOP, so producers LPUSH.
	if err := p.rdb.LPush(ctx, p.queueName, msg).Err(); err != nil {
		return "", fmt.Errorf("redis LPUSH: %w", err)
	}
	return taskID, nil
}

// envelope wraps payload in the Celery message format.
func (p *Publisher) envelope(task string, payload interface{}) (string, string, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("marshal event: %w", err)
	}

	taskID := uuid.New().String()

	body, err := json.Marshal(celeryTask{
		ID:     taskID,
		Task:   task,
		Args:   []interface{}{string(payloadJSON)},
		Kwargs: map[string]interface{}{},
	})
	if err != nil {
		return "", "", fmt.Errorf("marshal celery task: %w", err)
	}

	msg := celeryMessage{
		Body:            string(body),
		ContentEncoding: "utf-8",
		ContentType:     "application/json",
		Headers: map[string]interface{}{
			"lang":    "py",
			"task":    task,
			"id":      taskID,
			"retries": 0,
		},
		Properties: map[string]interface{}{
			"correlation_id": taskID,
			"delivery_mode":  2,
			"delivery_tag":   taskID,
			"body_encoding":  "utf-8",
			"delivery_info": map[string]string{
				"exchange":    p.queueName,
				"routing_key": p.queueName,
			},
		},
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return "", "", fmt.Errorf("marshal celery message: %w", err)
	}
	return string(msgJSON), taskID, nil
}
