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

// Package journal provides a Postgres-backed audit trail of processing runs
// and the state of their dispatch items. The in-memory queue stays the
// source of truth; the journal is written after each transition.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/models"
)

// RunRecord is one gate evaluation persisted in Postgres.
type RunRecord struct {
	RunID          string
	CallerEmail    string
	CallerProvider string
	IsMedia        bool
	Outcome        string // "PASSED", "BLOCKED"
	Cause          string
	Reason         string
	NextStep       models.NextStep
	Record         *models.OrchestrationRecord
	CreatedAt      time.Time
}

// ItemRecord is the last journaled state of one dispatch item.
type ItemRecord struct {
	ItemID    string
	RunID     string
	Position  int
	Recipient string
	Subject   string
	Status    models.DispatchStatus
	Attempts  int
	LastError string
	UpdatedAt time.Time
}

// Store writes runs and item transitions to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a journal store backed by the given Postgres pool.
// It ensures the tables exist on creation.
func NewStore(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure journal schema: %w", err)
	}
	slog.Info("journal store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS processing_runs (
			run_id            TEXT PRIMARY KEY,
			caller_email      TEXT NOT NULL,
			caller_provider   TEXT DEFAULT '',
			is_media          BOOLEAN DEFAULT FALSE,
			outcome           TEXT NOT NULL,
			cause             TEXT DEFAULT '',
			reason            TEXT DEFAULT '',
			next_allowed_step TEXT NOT NULL,
			record            JSONB,
			created_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_runs_caller ON processing_runs(caller_email);

		CREATE TABLE IF NOT EXISTS dispatch_items (
			item_id     TEXT PRIMARY KEY,
			run_id      TEXT NOT NULL REFERENCES processing_runs(run_id),
			position    INT NOT NULL,
			recipient   TEXT NOT NULL,
			subject     TEXT DEFAULT '',
			status      TEXT NOT NULL,
			attempts    INT DEFAULT 0,
			last_error  TEXT DEFAULT '',
			created_at  TIMESTAMPTZ DEFAULT NOW(),
			updated_at  TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_items_run ON dispatch_items(run_id, position);
	`)
	return err
}

// RecordRun inserts a run. Re-recording the same run ID is a no-op.
func (s *Store) RecordRun(ctx context.Context, r RunRecord) error {
	var record []byte
	if r.Record != nil {
		var err error
		if record, err = json.Marshal(r.Record); err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO processing_runs
			(run_id, caller_email, caller_provider, is_media, outcome, cause, reason, next_allowed_step, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO NOTHING
	`, r.RunID, r.CallerEmail, r.CallerProvider, r.IsMedia, r.Outcome, r.Cause, r.Reason, string(r.NextStep), record)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.RunID, err)
	}
	return nil
}

// GetRun retrieves a run by ID. Returns nil, nil when it does not exist.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, caller_email, caller_provider, is_media, outcome,
		       cause, reason, next_allowed_step, record, created_at
		FROM processing_runs
		WHERE run_id = $1
	`, runID)

	var (
		r      RunRecord
		step   string
		record []byte
	)
	err := row.Scan(
		&r.RunID, &r.CallerEmail, &r.CallerProvider, &r.IsMedia, &r.Outcome,
		&r.Cause, &r.Reason, &step, &record, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r.NextStep = models.NextStep(step)
	if len(record) > 0 {
		r.Record = &models.OrchestrationRecord{}
		if err := json.Unmarshal(record, r.Record); err != nil {
			return nil, fmt.Errorf("decode record for run %s: %w", runID, err)
		}
	}
	return &r, nil
}

// ItemTransitioned implements dispatch.Observer, upserting the item's
// latest state keyed on item ID.
func (s *Store) ItemTransitioned(ctx context.Context, t dispatch.Transition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_items
			(item_id, run_id, position, recipient, subject, status, attempts, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (item_id) DO UPDATE SET
			status     = EXCLUDED.status,
			attempts   = EXCLUDED.attempts,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at
	`, t.Item.ID, t.QueueID, t.Position, t.Item.To, t.Item.Subject,
		string(t.To), t.Item.Attempts, t.Item.LastError, t.At)
	if err != nil {
		return fmt.Errorf("upsert dispatch item %s: %w", t.Item.ID, err)
	}
	return nil
}

// ListItems returns the journaled items of a run in queue order.
func (s *Store) ListItems(ctx context.Context, runID string) ([]ItemRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT item_id, run_id, position, recipient, subject, status,
		       attempts, last_error, updated_at
		FROM dispatch_items
		WHERE run_id = $1
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var (
			it     ItemRecord
			status string
		)
		if err := rows.Scan(
			&it.ItemID, &it.RunID, &it.Position, &it.Recipient, &it.Subject,
			&status, &it.Attempts, &it.LastError, &it.UpdatedAt,
		); err != nil {
			return nil, err
		}
		it.Status = models.DispatchStatus(status)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
