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

// Package pipeline ties the gate, the dispatch queue and the sync
// connectors into processing runs that callers operate by ID.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcem/postmeet/internal/connectors"
	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/events"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/gate"
	"github.com/bcem/postmeet/internal/journal"
	"github.com/bcem/postmeet/internal/models"
)

// ErrUnknownRun is returned for run IDs that do not exist or belong to
// another caller.
var ErrUnknownRun = errors.New("unknown run")

// Journal persists runs and item transitions and reads them back for runs
// no longer held in memory. GetRun returns nil, nil for an unknown ID.
type Journal interface {
	RecordRun(ctx context.Context, r journal.RunRecord) error
	GetRun(ctx context.Context, runID string) (*journal.RunRecord, error)
	ListItems(ctx context.Context, runID string) ([]journal.ItemRecord, error)
	dispatch.Observer
}

// Publisher announces gate outcomes and item transitions.
type Publisher interface {
	PublishGateOutcome(ctx context.Context, ev events.GateEvent) error
	dispatch.Observer
}

// SenderFunc picks the mail transport for a caller session.
type SenderFunc func(ctx context.Context, s *models.Session) dispatch.Sender

// Config holds the dependencies of a Service. Journal and Events are
// optional.
type Config struct {
	Gate     *gate.Gate
	Senders  SenderFunc
	Calendar connectors.Syncer
	Tasks    connectors.Syncer
	Journal  Journal
	Events   Publisher
}

// Service runs processing cycles and keeps every run it created.
type Service struct {
	gate     *gate.Gate
	senders  SenderFunc
	calendar connectors.Syncer
	tasks    connectors.Syncer
	journal  Journal
	events   Publisher
	runs     *registry
	now      func() time.Time
}

// NewService creates a pipeline service.
func NewService(cfg Config) *Service {
	return &Service{
		gate:     cfg.Gate,
		senders:  cfg.Senders,
		calendar: cfg.Calendar,
		tasks:    cfg.Tasks,
		journal:  cfg.Journal,
		events:   cfg.Events,
		runs:     newRegistry(),
		now:      time.Now,
	}
}

// Process evaluates the gate for req. A passed record becomes a run with a
// seeded dispatch queue. A blocked record becomes a run without one, and
// the PIPELINE_BLOCKED failure is returned alongside it. AUTH_REQUIRED and
// ORACLE_FAILURE return no run.
func (s *Service) Process(ctx context.Context, sess *models.Session, req models.OrchestrationRequest) (*Run, error) {
	runID := uuid.NewString()

	res, err := s.gate.Evaluate(ctx, sess, req)
	if err != nil {
		if failure.Is(err, failure.KindOracleFailure) {
			s.recordOutcome(ctx, runID, sess, req, gate.Result{}, string(failure.KindOracleFailure), err.Error())
		}
		return nil, err
	}

	run := &Run{
		ID:        runID,
		Owner:     sess.Email,
		CreatedAt: s.now().UTC(),
		Request:   req,
		Result:    res,
	}

	s.recordOutcome(ctx, runID, sess, req, res, string(res.Outcome), res.Reason)

	if res.Outcome == gate.Passed {
		run.sender = &boundSender{}
		run.sender.bind(s.sender(ctx, sess))

		opts := []dispatch.Option{dispatch.WithID(runID)}
		if s.journal != nil {
			opts = append(opts, dispatch.WithObserver(s.journal))
		}
		if s.events != nil {
			opts = append(opts, dispatch.WithObserver(s.events))
		}
		run.queue = dispatch.NewQueue(res.Record.EmailExecutionIntent.Emails, run.sender, opts...)
	}

	s.runs.put(run)

	slog.Info("processing run created",
		"run_id", runID,
		"caller", sess.Email,
		"outcome", res.Outcome,
		"media", req.IsMedia,
	)

	return run, res.Err()
}

// Run returns a run owned by sess.
func (s *Service) Run(sess *models.Session, id string) (*Run, error) {
	run, ok := s.runs.get(id)
	if !ok || !sess.HasIdentity() || !strings.EqualFold(run.Owner, sess.Email) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRun, id)
	}
	return run, nil
}

// Snapshot returns the current state of a run owned by sess. A run that is
// not in memory, such as one created before a restart, is read back from the
// journal as an archived snapshot.
func (s *Service) Snapshot(ctx context.Context, sess *models.Session, id string) (Snapshot, error) {
	run, err := s.Run(sess, id)
	if err == nil {
		return run.Snapshot(), nil
	}
	if s.journal == nil || !sess.HasIdentity() {
		return Snapshot{}, err
	}
	if _, held := s.runs.get(id); held {
		return Snapshot{}, err
	}

	rec, jerr := s.journal.GetRun(ctx, id)
	if jerr != nil {
		return Snapshot{}, fmt.Errorf("read journaled run %s: %w", id, jerr)
	}
	if rec == nil || !strings.EqualFold(rec.CallerEmail, sess.Email) {
		return Snapshot{}, err
	}

	rows, jerr := s.journal.ListItems(ctx, id)
	if jerr != nil {
		return Snapshot{}, fmt.Errorf("read journaled items of run %s: %w", id, jerr)
	}
	slog.Debug("run served from journal", "run_id", id, "items", len(rows))
	return journaledSnapshot(rec, rows), nil
}

// SendOne sends one item of a run. A dispatch failure is item-local: the
// returned item is FAILED and err is the *dispatch.DispatchError.
func (s *Service) SendOne(ctx context.Context, sess *models.Session, runID, itemID string) (models.DispatchItem, error) {
	return s.sendItem(ctx, sess, runID, itemID, (*dispatch.Queue).SendOne)
}

// Retry re-sends a FAILED item of a run.
func (s *Service) Retry(ctx context.Context, sess *models.Session, runID, itemID string) (models.DispatchItem, error) {
	return s.sendItem(ctx, sess, runID, itemID, (*dispatch.Queue).Retry)
}

// SendAll sends every pending item of a run in order.
func (s *Service) SendAll(ctx context.Context, sess *models.Session, runID string) (dispatch.Summary, error) {
	run, err := s.actionable(ctx, sess, runID)
	if err != nil {
		return dispatch.Summary{}, err
	}
	return run.queue.SendAll(ctx), nil
}

// SyncCalendar creates calendar events for the run's action items.
func (s *Service) SyncCalendar(ctx context.Context, sess *models.Session, runID string) (int, error) {
	return s.sync(ctx, sess, runID, "calendar", s.calendar)
}

// SyncTasks creates tasks for the run's summary and action items.
func (s *Service) SyncTasks(ctx context.Context, sess *models.Session, runID string) (int, error) {
	return s.sync(ctx, sess, runID, "tasks", s.tasks)
}

func (s *Service) sendItem(
	ctx context.Context,
	sess *models.Session,
	runID, itemID string,
	send func(*dispatch.Queue, context.Context, string) error,
) (models.DispatchItem, error) {
	run, err := s.actionable(ctx, sess, runID)
	if err != nil {
		return models.DispatchItem{}, err
	}

	sendErr := send(run.queue, ctx, itemID)
	item, ok := run.queue.Item(itemID)
	if !ok {
		return models.DispatchItem{}, sendErr
	}
	return item, sendErr
}

func (s *Service) sync(ctx context.Context, sess *models.Session, runID, name string, syncer connectors.Syncer) (int, error) {
	run, err := s.Run(sess, runID)
	if err != nil {
		return 0, err
	}
	if !run.Actionable() {
		return 0, run.Result.Err()
	}
	if syncer == nil {
		slog.Warn("sync connector not configured", "connector", name)
		return 0, nil
	}

	n, err := syncer.Sync(ctx, sess, run.Result.Record)
	slog.Info("sync finished", "run_id", runID, "connector", name, "created", n, "error", err)
	return n, err
}

// actionable resolves a passed run and rebinds its transport to sess.
func (s *Service) actionable(ctx context.Context, sess *models.Session, runID string) (*Run, error) {
	run, err := s.Run(sess, runID)
	if err != nil {
		return nil, err
	}
	if !run.Actionable() {
		return nil, run.Result.Err()
	}
	run.sender.bind(s.sender(ctx, sess))
	return run, nil
}

func (s *Service) sender(ctx context.Context, sess *models.Session) dispatch.Sender {
	if s.senders == nil {
		return nil
	}
	return s.senders(ctx, sess)
}

// recordOutcome journals and publishes a gate outcome. Failures are logged.
func (s *Service) recordOutcome(
	ctx context.Context,
	runID string,
	sess *models.Session,
	req models.OrchestrationRequest,
	res gate.Result,
	outcome, reason string,
) {
	emails := 0
	if res.Record != nil {
		emails = len(res.Record.EmailExecutionIntent.Emails)
	}

	if s.journal != nil {
		err := s.journal.RecordRun(ctx, journal.RunRecord{
			RunID:          runID,
			CallerEmail:    sess.Email,
			CallerProvider: string(sess.Provider),
			IsMedia:        req.IsMedia,
			Outcome:        outcome,
			Cause:          string(res.Cause),
			Reason:         reason,
			NextStep:       res.NextAllowedStep(),
			Record:         res.Record,
		})
		if err != nil {
			slog.Warn("failed to journal run", "run_id", runID, "error", err)
		}
	}

	if s.events != nil {
		err := s.events.PublishGateOutcome(ctx, events.GateEvent{
			RunID:       runID,
			Outcome:     outcome,
			Cause:       string(res.Cause),
			Reason:      reason,
			NextStep:    res.NextAllowedStep(),
			CallerEmail: sess.Email,
			Emails:      emails,
			At:          s.now().UTC(),
		})
		if err != nil {
			slog.Warn("failed to publish gate outcome", "run_id", runID, "error", err)
		}
	}
}
