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

// Package gate decides whether a processing cycle may proceed. It checks
// the caller identity before the oracle is ever contacted, then inspects the
// oracle's record in a fixed precedence order and produces exactly one
// user-facing reason when the answer is no.
package gate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/metrics"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/oracle"
)

// Outcome is the tag of a gate Result.
type Outcome string

const (
	Passed  Outcome = "PASSED"
	Blocked Outcome = "BLOCKED"
)

// Cause identifies which gate rule blocked a record.
type Cause string

const (
	CauseNone           Cause = ""
	CauseRecordBlocking Cause = "record_blocking"
	CauseEmailBlocking  Cause = "email_intent_blocking"
	CauseSenderMismatch Cause = "sender_mismatch"
)

// Default reasons for blocks the oracle did not explain.
const (
	defaultRecordReason = "Processing is blocked: no usable transcript is available."
	defaultEmailReason  = "Email execution is blocked by the orchestration layer."
)

// Result is either Passed with an actionable record or Blocked with a
// reason. There is no partial pass.
type Result struct {
	Outcome Outcome
	Reason  string
	Cause   Cause
	Record  *models.OrchestrationRecord
}

// NextAllowedStep is NONE for every blocked result.
func (r Result) NextAllowedStep() models.NextStep {
	if r.Outcome != Passed || r.Record == nil {
		return models.NextStepNone
	}
	return r.Record.EffectiveNextStep()
}

// Err converts a blocked result into a PIPELINE_BLOCKED failure, or nil.
func (r Result) Err() error {
	if r.Outcome != Blocked {
		return nil
	}
	return failure.New(failure.KindPipelineBlocked, "%s", r.Reason)
}

// Gate evaluates processing preconditions.
type Gate struct {
	oracle oracle.Oracle
}

// New creates a gate backed by o.
func New(o oracle.Oracle) *Gate {
	return &Gate{oracle: o}
}

// Evaluate runs one gate evaluation for session and req. It returns an
// AUTH_REQUIRED failure without contacting the oracle when the session has
// no identity, and an ORACLE_FAILURE when the oracle gives no usable answer.
func (g *Gate) Evaluate(ctx context.Context, session *models.Session, req models.OrchestrationRequest) (Result, error) {
	if !session.HasIdentity() {
		metrics.GateOutcomes.WithLabelValues(string(failure.KindAuthRequired)).Inc()
		return Result{}, failure.New(failure.KindAuthRequired, "sign in before processing a meeting")
	}

	start := time.Now()
	record, err := g.oracle.Orchestrate(ctx, req)
	metrics.OracleDuration.Observe(time.Since(start).Seconds())
	if err == nil && record == nil {
		err = fmt.Errorf("oracle returned no record")
	}
	if err != nil {
		metrics.GateOutcomes.WithLabelValues(string(failure.KindOracleFailure)).Inc()
		slog.Error("oracle call failed",
			"caller", session.Email,
			"media", req.IsMedia,
			"error", err,
		)
		return Result{}, failure.Wrap(failure.KindOracleFailure, err, "the intelligence layer returned no usable answer")
	}

	result := Check(record, session.Email)
	metrics.GateOutcomes.WithLabelValues(string(result.Outcome)).Inc()

	if result.Outcome == Blocked {
		slog.Info("pipeline blocked",
			"caller", session.Email,
			"cause", result.Cause,
			"reason", result.Reason,
		)
	} else {
		slog.Info("pipeline passed",
			"caller", session.Email,
			"emails", len(record.EmailExecutionIntent.Emails),
		)
	}

	return result, nil
}

// Check applies the gate rules to record for callerEmail. Rules are
// evaluated in order and the first match wins.
func Check(record *models.OrchestrationRecord, callerEmail string) Result {
	if record.BlockingError.IsBlocking {
		return blocked(record, CauseRecordBlocking, reasonOr(record.BlockingError, defaultRecordReason))
	}

	intent := record.EmailExecutionIntent
	if intent.BlockingError.IsBlocking {
		return blocked(record, CauseEmailBlocking, reasonOr(intent.BlockingError, defaultEmailReason))
	}

	if !sameAddress(intent.Sender.Email, callerEmail) {
		return blocked(record, CauseSenderMismatch, fmt.Sprintf(
			"Sender %q does not match the signed-in user %q; refusing to send on someone else's behalf.",
			intent.Sender.Email, callerEmail,
		))
	}

	return Result{Outcome: Passed, Record: record}
}

func blocked(record *models.OrchestrationRecord, cause Cause, reason string) Result {
	return Result{Outcome: Blocked, Cause: cause, Reason: reason, Record: record}
}

func reasonOr(b models.BlockingError, fallback string) string {
	if r := b.ReasonText(); r != "" {
		return r
	}
	return fallback
}

// sameAddress compares mailbox addresses case-insensitively.
func sameAddress(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
