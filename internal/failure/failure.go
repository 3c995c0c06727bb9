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

// Package failure defines the error taxonomy surfaced to callers. Every
// failure carries a short machine-usable Kind plus free text.
package failure

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure for callers that decide how to retry.
type Kind string

const (
	// KindAuthRequired: no caller identity. Raised before any network call.
	KindAuthRequired Kind = "AUTH_REQUIRED"

	// KindOracleFailure: the oracle produced no usable answer.
	KindOracleFailure Kind = "ORACLE_FAILURE"

	// KindPipelineBlocked: the oracle (or the gate) said no.
	KindPipelineBlocked Kind = "PIPELINE_BLOCKED"

	// KindDispatch: a single email send failed.
	KindDispatch Kind = "DISPATCH_ERROR"

	// KindSyncPartial: some calendar or task entries were not created.
	KindSyncPartial Kind = "SYNC_PARTIAL_FAILURE"
)

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a classified failure without an underlying cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Kinded is implemented by errors that classify themselves.
type Kinded interface {
	FailureKind() Kind
}

// FailureKind implements Kinded.
func (e *Error) FailureKind() Kind { return e.Kind }

// KindOf returns the kind of the first classified error in err's chain,
// or "" if none is found.
func KindOf(err error) Kind {
	var k Kinded
	if errors.As(err, &k) {
		return k.FailureKind()
	}
	return ""
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Explain returns the free-text part of a classified error, falling back
// to err.Error().
func Explain(err error) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
