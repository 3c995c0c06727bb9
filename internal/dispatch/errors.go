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

package dispatch

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bcem/postmeet/internal/failure"
)

var (
	// ErrUnknownItem is returned for an ID the queue never seeded.
	ErrUnknownItem = errors.New("unknown dispatch item")

	// ErrNotSendable is returned when an item is already SENDING or SENT,
	// or when a retry targets an item that has not failed.
	ErrNotSendable = errors.New("dispatch item is not sendable")
)

// ErrorKind classifies a failed send.
type ErrorKind string

const (
	KindAuthExpired  ErrorKind = "AUTH_EXPIRED"
	KindAccessDenied ErrorKind = "ACCESS_DENIED"
	KindProvider     ErrorKind = "PROVIDER"
	KindNetwork      ErrorKind = "NETWORK"
)

// DispatchError is the per-item failure recorded on a FAILED item.
type DispatchError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DispatchError) Unwrap() error { return e.Err }

// FailureKind implements failure.Kinded.
func (e *DispatchError) FailureKind() failure.Kind { return failure.KindDispatch }

// FromStatus maps a non-2xx provider response to a DispatchError.
func FromStatus(statusCode int, message string) *DispatchError {
	kind := KindProvider
	switch statusCode {
	case http.StatusUnauthorized:
		kind = KindAuthExpired
		if message == "" {
			message = "the provider session has expired; sign in again"
		}
	case http.StatusForbidden:
		kind = KindAccessDenied
		if message == "" {
			message = "the provider denied permission to send mail"
		}
	}
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return &DispatchError{Kind: kind, StatusCode: statusCode, Message: message}
}

// Network wraps a transport-level error.
func Network(err error) *DispatchError {
	return &DispatchError{Kind: KindNetwork, Message: err.Error(), Err: err}
}

// classify turns any sender error into a DispatchError.
func classify(err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}
	return Network(err)
}
