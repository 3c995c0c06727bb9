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

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Run passed and every requested step succeeded
	ExitFailure      = 1 // Pipeline blocked or some send/sync failed
	ExitCommandError = 2 // Bad flags, config, auth or oracle failure
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// response is the JSON output envelope.
type response struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`
	Error  *cliError   `json:"error,omitempty"`
}

type cliError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// output writes results in the configured format.
type output struct {
	format string
	w      io.Writer
}

func (o output) json() bool { return o.format == "json" }

func (o output) success(data interface{}, text func(io.Writer)) error {
	if o.json() {
		return json.NewEncoder(o.w).Encode(response{Status: "ok", Data: data})
	}
	text(o.w)
	return nil
}

func (o output) failure(kind, message string, data interface{}) error {
	if o.json() {
		return json.NewEncoder(o.w).Encode(response{
			Status: "error",
			Data:   data,
			Error:  &cliError{Kind: kind, Message: message},
		})
	}
	fmt.Fprintf(o.w, "Error [%s]: %s\n", kind, message)
	return nil
}
