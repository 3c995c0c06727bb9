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
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bcem/postmeet/internal/session"
)

// SessionResult is the output of "session create".
type SessionResult struct {
	Token     string     `json:"token"`
	Email     string     `json:"email"`
	Provider  string     `json:"provider"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// NewSessionCommand creates the session command group.
func NewSessionCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage API sessions",
	}
	cmd.AddCommand(newSessionCreateCommand(opts))
	return cmd
}

func newSessionCreateCommand(opts *RootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Store a session for the identity flags and print its bearer token",
		Long: `Write the caller identity and provider access token to the Redis session
store, the same record the auth collaborator writes after sign-in, and print
the bearer token the HTTP API accepts for it.

Example:
  postmeet session create --email lead@example.com --token $TOKEN --ttl 1h
  curl -H "Authorization: Bearer <token>" localhost:8080/api/v1/assets`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output{format: opts.Format, w: cmd.OutOrStdout()}

			sess := opts.session()
			if !sess.HasIdentity() || sess.AccessToken == "" {
				return &ExitError{Code: ExitCommandError, Message: "--email and --token are required"}
			}
			if ttl < 0 {
				return &ExitError{Code: ExitCommandError, Message: "--ttl must not be negative"}
			}
			if ttl > 0 {
				sess.Expiry = now().Add(ttl).UTC()
			}

			cfg, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			kv, err := opts.sessionKV(cfg)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to connect to redis", err)
			}
			if c, ok := kv.(io.Closer); ok {
				defer c.Close()
			}

			token := uuid.NewString()
			if err := session.NewStore(kv, cfg.SessionPrefix).Save(cmd.Context(), token, sess, ttl); err != nil {
				return WrapExitError(ExitCommandError, "failed to store session", err)
			}

			result := SessionResult{Token: token, Email: sess.Email, Provider: string(sess.Provider)}
			if !sess.Expiry.IsZero() {
				result.ExpiresAt = &sess.Expiry
			}
			return out.success(result, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "session lifetime (0 keeps it until removed)")
	return cmd
}
