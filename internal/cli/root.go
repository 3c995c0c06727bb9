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

// Package cli implements the postmeet command-line tool. It runs the same
// pipeline as the API server against a local transcript, without Postgres
// or Redis. Only "session create" talks to Redis.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/oracle"
	"github.com/bcem/postmeet/internal/session"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string

	// Identity of the caller. The access token is the provider token the
	// auth collaborator issued; the CLI never acquires one itself.
	Email       string
	Provider    string
	AccessToken string

	// NewOracle overrides oracle construction (for testing).
	NewOracle func(ctx context.Context, cfg *config.Config) (oracle.Oracle, error)

	// NewSessionKV overrides the Redis client used by "session create"
	// (for testing).
	NewSessionKV func(cfg *config.Config) (session.KV, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the postmeet CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "postmeet",
		Short: "Post-meeting automation",
		Long:  "Turn a meeting transcript into follow-up emails, calendar events and tasks.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			configureLogging(cmd.ErrOrStderr(), opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (default $CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Email, "email", os.Getenv("POSTMEET_EMAIL"), "signed-in caller email")
	cmd.PersistentFlags().StringVar(&opts.Provider, "provider", envOr("POSTMEET_PROVIDER", string(models.ProviderGoogle)), "identity provider (google|microsoft|email)")
	cmd.PersistentFlags().StringVar(&opts.AccessToken, "token", os.Getenv("POSTMEET_ACCESS_TOKEN"), "provider access token")

	cmd.AddCommand(NewProcessCommand(opts))
	cmd.AddCommand(NewAssetsCommand(opts))
	cmd.AddCommand(NewSessionCommand(opts))

	return cmd
}

// session builds the caller session from the identity flags.
func (o *RootOptions) session() *models.Session {
	return &models.Session{
		Email:       o.Email,
		Provider:    models.Provider(o.Provider),
		AccessToken: o.AccessToken,
	}
}

// loadConfig reads --config, then $CONFIG_PATH, then falls back to
// environment defaults only.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	path := o.ConfigPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		return config.Parse(nil)
	}
	return config.LoadFile(path)
}

func (o *RootOptions) oracle(ctx context.Context, cfg *config.Config) (oracle.Oracle, error) {
	if o.NewOracle != nil {
		return o.NewOracle(ctx, cfg)
	}
	gen, err := oracle.NewGeminiGenerator(ctx, cfg.Oracle)
	if err != nil {
		return nil, err
	}
	return oracle.NewAdapter(gen, cfg.Oracle.RateLimit, cfg.Oracle.Burst), nil
}

func (o *RootOptions) sessionKV(cfg *config.Config) (session.KV, error) {
	if o.NewSessionKV != nil {
		return o.NewSessionKV(cfg)
	}
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opt), nil
}

func configureLogging(w io.Writer, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// now is the CLI clock.
var now = time.Now
