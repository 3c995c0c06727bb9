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
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bcem/postmeet/internal/config"
	"github.com/bcem/postmeet/internal/connectors"
	"github.com/bcem/postmeet/internal/dispatch"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/gate"
	"github.com/bcem/postmeet/internal/mail"
	"github.com/bcem/postmeet/internal/models"
	"github.com/bcem/postmeet/internal/pipeline"
)

// ProcessOptions holds flags for the process command.
type ProcessOptions struct {
	*RootOptions
	ImportURL string
	Dispatch  bool
	Sync      []string
}

// ProcessResult is the output of the process command.
type ProcessResult struct {
	Run      pipeline.Snapshot      `json:"run"`
	Dispatch *dispatch.Summary      `json:"dispatch,omitempty"`
	Sync     map[string]*SyncResult `json:"sync,omitempty"`
}

// SyncResult reports one connector run.
type SyncResult struct {
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

// NewProcessCommand creates the process command.
func NewProcessCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProcessOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "process [transcript-file]",
		Short: "Process a meeting transcript",
		Long: `Run a transcript through the orchestration gate and, when it passes,
optionally send the follow-up emails and sync action items.

The transcript is read from the given file, or from stdin when the file is
"-" or omitted. Use --import to process a hosted transcript instead.

Example:
  postmeet process --email lead@example.com --token $TOKEN notes.txt
  postmeet process --email lead@example.com --dispatch --sync calendar,tasks notes.txt
  cat notes.txt | postmeet process --format json --email lead@example.com`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return runProcess(cmd.Context(), opts, path, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.ImportURL, "import", "", "process a transcript hosted at this URL")
	cmd.Flags().BoolVar(&opts.Dispatch, "dispatch", false, "send every staged email after a pass")
	cmd.Flags().StringSliceVar(&opts.Sync, "sync", nil, "sync connectors to run after a pass (calendar,tasks)")

	return cmd
}

func runProcess(ctx context.Context, opts *ProcessOptions, path string, stdin io.Reader, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := output{format: opts.Format, w: stdout}

	for _, name := range opts.Sync {
		if name != "calendar" && name != "tasks" {
			return WrapExitError(ExitCommandError, "invalid --sync value", fmt.Errorf("unknown connector %q", name))
		}
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	sess := opts.session()
	req, err := buildRequest(opts, sess, path, stdin)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	svc, err := newService(ctx, opts.RootOptions, cfg)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialise pipeline", err)
	}

	run, err := svc.Process(ctx, sess, req)
	if err != nil && run == nil {
		kind := string(failure.KindOf(err))
		_ = out.failure(kind, failure.Explain(err), nil)
		return WrapExitError(ExitCommandError, "processing failed", err)
	}
	if err != nil {
		_ = out.failure(string(failure.KindPipelineBlocked), run.Result.Reason, ProcessResult{Run: run.Snapshot()})
		return WrapExitError(ExitFailure, "pipeline blocked", err)
	}

	result := ProcessResult{}
	failed := false

	if opts.Dispatch {
		sum, err := svc.SendAll(ctx, sess, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "dispatch failed", err)
		}
		result.Dispatch = &sum
		failed = failed || !sum.AllSent
	}

	if len(opts.Sync) > 0 {
		result.Sync = make(map[string]*SyncResult, len(opts.Sync))
	}
	for _, name := range opts.Sync {
		var (
			n       int
			syncErr error
		)
		if name == "calendar" {
			n, syncErr = svc.SyncCalendar(ctx, sess, run.ID)
		} else {
			n, syncErr = svc.SyncTasks(ctx, sess, run.ID)
		}
		sr := &SyncResult{Created: n}
		if syncErr != nil {
			sr.Error = syncErr.Error()
			failed = true
		}
		result.Sync[name] = sr
	}

	result.Run = run.Snapshot()
	if err := out.success(result, func(w io.Writer) { printProcessResult(w, result) }); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if failed {
		return &ExitError{Code: ExitFailure, Message: "some steps failed"}
	}
	return nil
}

func buildRequest(opts *ProcessOptions, sess *models.Session, path string, stdin io.Reader) (models.OrchestrationRequest, error) {
	if opts.ImportURL != "" {
		return models.NewImportRequest(sess, opts.ImportURL)
	}

	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.OrchestrationRequest{}, err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, models.MaxInputBytes+1))
	if err != nil {
		return models.OrchestrationRequest{}, err
	}
	return models.NewTextRequest(sess, string(data))
}

func newService(ctx context.Context, opts *RootOptions, cfg *config.Config) (*pipeline.Service, error) {
	o, err := opts.oracle(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create oracle: %w", err)
	}

	calendar, err := connectors.NewCalendar(cfg.Providers.CalendarBaseURL, cfg.TimeZone)
	if err != nil {
		return nil, err
	}

	return pipeline.NewService(pipeline.Config{
		Gate: gate.New(o),
		Senders: func(ctx context.Context, s *models.Session) dispatch.Sender {
			return mail.ForSession(ctx, cfg.Providers, s, now())
		},
		Calendar: calendar,
		Tasks:    connectors.NewTasks(cfg.Providers.TasksBaseURL),
	}), nil
}

func printProcessResult(w io.Writer, r ProcessResult) {
	fmt.Fprintf(w, "Run %s: %s (next step %s)\n", r.Run.ID, r.Run.Outcome, r.Run.NextAllowedStep)
	if r.Run.Record != nil && r.Run.Record.SharedMeetingTemplate != nil {
		if summary := strings.TrimSpace(r.Run.Record.SharedMeetingTemplate.Summary); summary != "" {
			fmt.Fprintf(w, "\n%s\n", summary)
		}
	}

	fmt.Fprintf(w, "\nEmails (%d):\n", len(r.Run.Items))
	for _, it := range r.Run.Items {
		line := fmt.Sprintf("  [%s] %s  %s", it.Status, it.To, it.Subject)
		if it.LastError != "" {
			line += "  (" + it.LastError + ")"
		}
		fmt.Fprintln(w, line)
	}

	if r.Dispatch != nil {
		fmt.Fprintf(w, "\nDispatch: %d sent, %d failed, %d skipped\n", r.Dispatch.Sent, r.Dispatch.Failed, r.Dispatch.Skipped)
	}
	for name, s := range r.Sync {
		if s.Error != "" {
			fmt.Fprintf(w, "Sync %s: %d created (%s)\n", name, s.Created, s.Error)
			continue
		}
		fmt.Fprintf(w, "Sync %s: %d created\n", name, s.Created)
	}
}
