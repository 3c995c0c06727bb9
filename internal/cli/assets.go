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

	"github.com/spf13/cobra"

	"github.com/bcem/postmeet/internal/assets"
	"github.com/bcem/postmeet/internal/failure"
	"github.com/bcem/postmeet/internal/models"
)

// NewAssetsCommand creates the assets command.
func NewAssetsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "List recorded meeting media in Google Drive",
		Long: `List the audio and video files in the caller's Google Drive.

Example:
  postmeet assets --email lead@example.com --token $TOKEN`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := output{format: opts.Format, w: cmd.OutOrStdout()}

			cfg, err := opts.loadConfig()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}

			list, err := assets.NewDriveLister(cfg.Providers.DriveBaseURL).List(cmd.Context(), opts.session())
			if err != nil {
				_ = out.failure(string(failure.KindOf(err)), failure.Explain(err), nil)
				return WrapExitError(ExitCommandError, "failed to list assets", err)
			}
			if list == nil {
				list = []models.MediaAsset{}
			}

			return out.success(list, func(w io.Writer) {
				if len(list) == 0 {
					fmt.Fprintln(w, "No media found.")
					return
				}
				for _, a := range list {
					fmt.Fprintf(w, "%-5s  %s  %s (%s)\n", a.Kind, a.ID, a.Name, a.MimeType)
				}
			})
		},
	}
}
