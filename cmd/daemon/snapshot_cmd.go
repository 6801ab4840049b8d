// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ManuGH/camsync/internal/app/bootstrap"
)

// newSnapshotCmd runs a single poll tick without listeners and prints the
// resulting snapshot. Recordings are only catalogued, never downloaded,
// because the first tick never syncs.
func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var atMost int

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Poll the camera once and print its state as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := bootstrap.LoadConfig(opts.bootstrap())
			if err != nil {
				return err
			}
			engine, err := bootstrap.BuildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer func() { _ = engine.Close() }()

			snap, err := engine.Coordinator.Tick(cmd.Context())
			if err != nil {
				return fmt.Errorf("poll camera: %w", err)
			}

			out := *snap
			out.Recordings = snap.Library(atMost)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().IntVar(&atMost, "at-most", 0, "limit the recording list to the newest N entries (0 = all)")
	return cmd
}
