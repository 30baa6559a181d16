/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/friendsincode/tekkin/internal/server"
)

var chartsCmd = &cobra.Command{
	Use:   "charts",
	Short: "Chart maintenance",
}

var chartsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Recompute chart snapshots for the current period",
	RunE:  jobRunner(server.JobChartsRebuild),
}

var artistsCmd = &cobra.Command{
	Use:   "artists",
	Short: "Artist metric maintenance",
}

var artistsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Process due artist sync jobs",
	RunE:  jobRunner(server.JobArtistSync),
}

var spotlightCmd = &cobra.Command{
	Use:   "spotlight",
	Short: "Spotlight event maintenance",
}

var spotlightSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch upcoming events for the default artists",
	RunE:  jobRunner(server.JobSpotlightSync),
}

func init() {
	chartsCmd.AddCommand(chartsRebuildCmd)
	artistsCmd.AddCommand(artistsSyncCmd)
	spotlightCmd.AddCommand(spotlightSyncCmd)
	rootCmd.AddCommand(chartsCmd, artistsCmd, spotlightCmd)
}

// jobRunner runs a scheduled job once on this instance, ignoring leadership.
func jobRunner(name string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		srv, err := server.New(cfg, logger, server.WithoutWorkers())
		if err != nil {
			return fmt.Errorf("initialize server: %w", err)
		}
		defer srv.Close()

		if err := srv.RunJob(cmd.Context(), name); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", name)
		return nil
	}
}
