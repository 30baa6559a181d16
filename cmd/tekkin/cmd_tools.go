/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/tekkin/internal/cache"
	"github.com/friendsincode/tekkin/internal/reference"
	"github.com/friendsincode/tekkin/internal/scanner"
)

var referenceCmd = &cobra.Command{
	Use:   "reference",
	Short: "Reference model tools",
}

var referenceCheckCmd = &cobra.Command{
	Use:   "check [profile-key...]",
	Short: "Load reference models and report their sample counts",
	Long: `Load reference models from TEKKIN_REFERENCE_DIR.

Without arguments every model in the directory is checked.`,
	RunE: runReferenceCheck,
}

var scannerTimeout time.Duration

var scannerCmd = &cobra.Command{
	Use:   "scanner",
	Short: "External catalog lookups",
}

var scannerBeatportCmd = &cobra.Command{
	Use:   "beatport <artist name>",
	Short: "Find an artist's Beatport page",
	Args:  cobra.ExactArgs(1),
	RunE:  runScannerBeatport,
}

func init() {
	scannerBeatportCmd.Flags().DurationVar(&scannerTimeout, "timeout", 45*time.Second, "Overall lookup timeout")
	referenceCmd.AddCommand(referenceCheckCmd)
	scannerCmd.AddCommand(scannerBeatportCmd)
	rootCmd.AddCommand(referenceCmd, scannerCmd)
}

func runReferenceCheck(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	loader := reference.NewLoader(cfg.ReferenceDir, cache.Disabled(logger), logger)

	keys := args
	if len(keys) == 0 {
		var err error
		if keys, err = loader.Keys(); err != nil {
			return fmt.Errorf("list reference models: %w", err)
		}
	}

	failed := 0
	out := cmd.OutOrStdout()
	for _, key := range keys {
		m, err := loader.Load(cmd.Context(), key)
		if err == nil && m == nil {
			err = errors.New("missing or invalid")
		}
		if err != nil {
			failed++
			fmt.Fprintf(out, "%-24s FAIL %v\n", reference.SanitizeKey(key), err)
			continue
		}
		fmt.Fprintf(out, "%-24s ok   samples=%d bands=%d built_at=%s\n", m.ProfileKey, m.SamplesCount, len(m.BandsSchema), m.BuiltAt)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d reference models failed to load", failed, len(keys))
	}
	return nil
}

func runScannerBeatport(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	searchURL := cfg.BeatportSearchURL
	if searchURL == "" {
		searchURL = scanner.DefaultSearchURL
	}
	bp := scanner.NewBeatport(searchURL, scanner.RodRenderer{Bin: cfg.BrowserBin, Timeout: scannerTimeout}, logger)

	ctx, cancel := context.WithTimeout(cmd.Context(), scannerTimeout)
	defer cancel()
	match, err := bp.FindArtist(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(match)
}
