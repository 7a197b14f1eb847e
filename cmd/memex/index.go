// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rescan sources and warm the embedding cache",
		Long:  "Enumerate every configured source directory and compute embeddings for images that have none cached yet.",
		RunE:  runIndex,
	}

	cmd.Flags().Int("concurrency", 0, "override warm-up worker count")

	return cmd
}

func runIndex(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if c, _ := cmd.Flags().GetInt("concurrency"); c > 0 {
		cfg.Warmup.Concurrency = c
	}

	ctx := cmd.Context()
	app, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	report, err := app.Catalog.EnsureEmbeddings(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "Discovered: %d\n", report.Discovered)
	_, _ = fmt.Fprintf(w, "Cache hits: %d\n", report.CacheHits)
	_, _ = fmt.Fprintf(w, "Computed:   %d\n", report.Computed)

	if report.Discovered == 0 {
		_, _ = fmt.Fprintln(w, "No images found. Add source directories under 'sources:' in memex.yaml.")
		return nil
	}

	// Per-record provider failures are part of the report, not a failed
	// run: everything else is cached and usable.
	if len(report.Failures) > 0 {
		_, _ = fmt.Fprintf(w, "Failures:   %d\n", len(report.Failures))
		for _, f := range report.Failures {
			_, _ = fmt.Fprintf(w, "  %s: %s\n", f.Identifier, f.Reason)
		}
	}
	return nil
}
