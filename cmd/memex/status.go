// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's healthz endpoint and display component status.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8175", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newServerClient(addr)
	var body struct {
		Status   string `json:"status"`
		Provider struct {
			Model           string `json:"model"`
			Mode            string `json:"mode"`
			Available       bool   `json:"available"`
			FailureCount    int64  `json:"failure_count"`
			LastErrorReason string `json:"last_error_reason"`
			AvgLatencyMS    int64  `json:"avg_latency_ms"`
		} `json:"provider"`
		Catalog struct {
			Records  int `json:"records"`
			Embedded int `json:"embedded"`
		} `json:"catalog"`
		Cache struct {
			Backend string `json:"backend"`
			Entries int64  `json:"entries"`
		} `json:"cache"`
	}
	if err := client.getJSON("/healthz", &body); err != nil {
		if errors.Is(err, ErrServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (run 'memex serve')\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}

	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, body.Status)
	_, _ = fmt.Fprintf(out, "  Provider: %s (%s, available=%t)\n",
		body.Provider.Model, body.Provider.Mode, body.Provider.Available)
	if body.Provider.AvgLatencyMS > 0 {
		_, _ = fmt.Fprintf(out, "            avg latency %dms\n", body.Provider.AvgLatencyMS)
	}
	if body.Provider.FailureCount > 0 {
		_, _ = fmt.Fprintf(out, "            %d failures, last: %s\n",
			body.Provider.FailureCount, body.Provider.LastErrorReason)
	}
	_, _ = fmt.Fprintf(out, "  Catalog:  %d records, %d embedded\n",
		body.Catalog.Records, body.Catalog.Embedded)
	_, _ = fmt.Fprintf(out, "  Cache:    %s, %d entries\n",
		body.Cache.Backend, body.Cache.Entries)
	return nil
}
