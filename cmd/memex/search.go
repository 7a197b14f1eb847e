// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/memex-dev/memex/internal/query"
)

var (
	searchScoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	searchLabelStyle = lipgloss.NewStyle().Bold(true)
	searchPathStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search images by meaning",
		Long:  "Embed the query text and rank the catalog against it, without a running server.",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().IntP("top", "k", query.DefaultTopK, "number of results")
	cmd.Flags().Bool("json", false, "emit JSON instead of a table")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := wireApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()

	// Foreground warm-up: cache hits cost nothing, and a cold cache is
	// exactly what the user wants filled before ranking.
	if _, err := app.Catalog.EnsureEmbeddings(ctx); err != nil {
		return err
	}

	k, _ := cmd.Flags().GetInt("top")
	res, err := app.Engine.Search(ctx, args[0], k)
	if err != nil {
		return err
	}

	jsonOut, _ := cmd.Flags().GetBool("json")
	return renderSearchResult(cmd.OutOrStdout(), res, jsonOut)
}

// searchResultJSON is the search command's --json shape. Unlike the HTTP
// response it carries on-disk paths, which is what a shell pipeline wants.
type searchResultJSON struct {
	QueryID string            `json:"query_id"`
	Model   string            `json:"model"`
	Results []searchMatchJSON `json:"results"`
}

type searchMatchJSON struct {
	Identifier string  `json:"identifier"`
	Label      string  `json:"label"`
	Score      float64 `json:"score"`
	Path       string  `json:"path"`
	Source     string  `json:"source"`
}

func renderSearchResult(w io.Writer, res *query.Result, jsonOut bool) error {
	if jsonOut {
		out := searchResultJSON{
			QueryID: res.QueryID,
			Model:   res.Model,
			Results: make([]searchMatchJSON, 0, len(res.Matches)),
		}
		for _, m := range res.Matches {
			out.Results = append(out.Results, searchMatchJSON{
				Identifier: m.Record.Identifier,
				Label:      m.Record.Label,
				Score:      m.Score,
				Path:       m.Record.SourcePath,
				Source:     m.Record.Source,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(res.Matches) == 0 {
		_, err := fmt.Fprintln(w, "No matches. Configure sources in memex.yaml and run 'memex index' first.")
		return err
	}

	for i, m := range res.Matches {
		score := searchScoreStyle.Render(fmt.Sprintf("%.4f", m.Score))
		label := searchLabelStyle.Render(m.Record.Label)
		path := searchPathStyle.Render(m.Record.SourcePath)
		if _, err := fmt.Fprintf(w, "%2d. %s  %s\n    %s\n", i+1, score, label, path); err != nil {
			return err
		}
	}
	return nil
}
