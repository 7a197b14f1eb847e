// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package query runs the external query flow: one embedding call for the
// query text, one ranking pass over the current catalog snapshot, then
// record resolution for the matches. Both the HTTP search route and the
// search command go through here.
package query

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/memex-dev/memex/internal/catalog"
	"github.com/memex-dev/memex/internal/provider"
	"github.com/memex-dev/memex/internal/rank"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// DefaultTopK is the result count used when the caller does not ask for
// a specific one.
const DefaultTopK = 5

// Engine executes queries against a catalog using an embedding provider.
// It owns no state of its own.
type Engine struct {
	embedder provider.Embedder
	catalog  *catalog.Catalog
}

// Match pairs a catalog record with its similarity score.
type Match struct {
	Record *catalog.ImageRecord
	Score  float64
}

// Result is one executed query.
type Result struct {
	QueryID string
	Model   string
	Matches []Match
}

// NewEngine creates an Engine over the given provider and catalog.
func NewEngine(embedder provider.Embedder, cat *catalog.Catalog) *Engine {
	return &Engine{embedder: embedder, catalog: cat}
}

// Search embeds text and returns the top k catalog matches by cosine
// similarity, descending. A blank query or an empty catalog returns an
// empty result without calling the provider. Provider failures surface
// unchanged; the caller decides how to present them.
func (e *Engine) Search(ctx context.Context, text string, k int) (*Result, error) {
	result := &Result{
		QueryID: uuid.NewString(),
		Model:   e.embedder.Model(),
		Matches: []Match{},
	}

	if strings.TrimSpace(text) == "" {
		return result, nil
	}

	// Snapshot before the provider call: a refresh finishing while we
	// wait on the embedding cannot change what this query ranks against.
	snapshot := e.catalog.Snapshot()
	if len(snapshot) == 0 {
		return result, nil
	}

	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
			"expected 1 embedding, got %d", len(vecs))
	}

	matches := rank.TopK(vecs[0], snapshot, k)
	result.Matches = make([]Match, 0, len(matches))
	for _, m := range matches {
		rec, err := e.catalog.Resolve(m.Identifier)
		if err != nil {
			// Record disappeared in a refresh between snapshot and resolve.
			slog.Warn("dropping match for vanished record", "identifier", m.Identifier)
			continue
		}
		result.Matches = append(result.Matches, Match{Record: rec, Score: m.Score})
	}
	return result, nil
}
