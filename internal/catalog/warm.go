// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package catalog

import (
	"context"
	"sort"
	"sync"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// WarmupFailure records one image the provider could not embed.
type WarmupFailure struct {
	Identifier string `json:"identifier"`
	Reason     string `json:"reason"`
	Code       string `json:"code,omitempty"`
}

// WarmupReport summarizes one warm-up pass over a record set.
type WarmupReport struct {
	Discovered int             `json:"discovered"`
	CacheHits  int             `json:"cache_hits"`
	Computed   int             `json:"computed"`
	Failures   []WarmupFailure `json:"failures,omitempty"`
}

// warmResult carries one worker's outcome back to the collector.
type warmResult struct {
	identifier string
	vector     []float32
	err        error
}

// EnsureEmbeddings makes sure every current record either already has a
// cached vector or gets one computation attempt. The cache is consulted
// first; records with a hit trigger no provider call. Provider failures
// are collected per record and never abort the pass. A cache read or
// write failure does abort it.
func (c *Catalog) EnsureEmbeddings(ctx context.Context) (*WarmupReport, error) {
	report, vectors, err := c.warm(ctx, c.Records())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.vectors = vectors
	c.mu.Unlock()

	return report, nil
}

// warm resolves vectors for a record set: one batched cache read, then a
// bounded worker pool for the misses. All cache writes go through the
// collector loop in the calling goroutine, so the cache sees a single
// writer per pass.
func (c *Catalog) warm(ctx context.Context, records []*ImageRecord) (*WarmupReport, map[string][]float32, error) {
	report := &WarmupReport{Discovered: len(records)}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.Identifier)
	}

	cached, err := c.cache.Get(ctx, ids)
	if err != nil {
		return nil, nil, memexerr.Wrap(err, memexerr.CodeStoreQueryFailure,
			"reading embedding cache")
	}
	report.CacheHits = len(cached)

	vectors := make(map[string][]float32, len(records))
	for id, vec := range cached {
		vectors[id] = vec
	}

	var missing []*ImageRecord
	for _, rec := range records {
		if _, hit := cached[rec.Identifier]; !hit {
			missing = append(missing, rec)
		}
	}
	if len(missing) == 0 {
		return report, vectors, nil
	}

	workers := c.concurrency
	if workers < 1 {
		workers = 1
	}
	if workers > len(missing) {
		workers = len(missing)
	}

	warmCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan *ImageRecord)
	results := make(chan warmResult)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range jobs {
				vec, embedErr := c.embedOne(warmCtx, rec)
				select {
				case results <- warmResult{identifier: rec.Identifier, vector: vec, err: embedErr}:
				case <-warmCtx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, rec := range missing {
			select {
			case jobs <- rec:
			case <-warmCtx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var fatal error
	for res := range results {
		if fatal != nil {
			continue
		}
		if res.err != nil {
			report.Failures = append(report.Failures, WarmupFailure{
				Identifier: res.identifier,
				Reason:     res.err.Error(),
				Code:       string(memexerr.CodeOf(res.err)),
			})
			continue
		}
		if putErr := c.cache.Put(warmCtx, res.identifier, res.vector); putErr != nil {
			fatal = memexerr.Wrap(putErr, memexerr.CodeStoreWriteFailure,
				"persisting embedding", memexerr.FieldIdentifier(res.identifier))
			cancel()
			continue
		}
		vectors[res.identifier] = res.vector
		report.Computed++
	}

	if fatal != nil {
		return nil, nil, fatal
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(report.Failures, func(i, j int) bool {
		return report.Failures[i].Identifier < report.Failures[j].Identifier
	})
	return report, vectors, nil
}

// embedOne computes a single record's embedding from its EmbedText.
func (c *Catalog) embedOne(ctx context.Context, rec *ImageRecord) ([]float32, error) {
	vecs, err := c.embedder.Embed(ctx, []string{rec.EmbedText})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, memexerr.Errorf(memexerr.CodeProviderMalformed,
			"expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}
