// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package store persists computed embeddings between runs. A cache maps
// catalog identifiers to vectors within a single model namespace; vectors
// for one model never shadow another's.
package store

import "context"

// EmbeddingCache is a persisted identifier-to-vector mapping scoped to one
// embedding model.
type EmbeddingCache interface {
	// Get returns the cached vectors for the requested identifiers.
	// Identifiers without an entry are simply absent from the result:
	// a partial read is the normal case, never an error.
	Get(ctx context.Context, ids []string) (map[string][]float32, error)

	// Put inserts or replaces a single entry without touching any other.
	Put(ctx context.Context, id string, vector []float32) error

	// Count reports the number of entries in this model's namespace.
	Count(ctx context.Context) (int64, error)

	Close() error
}
