// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package store

import (
	"context"
	"fmt"
	"sync"
)

func init() {
	RegisterBackend("memory", newMemoryCache)
}

// Compile-time interface check.
var _ EmbeddingCache = (*memoryCache)(nil)

// memoryCache is a map-backed EmbeddingCache for tests and ephemeral runs.
// Nothing survives process exit.
type memoryCache struct {
	mu      sync.RWMutex
	model   string
	dims    int
	vectors map[string][]float32
}

func newMemoryCache(cfg *CacheConfig) (EmbeddingCache, error) {
	return &memoryCache{
		model:   cfg.Model,
		dims:    cfg.Dimensions,
		vectors: make(map[string][]float32),
	}, nil
}

func (m *memoryCache) Get(_ context.Context, ids []string) (map[string][]float32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]float32, len(ids))
	for _, id := range ids {
		if vec, ok := m.vectors[id]; ok {
			out[id] = append([]float32(nil), vec...)
		}
	}
	return out, nil
}

func (m *memoryCache) Put(_ context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", ErrInvalidInput, id)
	}
	if m.dims > 0 && len(vector) != m.dims {
		return fmt.Errorf("%w: vector for %s has %d dimensions, want %d",
			ErrInvalidInput, id, len(vector), m.dims)
	}

	m.mu.Lock()
	m.vectors[id] = append([]float32(nil), vector...)
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.vectors)), nil
}

func (m *memoryCache) Close() error { return nil }
