// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package sqlite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/memex-dev/memex/internal/store"
)

func init() {
	store.RegisterBackend("sqlite", newEmbeddingCache)
}

func newEmbeddingCache(cfg *store.CacheConfig) (store.EmbeddingCache, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: sqlite backend requires a cache path", store.ErrInvalidInput)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}

	return NewCache(cfg.Path, cfg.Model, cfg.Dimensions)
}
