// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package store

import (
	"sync"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// defaultDimensions is the default embedding width (matches BAAI/bge-m3).
const defaultDimensions = 1024

// CacheFactory opens an EmbeddingCache for a given configuration.
type CacheFactory func(cfg *CacheConfig) (EmbeddingCache, error)

var (
	cacheFactories = map[string]CacheFactory{}
	factoriesMu    sync.RWMutex
)

// RegisterBackend registers a factory function for a named cache backend.
// Backend packages call this from init(). This function is goroutine-safe.
func RegisterBackend(name string, f CacheFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	cacheFactories[name] = f
}

// resolveBackend returns the effective backend name, defaulting to "sqlite".
func resolveBackend(cfg *CacheConfig) string {
	if cfg.Backend == "" {
		return "sqlite"
	}
	return cfg.Backend
}

// NewEmbeddingCache opens the configured cache backend.
func NewEmbeddingCache(cfg *CacheConfig) (EmbeddingCache, error) {
	backend := resolveBackend(cfg)

	factoriesMu.RLock()
	factory, ok := cacheFactories[backend]
	factoriesMu.RUnlock()
	if !ok {
		return nil, memexerr.Errorf(memexerr.CodeStoreBackendUnsupported,
			"unsupported cache backend: %q", backend)
	}

	if cfg.Model == "" {
		return nil, memexerr.New(memexerr.CodeConfigValidateInvalidValue,
			"cache model namespace must not be empty",
			memexerr.FieldBackend(backend))
	}

	resolved := *cfg
	if resolved.Dimensions <= 0 {
		resolved.Dimensions = defaultDimensions
	}

	return factory(&resolved)
}
