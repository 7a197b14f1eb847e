// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package store

// CacheConfig controls which backend the cache factory uses and which model
// namespace the opened cache is scoped to.
type CacheConfig struct {
	Backend    string // "sqlite" (default) or "memory".
	Path       string // Database file path; used by the sqlite backend.
	Model      string // Embedding model namespace for all reads and writes.
	Dimensions int    // Expected vector width; 0 uses the default (1024).
}
