// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/memex-dev/memex/internal/provider"
	"github.com/memex-dev/memex/internal/rank"
	"github.com/memex-dev/memex/internal/store"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// Config holds everything a Catalog needs: where to scan, how to embed,
// and where vectors persist.
type Config struct {
	Sources []Source

	Cache    store.EmbeddingCache
	Embedder provider.Embedder

	// WarmConcurrency bounds parallel provider calls during a warm-up.
	// Zero or negative means sequential.
	WarmConcurrency int
}

// Catalog owns the image records and their cached embeddings. Reads
// (Snapshot, Resolve, Records) are safe concurrently with a Refresh;
// queries in flight keep ranking against the snapshot they started with.
type Catalog struct {
	sources     []compiledSource
	cache       store.EmbeddingCache
	embedder    provider.Embedder
	concurrency int

	mu      sync.RWMutex
	records []*ImageRecord
	index   map[string]*ImageRecord
	vectors map[string][]float32
}

// New creates a Catalog. All label patterns are compiled up front; every
// malformed pattern is reported, not just the first.
func New(cfg Config) (*Catalog, error) {
	compiled, err := compileSources(cfg.Sources)
	if err != nil {
		return nil, err
	}

	return &Catalog{
		sources:     compiled,
		cache:       cfg.Cache,
		embedder:    cfg.Embedder,
		concurrency: cfg.WarmConcurrency,
		index:       make(map[string]*ImageRecord),
		vectors:     make(map[string][]float32),
	}, nil
}

// Build scans all configured sources and installs the resulting record
// set. Vectors already held for identifiers that survived the rescan are
// kept; identifiers that disappeared are dropped. Source problems are
// collected across all sources and returned together.
func (c *Catalog) Build(ctx context.Context) error {
	records, err := c.scan(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	vectors := make(map[string][]float32, len(records))
	for _, rec := range records {
		if vec, ok := c.vectors[rec.Identifier]; ok {
			vectors[rec.Identifier] = vec
		}
	}

	c.records = records
	c.index = buildIndex(records)
	c.vectors = vectors
	return nil
}

// Refresh rebuilds the record set, warms embeddings for it, and swaps
// records and vectors in one step. Queries running concurrently keep the
// snapshot they started with.
func (c *Catalog) Refresh(ctx context.Context) (*WarmupReport, error) {
	records, err := c.scan(ctx)
	if err != nil {
		return nil, err
	}

	report, vectors, err := c.warm(ctx, records)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.records = records
	c.index = buildIndex(records)
	c.vectors = vectors
	c.mu.Unlock()

	return report, nil
}

// Snapshot returns the ordered (identifier, vector) view for ranking.
// Only records with a vector appear. Callers must not mutate the entries.
func (c *Catalog) Snapshot() []rank.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]rank.Entry, 0, len(c.records))
	for _, rec := range c.records {
		if vec, ok := c.vectors[rec.Identifier]; ok {
			entries = append(entries, rank.Entry{
				Identifier: rec.Identifier,
				Vector:     vec,
			})
		}
	}
	return entries
}

// Resolve looks up a record by identifier.
func (c *Catalog) Resolve(identifier string) (*ImageRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rec, ok := c.index[identifier]
	if !ok {
		return nil, memexerr.New(memexerr.CodeCatalogRecordNotFound,
			"unknown image: "+identifier,
			memexerr.FieldIdentifier(identifier))
	}
	return rec, nil
}

// Records returns all records in catalog insertion order.
func (c *Catalog) Records() []*ImageRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*ImageRecord(nil), c.records...)
}

// Embedded reports whether the identifier currently has a vector.
func (c *Catalog) Embedded(identifier string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.vectors[identifier]
	return ok
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// scan walks every source directory and produces records in catalog
// insertion order: sources in configured order, files in directory-scan
// order within each source. Duplicate identifiers keep the first record.
func (c *Catalog) scan(ctx context.Context) ([]*ImageRecord, error) {
	var records []*ImageRecord
	var errs []error
	seen := make(map[string]string) // identifier → source name

	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		srcRecords, err := scanSource(src)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		for _, rec := range srcRecords {
			if firstSource, dup := seen[rec.Identifier]; dup {
				slog.Warn("duplicate image identifier, keeping first",
					"identifier", rec.Identifier,
					"kept_source", firstSource,
					"skipped_source", rec.Source)
				continue
			}
			seen[rec.Identifier] = rec.Source
			records = append(records, rec)
		}
	}

	if len(errs) > 0 {
		return nil, memexerr.Join(errs...)
	}
	return records, nil
}

// scanSource enumerates one source directory.
func scanSource(src compiledSource) ([]*ImageRecord, error) {
	info, err := os.Stat(src.Dir)
	if err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCatalogSourceMissing,
			"source directory missing", memexerr.FieldSource(src.Name))
	}
	if !info.IsDir() {
		return nil, memexerr.New(memexerr.CodeCatalogSourceMissing,
			"source path is not a directory: "+src.Dir,
			memexerr.FieldSource(src.Name))
	}

	captions, err := loadCaptions(src.Dir)
	if err != nil {
		return nil, err
	}

	var relPaths []string
	if src.Recursive {
		err = filepath.WalkDir(src.Dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || !isImageFile(d.Name()) {
				return nil
			}
			rel, relErr := filepath.Rel(src.Dir, path)
			if relErr != nil {
				return relErr
			}
			relPaths = append(relPaths, rel)
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(src.Dir)
		if err == nil {
			for _, entry := range entries {
				if entry.IsDir() || !isImageFile(entry.Name()) {
					continue
				}
				relPaths = append(relPaths, entry.Name())
			}
		}
	}
	if err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCatalogSourceUnreadable,
			"reading source directory", memexerr.FieldSource(src.Name))
	}

	records := make([]*ImageRecord, 0, len(relPaths))
	for _, rel := range relPaths {
		identifier := filepath.ToSlash(rel)
		label := src.label(stem(rel))

		embedText := label
		if caption, ok := captions[identifier]; ok {
			embedText = caption
		}

		records = append(records, &ImageRecord{
			Identifier: identifier,
			Label:      label,
			SourcePath: filepath.Join(src.Dir, rel),
			Source:     src.Name,
			Kind:       src.Kind,
			EmbedText:  embedText,
		})
	}
	return records, nil
}

func buildIndex(records []*ImageRecord) map[string]*ImageRecord {
	index := make(map[string]*ImageRecord, len(records))
	for _, rec := range records {
		index[rec.Identifier] = rec
	}
	return index
}
