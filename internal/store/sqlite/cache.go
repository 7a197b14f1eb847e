// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package sqlite provides the SQLite-backed embedding cache. Vectors are
// serialized with sqlite-vec's float32 layout so the blobs stay compatible
// with vec0 virtual tables, but lookups here are plain keyed reads; ranking
// happens in memory.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/memex-dev/memex/internal/store"
	memexerr "github.com/memex-dev/memex/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.EmbeddingCache = (*Cache)(nil)

// Cache implements store.EmbeddingCache backed by a SQLite table keyed by
// (model, identifier). Rows written by other models, or with a different
// vector width, are invisible to Get and simply read as cache misses.
type Cache struct {
	db    *sql.DB
	model string
	dims  int
}

// NewCache opens (or creates) a SQLite database at dbPath and ensures the
// embeddings table exists. Entries are namespaced by model so switching
// embedding models never serves stale vectors.
func NewCache(dbPath, model string, dims int) (*Cache, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating embeddings table: %w", err)
	}

	return &Cache{db: db, model: model, dims: dims}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS embeddings (
	model      TEXT    NOT NULL,
	identifier TEXT    NOT NULL,
	dims       INTEGER NOT NULL,
	embedding  BLOB    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (model, identifier)
)`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating embeddings table: %w", err)
	}
	return nil
}

// Get returns the cached vectors for the given identifiers. Identifiers
// without a row for this cache's model and dimensions are absent from the
// result; a partial map is the normal outcome, not an error.
func (c *Cache) Get(ctx context.Context, ids []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+2)
	args = append(args, c.model, c.dims)
	for _, id := range ids {
		args = append(args, id)
	}

	q := `SELECT identifier, embedding FROM embeddings
WHERE model = ? AND dims = ? AND identifier IN (` + placeholders + `)`

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("scanning embedding row: %w", err)
		}

		vec, err := deserializeFloat32(blob)
		if err != nil {
			return nil, memexerr.Wrap(err, memexerr.CodeStoreVectorMalformed,
				"decoding cached embedding", memexerr.FieldIdentifier(id))
		}
		out[id] = vec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embedding rows: %w", err)
	}

	return out, nil
}

// Put inserts or replaces one entry. Each call is its own statement, so a
// crash mid-batch loses at most the in-flight row and never corrupts rows
// already committed.
func (c *Cache) Put(ctx context.Context, id string, vector []float32) error {
	if id == "" {
		return fmt.Errorf("%w: empty identifier", store.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty vector for %s", store.ErrInvalidInput, id)
	}
	if c.dims > 0 && len(vector) != c.dims {
		return fmt.Errorf("%w: vector for %s has %d dimensions, want %d",
			store.ErrInvalidInput, id, len(vector), c.dims)
	}

	blob, err := sqlite_vec.SerializeFloat32(vector)
	if err != nil {
		return fmt.Errorf("serializing embedding for %s: %w", id, err)
	}

	const q = `INSERT INTO embeddings(model, identifier, dims, embedding, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(model, identifier) DO UPDATE SET
	dims       = excluded.dims,
	embedding  = excluded.embedding,
	created_at = excluded.created_at`

	if _, err := c.db.ExecContext(ctx, q, c.model, id, len(vector), blob,
		time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upserting embedding for %s: %w", id, err)
	}
	return nil
}

// Count reports how many entries exist for this cache's model and dimensions.
func (c *Cache) Count(ctx context.Context) (int64, error) {
	var n int64
	const q = `SELECT COUNT(*) FROM embeddings WHERE model = ? AND dims = ?`
	if err := c.db.QueryRowContext(ctx, q, c.model, c.dims).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting embeddings: %w", err)
	}
	return n, nil
}

// Close closes the underlying database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}

// deserializeFloat32 decodes the little-endian float32 layout produced by
// sqlite_vec.SerializeFloat32.
func deserializeFloat32(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vec[i] = math.Float32frombits(bits)
	}
	return vec, nil
}
