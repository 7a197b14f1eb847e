// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package catalog enumerates image files from configured source
// directories, derives a display label per image, and keeps each image's
// embedding warm in the cache. The catalog owns the records and the cache
// contents; ranking happens elsewhere against immutable snapshots.
package catalog

import (
	"path/filepath"
	"strings"

	"github.com/memex-dev/memex/pkg/types"
)

// ImageRecord describes one image known to the catalog. Records are
// created during a build and stay immutable until the next rebuild.
type ImageRecord struct {
	// Identifier is the stable key: the file path relative to its source
	// directory, slash-separated.
	Identifier string `json:"identifier"`

	// Label is derived from the filename stem by the source's pattern
	// replacement.
	Label string `json:"label"`

	// SourcePath is the absolute path on disk.
	SourcePath string `json:"-"`

	// Source names the configured source entry this record came from.
	Source string `json:"source"`

	// Kind is the source's logical type tag.
	Kind types.SourceKind `json:"kind"`

	// EmbedText is what gets embedded: the label, or the caption override
	// when the source carries one for this record.
	EmbedText string `json:"-"`
}

var imageExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// isImageFile reports whether the filename has a recognized image extension.
func isImageFile(name string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

// stem returns the filename without directory or extension.
func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
