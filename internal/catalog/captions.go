// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package catalog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// captionsFile is the optional per-source manifest mapping relative image
// paths to caption text. When an entry exists for a record, the caption
// becomes the embedded text instead of the derived label.
const captionsFile = "captions.yaml"

// loadCaptions reads the captions manifest from a source directory.
// A missing manifest is the normal case and returns an empty map.
func loadCaptions(dir string) (map[string]string, error) {
	raw, err := os.ReadFile(filepath.Join(dir, captionsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, memexerr.Wrap(err, memexerr.CodeCatalogCaptionsInvalid,
			"reading captions manifest", memexerr.FieldSource(dir))
	}

	captions := make(map[string]string)
	if err := yaml.Unmarshal(raw, &captions); err != nil {
		return nil, memexerr.Wrap(err, memexerr.CodeCatalogCaptionsInvalid,
			"parsing captions manifest", memexerr.FieldSource(dir))
	}
	return captions, nil
}
