// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package catalog

import (
	"regexp"

	memexerr "github.com/memex-dev/memex/pkg/errors"
	"github.com/memex-dev/memex/pkg/types"
)

// Source describes one configured image directory. The pattern and
// replacement derive a record's label from its filename stem.
type Source struct {
	Name        string
	Dir         string
	Kind        types.SourceKind
	Pattern     string // regular expression applied to the filename stem
	Replacement string
	Recursive   bool
}

// compiledSource pairs a Source with its compiled label pattern.
type compiledSource struct {
	Source
	labelRe *regexp.Regexp
}

// compileSources compiles every source's label pattern, collecting all
// pattern errors rather than stopping at the first.
func compileSources(sources []Source) ([]compiledSource, error) {
	compiled := make([]compiledSource, 0, len(sources))
	var errs []error

	for _, src := range sources {
		cs := compiledSource{Source: src}
		if src.Pattern != "" {
			re, err := regexp.Compile(src.Pattern)
			if err != nil {
				errs = append(errs, memexerr.Wrap(err, memexerr.CodeConfigPatternInvalid,
					"compiling label pattern", memexerr.FieldSource(src.Name)))
				continue
			}
			cs.labelRe = re
		}
		compiled = append(compiled, cs)
	}

	if len(errs) > 0 {
		return nil, memexerr.Join(errs...)
	}
	return compiled, nil
}

// label derives the display label from a filename stem. An empty pattern
// keeps the stem as-is.
func (cs compiledSource) label(s string) string {
	if cs.labelRe == nil {
		return s
	}
	return cs.labelRe.ReplaceAllString(s, cs.Replacement)
}
