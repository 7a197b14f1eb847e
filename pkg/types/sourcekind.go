// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

package types

import (
	"strings"

	memexerr "github.com/memex-dev/memex/pkg/errors"
)

// SourceKind is the logical type tag attached to an image source.
type SourceKind string

const (
	SourceKindMeme     SourceKind = "meme"
	SourceKindSticker  SourceKind = "sticker"
	SourceKindReaction SourceKind = "reaction"
	SourceKindPhoto    SourceKind = "photo"
)

// Valid reports whether k is a recognized source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceKindMeme, SourceKindSticker, SourceKindReaction, SourceKindPhoto:
		return true
	default:
		return false
	}
}

// ParseSourceKind parses a case-insensitive string into a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(s))
	if !k.Valid() {
		return "", memexerr.Errorf(memexerr.CodeConfigValidateInvalidValue,
			"invalid source kind: %q", s)
	}
	return k, nil
}
