// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Memex Contributors

// Package rank implements brute-force cosine-similarity ranking over an
// in-memory catalog snapshot. It holds no state: every function is a pure
// function of its inputs, so identical inputs always produce identical
// output, including the order of tied scores.
package rank

import (
	"math"
	"sort"
)

// Entry pairs an identifier with its embedding. A slice of entries is a
// catalog snapshot; slice order is the catalog insertion order and decides
// ties between equal scores.
type Entry struct {
	Identifier string
	Vector     []float32
}

// Match is a single ranked result.
type Match struct {
	Identifier string  `json:"identifier"`
	Score      float64 `json:"score"`
}

// CosineSimilarity computes dot(a, b) / (||a|| * ||b||) with float64
// accumulation. Mismatched lengths, empty vectors, and zero-magnitude
// vectors score 0 by convention rather than erroring.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK scores every entry against query and returns at most k matches in
// descending score order. Equal scores keep their snapshot order (stable
// sort). k <= 0 and an empty snapshot both yield an empty result. The
// snapshot is never mutated.
func TopK(query []float32, entries []Entry, k int) []Match {
	if k <= 0 || len(entries) == 0 {
		return []Match{}
	}

	matches := make([]Match, len(entries))
	for i, e := range entries {
		matches[i] = Match{
			Identifier: e.Identifier,
			Score:      CosineSimilarity(query, e.Vector),
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}
