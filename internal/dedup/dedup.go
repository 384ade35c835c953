// Package dedup rewrites search queries that duplicate earlier queries in a
// session. It is a cheap lexical guard against the planner re-issuing the
// same search across turns, not semantic deduplication; missed near
// duplicates are acceptable.
package dedup

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

const (
	// DefaultSimilarityThreshold is the normalized edit-distance similarity
	// above which a query counts as a near duplicate. Ad hoc constant
	// carried over from the original tuning.
	DefaultSimilarityThreshold = 0.8

	exactMatchSuffix = " (in-depth analysis)"
	nearMatchSuffix  = " (focused details)"
)

// Deduplicator rewrites queries against a history of prior queries.
type Deduplicator struct {
	threshold float64
}

// New returns a Deduplicator with the given similarity threshold. A
// non-positive threshold falls back to the default.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Rewrite returns query unchanged unless it exactly matches or is highly
// similar to a prior query, in which case a disambiguating suffix is
// appended.
func (d *Deduplicator) Rewrite(query string, prior []string) string {
	for _, p := range prior {
		if p == query {
			return query + exactMatchSuffix
		}
	}
	for _, p := range prior {
		if Similarity(query, p) > d.threshold {
			return query + nearMatchSuffix
		}
	}
	return query
}

// Similarity computes case-insensitive Levenshtein similarity normalized by
// the longer string's length: 1 means identical, 0 means fully distinct.
func Similarity(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	longer := len([]rune(a))
	if n := len([]rune(b)); n > longer {
		longer = n
	}
	if longer == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longer)
}
