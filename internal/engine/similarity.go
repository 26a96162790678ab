package engine

import (
	"github.com/ledgerline/sift/internal/features"
)

// TokenSimilarity returns the Jaccard similarity of two descriptions'
// token sets: |intersection| / |union| over lower-cased word tokens.
// Identical inputs score 1; disjoint inputs score 0.
func TokenSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range features.Tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}
