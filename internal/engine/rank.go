package engine

import (
	"sort"

	"github.com/ledgerline/sift/internal/model"
)

// RankSuggestions deduplicates candidates by category, keeping the highest
// confidence member of each group, sorts by confidence descending, and
// returns at most max entries. Ties sort by category name so the output is
// deterministic.
func RankSuggestions(candidates []model.Suggestion, max int) []model.Suggestion {
	best := make(map[string]model.Suggestion, len(candidates))
	for _, c := range candidates {
		existing, ok := best[c.Category]
		if !ok || c.Confidence > existing.Confidence {
			best[c.Category] = c
		}
	}

	ranked := make([]model.Suggestion, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Category < ranked[j].Category
	})

	if max > 0 && len(ranked) > max {
		ranked = ranked[:max]
	}

	return ranked
}
