package remotesettings

import "strings"

// FullKeyword reconstructs the complete phrase a partial, as-typed query is
// most likely the prefix of, given every keyword attached to a suggestion.
//
// Two heuristics, tried in order:
//
//  1. The first keyword (in iteration order) with more words than the query
//     wins; its first len(query words) words are joined and returned.
//  2. Otherwise, among keywords that have partialQuery as a prefix, the
//     longest wins; ties go to the last one encountered, matching Rust's
//     max_by_key. partialQuery itself is returned if nothing matches.
func FullKeyword(partialQuery string, allKeywords []string) string {
	queryWords := strings.Fields(partialQuery)
	queryNumWords := len(queryWords)

	for _, keyword := range allKeywords {
		words := strings.Fields(keyword)
		if len(words) > queryNumWords {
			return strings.Join(words[:queryNumWords], " ")
		}
	}

	best := partialQuery
	haveBest := false

	for _, keyword := range allKeywords {
		if !strings.HasPrefix(keyword, partialQuery) {
			continue
		}

		if !haveBest || len(keyword) >= len(best) {
			best = keyword
			haveBest = true
		}
	}

	return best
}
