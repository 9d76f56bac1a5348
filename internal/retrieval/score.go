package retrieval

import (
	"sort"
	"strings"
)

// lexicalScore is a deterministic token-overlap score between a query and a
// passage: matched query tokens over total query tokens. It is crude but
// stable, which keeps ranking reproducible across backends.
func lexicalScore(query, passage string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}
	passageTokens := make(map[string]struct{})
	for _, tok := range tokenize(passage) {
		passageTokens[tok] = struct{}{}
	}

	matched := 0
	for _, tok := range queryTokens {
		if _, ok := passageTokens[tok]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// rank sorts passages by score descending, breaking ties by doc id so the
// same corpus and query always produce the same order.
func rank(passages []Passage, topK int) []Passage {
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].DocID < passages[j].DocID
	})
	if topK > 0 && len(passages) > topK {
		passages = passages[:topK]
	}
	return passages
}
