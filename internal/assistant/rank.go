package assistant

import (
	"cmp"
	"slices"
	"strings"
)

const (
	// DefaultSuggestionLimit is how many suggestions are returned by default.
	DefaultSuggestionLimit = 5
	// MaxSuggestionLimit caps caller-supplied limits.
	MaxSuggestionLimit = 20

	similarityThreshold = 0.7
	collectedThreshold  = 0.8
)

// Rank drops redundant candidates, orders the rest by confidence and size,
// and returns at most limit of them.
//
// A candidate is redundant when more than 80% of its items are already in a
// collection, when its name is too similar to an existing collection, or when
// a better-ranked candidate has the same name.
func Rank(candidates []CollectionSuggestion, collections []CollectionView, limit int) []CollectionSuggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}

	kept := make([]CollectionSuggestion, 0, len(candidates))
	for _, c := range candidates {
		if mostlyCollected(c) || similarToExisting(c.Name, collections) {
			continue
		}
		kept = append(kept, c)
	}

	slices.SortStableFunc(kept, func(a, b CollectionSuggestion) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(len(b.Items), len(a.Items))
	})

	out := make([]CollectionSuggestion, 0, min(limit, len(kept)))
	seen := map[string]bool{}
	for _, c := range kept {
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out
}

func mostlyCollected(c CollectionSuggestion) bool {
	if len(c.Items) == 0 {
		return true
	}
	return float64(len(c.AlreadyCollected))/float64(len(c.Items)) > collectedThreshold
}

func similarToExisting(name string, collections []CollectionView) bool {
	for _, c := range collections {
		if NameSimilarity(name, c.Name) >= similarityThreshold {
			return true
		}
	}
	return false
}

// NameSimilarity is the number of distinct words two names share divided by
// the distinct word count of the longer name. Comparison ignores case and
// punctuation.
func NameSimilarity(a, b string) float64 {
	wa, wb := wordSet(a), wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	common := 0
	for w := range wa {
		if wb[w] {
			common++
		}
	}
	return float64(common) / float64(max(len(wa), len(wb)))
}

func wordSet(s string) map[string]bool {
	set := map[string]bool{}
	for _, w := range splitWords(s) {
		set[w] = true
	}
	return set
}
