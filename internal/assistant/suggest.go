package assistant

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Origin names the generator that produced a suggestion.
type Origin string

// Suggestion origins.
const (
	OriginLocation Origin = "location"
	OriginPrice    Origin = "price"
	OriginPattern  Origin = "pattern"
	OriginModel    Origin = "model"
)

const (
	minClusterSize       = 3
	unknownLocation      = "Unknown Location"
	budgetPriceLimit     = 1000
	expensivePriceLimit  = 5000
	recentAdditionWindow = 7 * 24 * time.Hour
	// photoGateCollections is how many collections a user needs before
	// "Items Without Photos" is offered.
	photoGateCollections = 2
)

var (
	priceWords  = []string{"budget", "expensive", "cheap", "costly", "priceless", "valuable", "affordable", "premium"}
	recentWords = []string{"recent", "new", "latest"}
)

// SuggestedItem is a candidate member of a suggested collection.
type SuggestedItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// CollectionSuggestion is a proposed collection. It is never persisted.
type CollectionSuggestion struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Items       []SuggestedItem `json:"items"`
	Origin      Origin          `json:"origin"`
	Confidence  float64         `json:"confidence"`
	// AlreadyCollected lists candidate items that belong to some collection.
	AlreadyCollected []int64 `json:"already_collected"`
}

func newSuggestion(name, description string, origin Origin, confidence float64, items []ItemView) CollectionSuggestion {
	s := CollectionSuggestion{
		Name:             name,
		Description:      description,
		Origin:           origin,
		Confidence:       confidence,
		Items:            make([]SuggestedItem, 0, len(items)),
		AlreadyCollected: []int64{},
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		s.Items = append(s.Items, SuggestedItem{ID: item.ID, Name: item.Name})
		ids = append(ids, item.ID)
		if item.InCollection() {
			s.AlreadyCollected = append(s.AlreadyCollected, item.ID)
		}
	}
	s.ID = SuggestionID(name, ids, origin)
	return s
}

// SuggestionID derives a stable identifier from a suggestion's name, its item
// ids (in any order) and its origin.
func SuggestionID(name string, itemIDs []int64, origin Origin) string {
	ids := slices.Clone(itemIDs)
	slices.Sort(ids)

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}

	sum := sha256.Sum256([]byte(name + "|" + strings.Join(parts, ",") + "|" + string(origin)))
	return "sug_" + hex.EncodeToString(sum[:])[:16]
}

// SuggestByLocation proposes one collection per location holding at least
// three items, unless an existing collection already covers that location.
func SuggestByLocation(items []ItemView, collections []CollectionView) []CollectionSuggestion {
	groups := map[string][]ItemView{}
	for _, item := range items {
		loc := item.LocationName
		if loc == "" {
			loc = unknownLocation
		}
		groups[loc] = append(groups[loc], item)
	}

	var out []CollectionSuggestion
	for _, loc := range sortedKeys(groups) {
		members := groups[loc]
		if len(members) < minClusterSize {
			continue
		}
		name := loc + " Items"
		if locationCovered(loc, name, collections) {
			continue
		}
		out = append(out, newSuggestion(name,
			fmt.Sprintf("The %d items kept in %s.", len(members), loc),
			OriginLocation, 0.9, members))
	}
	return out
}

func locationCovered(loc, name string, collections []CollectionView) bool {
	loc = strings.ToLower(loc)
	for _, c := range collections {
		if strings.Contains(strings.ToLower(c.Name), loc) || NameSimilarity(c.Name, name) >= similarityThreshold {
			return true
		}
	}
	return false
}

// SuggestByPrice proposes budget, expensive and priceless groupings. It is
// skipped entirely when any existing collection is already price-themed.
func SuggestByPrice(items []ItemView, collections []CollectionView) []CollectionSuggestion {
	for _, c := range collections {
		if nameHasAny(c.Name, priceWords) {
			return nil
		}
	}

	var budget, expensive, priceless []ItemView
	for _, item := range items {
		switch {
		case item.Priceless:
			priceless = append(priceless, item)
		case !item.HasPrice:
		case item.Price < budgetPriceLimit:
			budget = append(budget, item)
		case item.Price >= expensivePriceLimit:
			expensive = append(expensive, item)
		}
	}

	var out []CollectionSuggestion
	if len(budget) >= minClusterSize {
		out = append(out, newSuggestion("Budget Items",
			fmt.Sprintf("Items valued under %d.", budgetPriceLimit), OriginPrice, 0.7, budget))
	}
	if len(expensive) >= minClusterSize {
		out = append(out, newSuggestion("Expensive Items",
			fmt.Sprintf("Items valued at %d or more.", expensivePriceLimit), OriginPrice, 0.7, expensive))
	}
	if len(priceless) >= minClusterSize {
		out = append(out, newSuggestion("Priceless Items",
			"Items marked as priceless.", OriginPrice, 0.8, priceless))
	}
	return out
}

// SuggestByPattern proposes "Recent Additions" and, once the user has
// started organizing, "Items Without Photos".
func SuggestByPattern(items []ItemView, collections []CollectionView, now time.Time) []CollectionSuggestion {
	var recent, noPhoto []ItemView
	for _, item := range items {
		if now.Sub(item.CreatedAt) <= recentAdditionWindow {
			recent = append(recent, item)
		}
		if !item.HasImage {
			noPhoto = append(noPhoto, item)
		}
	}

	hasRecentCollection := false
	for _, c := range collections {
		if nameHasAny(c.Name, recentWords) {
			hasRecentCollection = true
			break
		}
	}

	var out []CollectionSuggestion
	if !hasRecentCollection && len(recent) >= minClusterSize {
		out = append(out, newSuggestion("Recent Additions",
			"Items added in the last 7 days.", OriginPattern, 0.6, recent))
	}
	if len(collections) > photoGateCollections && len(noPhoto) >= minClusterSize {
		out = append(out, newSuggestion("Items Without Photos",
			"Items that still need a photo.", OriginPattern, 0.5, noPhoto))
	}
	return out
}

// nameHasAny reports whether name contains any of words, ignoring case.
func nameHasAny(name string, words []string) bool {
	name = strings.ToLower(name)
	for _, w := range words {
		if strings.Contains(name, w) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}
