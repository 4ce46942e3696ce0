package assistant

import (
	"strings"
	"unicode"
)

// IntentType is the coarse category of a question. It only steers prompt
// framing and output length.
type IntentType string

// Intent types in classification priority order.
const (
	IntentCollection   IntentType = "collection"
	IntentLocation     IntentType = "location"
	IntentCount        IntentType = "count"
	IntentValue        IntentType = "value"
	IntentExpiry       IntentType = "expiry"
	IntentOrganization IntentType = "organization"
	IntentSearch       IntentType = "search"
	IntentGeneral      IntentType = "general"
)

// Intent is the classification of a question.
type Intent struct {
	Type     IntentType `json:"type"`
	Keywords []string   `json:"keywords"`
}

// Terms are matched against whole words. A trailing "*" matches any word with
// that prefix; terms containing a space match as phrases.
var intentFamilies = []struct {
	typ   IntentType
	terms []string
}{
	{IntentCollection, []string{"collection*", "group*", "set", "sets", "bundle*"}},
	{IntentLocation, []string{"where", "location*", "located", "stored", "keep"}},
	{IntentCount, []string{"how many", "count*", "number of", "total", "quantity"}},
	{IntentValue, []string{"value*", "worth", "price*", "cost*", "expensive", "cheap*", "valuable"}},
	{IntentExpiry, []string{"expir*", "archived", "status", "stale", "old"}},
	{IntentOrganization, []string{"organi*", "sort*", "categor*", "tidy", "arrange*", "declutter*"}},
	{IntentSearch, []string{"find", "search*", "show", "list", "have", "which", "any"}},
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "which": true, "who": true, "how": true, "when": true, "where": true,
	"why": true, "you": true, "your": true, "my": true, "mine": true, "our": true,
	"have": true, "has": true, "had": true, "does": true, "did": true, "can": true,
	"could": true, "would": true, "should": true, "will": true, "with": true,
	"this": true, "that": true, "these": true, "those": true, "there": true,
	"from": true, "into": true, "about": true, "any": true, "all": true, "some": true,
	"many": true, "much": true, "not": true, "but": true, "its": true, "they": true,
	"them": true, "their": true, "show": true, "tell": true, "list": true, "please": true,
}

// Classify assigns a question to the first matching intent family and
// extracts its keywords. It is deterministic and does no I/O.
func Classify(question string) Intent {
	words := splitWords(question)
	intent := Intent{Type: IntentGeneral, Keywords: keywords(words)}

	padded := " " + strings.Join(words, " ") + " "
	for _, family := range intentFamilies {
		for _, term := range family.terms {
			if matchTerm(term, words, padded) {
				intent.Type = family.typ
				return intent
			}
		}
	}
	return intent
}

func matchTerm(term string, words []string, padded string) bool {
	if strings.Contains(term, " ") {
		return strings.Contains(padded, " "+term+" ")
	}
	prefix, wildcard := strings.CutSuffix(term, "*")
	for _, w := range words {
		if w == prefix || (wildcard && strings.HasPrefix(w, prefix)) {
			return true
		}
	}
	return false
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func keywords(words []string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len([]rune(w)) <= 2 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// MaxTokens is the output budget for an answer to this kind of question.
func (i Intent) MaxTokens() int32 {
	switch i.Type {
	case IntentLocation, IntentCount, IntentValue, IntentExpiry:
		return 300
	case IntentSearch:
		return 500
	default:
		return 800
	}
}

// Framing is the extra instruction added to the prompt for this intent.
func (i Intent) Framing() string {
	switch i.Type {
	case IntentCollection:
		return "The user is asking about collections. Refer to the collections listed and their items."
	case IntentLocation:
		return "The user wants to know where things are. Answer with locations, briefly."
	case IntentCount:
		return "The user wants a count. Give the number first, then a short breakdown if useful."
	case IntentValue:
		return "The user is asking about value. Use the listed values; do not guess prices that are unknown."
	case IntentExpiry:
		return "The user is asking about expiry or item status. Mention expired and soon-expiring items first."
	case IntentOrganization:
		return "The user wants help organizing. Suggest concrete groupings or locations using their items."
	case IntentSearch:
		return "The user is looking for specific items. List the matching items, one per line."
	default:
		return "Answer the question helpfully using the inventory below."
	}
}
