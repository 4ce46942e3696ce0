package assistant

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// TokenGrammarVersion identifies the entity marker convention shared by the
// prompt builders and the response parser.
//
// Version 1:
//
//	item       = "[ITEM:" id "]"
//	collection = "[COLLECTION:" id "]"
//	id         = 1*DIGIT
//
// Parsing is case-insensitive and tolerates whitespace inside the brackets.
const TokenGrammarVersion = 1

const (
	itemTokenKind       = "ITEM"
	collectionTokenKind = "COLLECTION"
)

const tokenExpr = `\[\s*(ITEM|COLLECTION)\s*:\s*(\d+)\s*\]`

var (
	tokenPattern = regexp.MustCompile(`(?i)` + tokenExpr)
	// groupedTokenPattern matches parentheses or brackets holding nothing but
	// markers, such as "([ITEM:1])" or "([ITEM:1], [ITEM:2])".
	groupedTokenPattern = regexp.MustCompile(`(?i)[(\[][ \t]*` + tokenExpr +
		`(?:[ \t]*[,;]?[ \t]*` + tokenExpr + `)*[ \t]*[)\]]`)
)

// ItemToken returns the marker for an item id.
func ItemToken(id int64) string {
	return fmt.Sprintf("[%s:%d]", itemTokenKind, id)
}

// CollectionToken returns the marker for a collection id.
func CollectionToken(id int64) string {
	return fmt.Sprintf("[%s:%d]", collectionTokenKind, id)
}

// tokenInstructions tells the model how to reference entities.
func tokenInstructions() string {
	return fmt.Sprintf("When you mention an item, write its marker exactly as given, e.g. %s. "+
		"When you mention a collection, write its marker exactly as given, e.g. %s. "+
		"Never invent markers or ids.", ItemToken(12), CollectionToken(3))
}

// scanTokens returns the distinct item and collection ids referenced in text,
// in order of first appearance.
func scanTokens(text string) (items, collections []int64) {
	seen := map[string]bool{}
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		kind := strings.ToUpper(m[1])
		id, err := strconv.ParseInt(m[2], 10, 64)
		if err != nil {
			continue
		}
		key := kind + ":" + strconv.FormatInt(id, 10)
		if seen[key] {
			continue
		}
		seen[key] = true
		if kind == itemTokenKind {
			items = append(items, id)
		} else {
			collections = append(collections, id)
		}
	}
	return items, collections
}

// stripTokens removes markers together with any brackets that held only
// markers. Other brackets are left alone.
func stripTokens(text string) string {
	text = groupedTokenPattern.ReplaceAllString(text, "")
	return tokenPattern.ReplaceAllString(text, "")
}
