package assistant

import (
	"context"
	"database/sql"
	"regexp"
	"strings"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

// maxEntities bounds the lookups a single answer can trigger.
const maxEntities = 20

// Entities are the items and collections an answer refers to.
type Entities struct {
	Items       []model.Item       `json:"items"`
	Collections []model.Collection `json:"collections"`
}

// ExtractEntities resolves the markers in raw against userID's own records.
// Markers naming missing records or records of other users are dropped.
func ExtractEntities(ctx context.Context, db *sql.DB, userID int64, raw string) (Entities, error) {
	e := Entities{Items: []model.Item{}, Collections: []model.Collection{}}
	itemIDs, collectionIDs := scanTokens(raw)

	for _, id := range itemIDs[:min(len(itemIDs), maxEntities)] {
		item, err := store.GetItem(ctx, db, userID, id)
		if err != nil {
			return e, err
		}
		if item != nil {
			e.Items = append(e.Items, *item)
		}
	}
	for _, id := range collectionIDs[:min(len(collectionIDs), maxEntities)] {
		c, err := store.GetCollection(ctx, db, userID, id)
		if err != nil {
			return e, err
		}
		if c != nil {
			e.Collections = append(e.Collections, *c)
		}
	}
	return e, nil
}

// Emphasis delimiters only count when paired and standing at word
// boundaries, so "5 * 3" or "snake_case" pass through untouched.
var (
	codePattern       = regexp.MustCompile("`([^`\n]*)`")
	strongPattern     = regexp.MustCompile(`(^|[^\w*])\*\*\*([^*\s](?:[^*\n]*?[^*\s])?)\*\*\*([^\w*]|$)`)
	boldPattern       = regexp.MustCompile(`(^|[^\w*])\*\*([^*\s](?:[^*\n]*?[^*\s])?)\*\*([^\w*]|$)`)
	italicPattern     = regexp.MustCompile(`(^|[^\w*])\*([^*\s](?:[^*\n]*?[^*\s])?)\*([^\w*]|$)`)
	underlinePattern  = regexp.MustCompile(`(^|[^\w])__([^_\s](?:[^_\n]*?[^_\s])?)__([^\w]|$)`)
	underscorePattern = regexp.MustCompile(`(^|[^\w])_([^_\s](?:[^_\n]*?[^_\s])?)_([^\w]|$)`)
	bulletPattern     = regexp.MustCompile(`(?m)^([ \t]*)[*+•][ \t]+`)
	headingPattern    = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	spaceBeforePunct  = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	leadingPunct      = regexp.MustCompile(`(?m)^([ \t]*)[,;:][ \t]*`)
	doubledPunct      = regexp.MustCompile(`([,;])(?:[ \t]*[,;])+`)
	fieldLabelPattern = regexp.MustCompile(`\b(?:Location|Quantity|Value|Category|Date|Expires|Acquired):`)
	fieldPattern      = regexp.MustCompile(`([^\n])[ \t]*(?:[,;|]|[ \t]-)[ \t]*(Location|Quantity|Value|Category|Date|Expires|Acquired):`)
	indentPattern     = regexp.MustCompile(`^[ \t]+`)
	innerSpacePattern = regexp.MustCompile(`[ \t]{2,}`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Clean turns raw model output into display text: markers and markdown
// emphasis are removed, leftover punctuation is tidied and detail fields are
// moved onto their own indented lines. It accepts any input and is
// idempotent.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	// Removing one artifact can expose another, so run to a fixed point.
	for range 4 {
		next := cleanOnce(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func cleanOnce(s string) string {
	s = codePattern.ReplaceAllString(s, "$1")
	s = headingPattern.ReplaceAllString(s, "")
	s = bulletPattern.ReplaceAllString(s, "$1- ")
	s = strongPattern.ReplaceAllString(s, "${1}${2}${3}")
	s = boldPattern.ReplaceAllString(s, "${1}${2}${3}")
	s = underlinePattern.ReplaceAllString(s, "${1}${2}${3}")
	s = italicPattern.ReplaceAllString(s, "${1}${2}${3}")
	s = underscorePattern.ReplaceAllString(s, "${1}${2}${3}")
	s = stripTokens(s)

	s = spaceBeforePunct.ReplaceAllString(s, "$1")
	s = doubledPunct.ReplaceAllString(s, "$1")
	s = leadingPunct.ReplaceAllString(s, "$1")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		// A single field is ordinary prose; two or more make a detail line.
		if len(fieldLabelPattern.FindAllStringIndex(line, 2)) == 2 {
			lines[i] = fieldPattern.ReplaceAllString(line, "$1\n  $2:")
		}
	}
	lines = strings.Split(strings.Join(lines, "\n"), "\n")

	for i, line := range lines {
		indented := indentPattern.MatchString(line)
		line = innerSpacePattern.ReplaceAllString(strings.TrimSpace(line), " ")
		if indented && line != "" {
			line = "  " + line
		}
		lines[i] = line
	}
	s = strings.Join(lines, "\n")
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
