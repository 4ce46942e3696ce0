package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	suggestionSampleSize = 15
	// maxUnorganizedSample is how many uncollected items lead the sample.
	maxUnorganizedSample = 10
)

func questionInstruction() string {
	return "You are a helpful assistant for a personal inventory app. Answer questions about the " +
		"user's items and collections using only the inventory provided. Be concise and friendly. " +
		"Use plain text; put each item on its own line when listing several. " +
		tokenInstructions()
}

func questionPrompt(s *Snapshot, intent Intent, question string) string {
	var b strings.Builder
	b.WriteString(intent.Framing())
	b.WriteString("\n\n")
	b.WriteString(BuildContext(s))
	b.WriteString("\n\n")
	b.WriteString(BuildCollectionContext(s))
	b.WriteString("\n\n")
	if len(intent.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(intent.Keywords, ", "))
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}

const analysisInstruction = "You identify household items from photos for a personal inventory app."

const analysisPrompt = `Identify the main item in this photo.
Respond with JSON only, in this shape:
{"name": "short item name", "tags": ["tag1", "tag2"]}
Use at most 5 short lowercase tags.`

func parseAnalysis(raw string) (*ImageAnalysis, error) {
	var parsed struct {
		Name *string   `json:"name"`
		Tags *[]string `json:"tags"`
	}
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing analysis: %w", err)
	}
	if parsed.Name == nil || strings.TrimSpace(*parsed.Name) == "" {
		return nil, errors.New("parsing analysis: missing name")
	}
	if parsed.Tags == nil {
		return nil, errors.New("parsing analysis: missing tags")
	}

	analysis := &ImageAnalysis{Name: strings.TrimSpace(*parsed.Name), Tags: []string{}}
	for _, tag := range *parsed.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			analysis.Tags = append(analysis.Tags, tag)
		}
	}
	return analysis, nil
}

const suggestionInstruction = "You help people organize their belongings into themed collections."

func suggestionPrompt(collections []CollectionView, sample []ItemView) string {
	var b strings.Builder

	b.WriteString("Existing collections (do not suggest duplicates of these):\n")
	if len(collections) == 0 {
		b.WriteString("- none\n")
	}
	for _, c := range collections {
		fmt.Fprintf(&b, "- %s (%d items)\n", c.Name, c.ItemCount)
	}

	var organized, unorganized []ItemView
	for _, item := range sample {
		if item.InCollection() {
			organized = append(organized, item)
		} else {
			unorganized = append(unorganized, item)
		}
	}

	if len(organized) > 0 {
		b.WriteString("\nItems already organized:\n")
		for _, item := range organized {
			names := make([]string, len(item.Collections))
			for i, c := range item.Collections {
				names[i] = c.Name
			}
			fmt.Fprintf(&b, "- %s%s (in: %s)\n", item.Name, itemHint(item), strings.Join(names, ", "))
		}
	}
	if len(unorganized) > 0 {
		b.WriteString("\nItems needing organization:\n")
		for _, item := range unorganized {
			fmt.Fprintf(&b, "- %s%s\n", item.Name, itemHint(item))
		}
	}

	b.WriteString(`
Suggest 2 to 3 new thematic collections. Each must contain at least 3 of the items above, named exactly as listed.
Respond with JSON only, in this shape:
{"suggestions": [{"name": "Collection name", "description": "One sentence", "items": ["item name", "item name", "item name"]}]}`)
	return b.String()
}

func itemHint(item ItemView) string {
	var hints []string
	if len(item.Tags) > 0 {
		hints = append(hints, strings.Join(item.Tags, ", "))
	}
	if item.LocationName != "" {
		hints = append(hints, item.LocationName)
	}
	if len(hints) == 0 {
		return ""
	}
	return " [" + strings.Join(hints, "; ") + "]"
}

// sampleItems picks up to n items, leading with up to ten uncollected ones
// and filling the rest with collected ones. The order is deterministic.
func sampleItems(items []ItemView, n int) []ItemView {
	var organized, unorganized []ItemView
	for _, item := range items {
		if item.InCollection() {
			organized = append(organized, item)
		} else {
			unorganized = append(unorganized, item)
		}
	}

	take := min(len(unorganized), maxUnorganizedSample, n)
	sample := append([]ItemView(nil), unorganized[:take]...)
	rest := unorganized[take:]

	for _, item := range organized {
		if len(sample) == n {
			return sample
		}
		sample = append(sample, item)
	}
	for _, item := range rest {
		if len(sample) == n {
			break
		}
		sample = append(sample, item)
	}
	return sample
}

type proposal struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Items       []string `json:"items"`
}

// parseProposals accepts either {"suggestions": [...]} or a bare array.
func parseProposals(raw string) ([]proposal, error) {
	body := stripCodeFence(raw)

	var wrapped struct {
		Suggestions []proposal `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(body), &wrapped); err == nil {
		return wrapped.Suggestions, nil
	}

	var bare []proposal
	if err := json.Unmarshal([]byte(body), &bare); err != nil {
		return nil, fmt.Errorf("parsing suggestions: %w", err)
	}
	return bare, nil
}

// matchItems maps names returned by the model back to sampled items: exact
// case-insensitive matches first, then containment either way.
func matchItems(names []string, sample []ItemView) []ItemView {
	var matched []ItemView
	used := map[int64]bool{}

	for _, name := range names {
		want := strings.ToLower(strings.TrimSpace(name))
		if want == "" {
			continue
		}

		var found *ItemView
		for i := range sample {
			if !used[sample[i].ID] && strings.ToLower(sample[i].Name) == want {
				found = &sample[i]
				break
			}
		}
		if found == nil {
			for i := range sample {
				have := strings.ToLower(sample[i].Name)
				if !used[sample[i].ID] && (strings.Contains(have, want) || strings.Contains(want, have)) {
					found = &sample[i]
					break
				}
			}
		}
		if found != nil {
			used[found.ID] = true
			matched = append(matched, *found)
		}
	}
	return matched
}

// stripCodeFence removes a surrounding ``` fence, with or without a language.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
