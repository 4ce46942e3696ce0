package assistant

import (
	"slices"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		question string
		want     IntentType
	}{
		{"Which collection has my camping gear?", IntentCollection},
		{"Where is my collection of stamps?", IntentCollection},
		{"Where did I put the passport?", IntentLocation},
		{"How many lamps do I have?", IntentCount},
		{"What is my most valuable item worth?", IntentValue},
		{"Is anything expiring this week?", IntentExpiry},
		{"Help me organize the garage", IntentOrganization},
		{"Do I have any batteries?", IntentSearch},
		{"Tell me something nice", IntentGeneral},
		{"", IntentGeneral},
	}
	for _, tt := range tests {
		if got := Classify(tt.question); got.Type != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.question, got.Type, tt.want)
		}
	}
}

func TestClassifyKeywords(t *testing.T) {
	got := Classify("Where are my RED winter boots, and the boots' laces?").Keywords
	want := []string{"red", "winter", "boots", "laces"}
	if !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	if got := Classify("a an is to?").Keywords; got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil keywords, got %#v", got)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	q := "How many expensive things are in the attic?"
	first := Classify(q)
	for range 5 {
		if got := Classify(q); got.Type != first.Type || !slices.Equal(got.Keywords, first.Keywords) {
			t.Fatalf("classification changed: %+v vs %+v", got, first)
		}
	}
}

func TestIntentMaxTokens(t *testing.T) {
	targeted := Intent{Type: IntentLocation}.MaxTokens()
	search := Intent{Type: IntentSearch}.MaxTokens()
	general := Intent{Type: IntentGeneral}.MaxTokens()
	if !(targeted < search && search < general) {
		t.Errorf("expected targeted < search < general, got %d, %d, %d", targeted, search, general)
	}
	if (Intent{Type: IntentOrganization}).Framing() == "" {
		t.Error("expected framing text")
	}
}
