package assistant

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

func snapshotWith(active, archived int) *Snapshot {
	s := &Snapshot{Now: time.Now()}
	for i := range active {
		s.Items = append(s.Items, view(int64(i+1), fmt.Sprintf("Active %d", i+1)))
	}
	for i := range archived {
		v := view(int64(100+i), fmt.Sprintf("Archived %d", i+1))
		v.Archived = true
		s.Items = append(s.Items, v)
	}
	return s
}

func TestBuildContextEmpty(t *testing.T) {
	got := BuildContext(&Snapshot{})
	if got == "" || strings.Contains(got, "[ITEM:") {
		t.Errorf("expected a plain notice, got %q", got)
	}
}

func TestBuildContextBoundedness(t *testing.T) {
	got := BuildContext(snapshotWith(11, 4))

	if n := strings.Count(got, "[ITEM:"); n != 8 {
		t.Errorf("expected 8 detailed items, got %d:\n%s", n, got)
	}
	if !strings.Contains(got, "3 more items") {
		t.Errorf("expected remainder notice, got:\n%s", got)
	}
	if !strings.Contains(got, "11 active items") || !strings.Contains(got, "Archived items: 4") {
		t.Errorf("expected summary counts, got:\n%s", got)
	}
	if strings.Contains(got, "Archived 1") {
		t.Errorf("archived items must not be detailed in a summary:\n%s", got)
	}
}

func TestBuildContextSmallInventoryListsEverything(t *testing.T) {
	got := BuildContext(snapshotWith(10, 2))

	if n := strings.Count(got, "[ITEM:"); n != 12 {
		t.Errorf("expected all 12 items in detail, got %d:\n%s", n, got)
	}
	if strings.Contains(got, "more items") {
		t.Errorf("unexpected remainder notice:\n%s", got)
	}
	if strings.Index(got, "Active 10") > strings.Index(got, "Archived 1") {
		t.Errorf("expected active items before archived ones:\n%s", got)
	}
}

func TestItemLineFields(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	soon := now.Add(3 * 24 * time.Hour)
	past := now.Add(-time.Hour)
	later := now.AddDate(0, 2, 0)

	tests := []struct {
		name string
		item ItemView
		want []string
		not  []string
	}{
		{
			name: "priced with tags and location",
			item: ItemView{ID: 7, Name: "Drill", Quantity: 2, Price: 89.5, HasPrice: true, LocationName: "Garage", Tags: []string{"tools", "power"}},
			want: []string{"[ITEM:7] Drill", "Tags: tools, power", "Quantity: 2", "Value: 89.50", "Location: Garage"},
		},
		{
			name: "priceless without location",
			item: ItemView{ID: 8, Name: "Letter", Quantity: 1, Priceless: true, Description: "From grandma"},
			want: []string{"Value: Priceless", "Description: From grandma", "Location: unspecified location"},
			not:  []string{"Tags:"},
		},
		{
			name: "archived",
			item: ItemView{ID: 9, Name: "Milk", Archived: true, LocationName: "Fridge"},
			want: []string{"Location: ARCHIVED"},
			not:  []string{"Fridge"},
		},
		{
			name: "expires soon",
			item: ItemView{ID: 10, Name: "Yogurt", Quantity: 1, ExpiresAt: &soon},
			want: []string{"Expires: EXPIRES SOON"},
		},
		{
			name: "expired",
			item: ItemView{ID: 11, Name: "Bread", Quantity: 1, ExpiresAt: &past},
			want: []string{"Expires: EXPIRED"},
		},
		{
			name: "expires later",
			item: ItemView{ID: 12, Name: "Rice", Quantity: 1, ExpiresAt: &later},
			want: []string{"Expires: 2026-07-01"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b strings.Builder
			writeItemLine(&b, tt.item, now)
			line := b.String()
			for _, w := range tt.want {
				if !strings.Contains(line, w) {
					t.Errorf("expected %q in %q", w, line)
				}
			}
			for _, n := range tt.not {
				if strings.Contains(line, n) {
					t.Errorf("unexpected %q in %q", n, line)
				}
			}
		})
	}
}

func TestBuildCollectionContext(t *testing.T) {
	if got := BuildCollectionContext(&Snapshot{}); got == "" {
		t.Error("expected a notice for no collections")
	}

	s := &Snapshot{Collections: []CollectionView{
		{ID: 3, Name: "Camping", Description: "Outdoor gear", ItemCount: 5, SampleItems: []string{"Tent", "Stove", "Lamp"}},
	}}
	got := BuildCollectionContext(s)
	want := "[COLLECTION:3] Camping - 5 items - Outdoor gear - Includes: Tent, Stove, Lamp"
	if !strings.Contains(got, want) {
		t.Errorf("expected %q in:\n%s", want, got)
	}
}

func TestContextBuilderLoad(t *testing.T) {
	_, database := newTestService(t, nil)
	ctx := context.Background()
	userID := createUser(t, database, "alice")
	otherID := createUser(t, database, "bob")

	kitchen := createLocation(t, database, userID, "Kitchen")
	price := 12.5
	kettle := createItem(t, database, userID, store.ItemInput{Name: "Kettle", LocationID: kitchen, Price: &price})
	createItem(t, database, userID, store.ItemInput{Name: "Toaster"})
	createItem(t, database, otherID, store.ItemInput{Name: "Not mine"})

	c, _ := store.CreateCollection(ctx, database, userID, "Appliances", "")
	store.AddItemToCollection(ctx, database, userID, c.ID, kettle, "")
	store.ArchiveItem(ctx, database, userID, kettle, "broken")

	s, err := NewContextBuilder(database).Load(ctx, userID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(s.Items) != 2 || len(s.Collections) != 1 {
		t.Fatalf("expected 2 items and 1 collection, got %d and %d", len(s.Items), len(s.Collections))
	}
	if len(s.Active()) != 1 || len(s.Archived()) != 1 {
		t.Errorf("expected one active and one archived item")
	}
	if s.Uncollected() != 1 {
		t.Errorf("expected one uncollected active item, got %d", s.Uncollected())
	}

	var kv ItemView
	for _, v := range s.Items {
		if v.ID == kettle {
			kv = v
		}
	}
	if !kv.HasPrice || kv.Price != 12.5 || kv.LocationName != "Kitchen" {
		t.Errorf("unexpected kettle view: %+v", kv)
	}
	if len(kv.History) == 0 || kv.History[0].Action != model.ActionArchived {
		t.Errorf("expected newest history entry first, got %+v", kv.History)
	}
	if !kv.InCollection() || kv.Collections[0].Name != "Appliances" {
		t.Errorf("expected membership in Appliances, got %+v", kv.Collections)
	}
}

func TestSnapshotFingerprint(t *testing.T) {
	a := snapshotWith(3, 0)
	b := snapshotWith(3, 0)
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("expected equal snapshots to share a fingerprint")
	}
	b.Items[0].Collections = []model.CollectionRef{{ID: 1, Name: "X"}}
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("expected membership change to change the fingerprint")
	}

	c := snapshotWith(3, 0)
	c.Items[1].Tags = []string{"fragile"}
	if c.Fingerprint() == a.Fingerprint() {
		t.Error("expected tag change to change the fingerprint")
	}

	d := snapshotWith(3, 0)
	d.Items[2].Price, d.Items[2].HasPrice = 5000, true
	if d.Fingerprint() == a.Fingerprint() {
		t.Error("expected price change to change the fingerprint")
	}
}
