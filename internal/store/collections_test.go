package store

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/shramba/internal/db"
	"github.com/erazemk/shramba/internal/model"
)

func TestCreateCollectionWithShareSettings(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user, _ := CreateUser(ctx, database, "alice", "hash")

	c, err := CreateCollection(ctx, database, user.ID, "Camping", "Outdoor gear")
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if c.Share == nil {
		t.Fatal("expected share settings to be created with the collection")
	}
	if c.Share.IsEnabled {
		t.Error("expected sharing to start disabled")
	}
	if c.Share.Display != model.DefaultDisplaySettings() {
		t.Errorf("expected default display settings, got %+v", c.Share.Display)
	}
	if c.Share.ShareID == "" {
		t.Error("expected a share id")
	}
}

func TestCollectionMembershipAndSamples(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user, _ := CreateUser(ctx, database, "alice", "hash")
	c, _ := CreateCollection(ctx, database, user.ID, "Books", "")

	for _, name := range []string{"Dune", "Emma", "Ulysses", "Beloved"} {
		item, _ := CreateItem(ctx, database, user.ID, ItemInput{Name: name, Quantity: 1})
		if err := AddItemToCollection(ctx, database, user.ID, c.ID, item.ID, ""); err != nil {
			t.Fatalf("AddItemToCollection: %v", err)
		}
	}

	got, _ := GetCollection(ctx, database, user.ID, c.ID)
	if got.ItemCount != 4 || got.Items[0].Item.Name != "Dune" || got.Items[3].Position != 3 {
		t.Fatalf("unexpected members: %+v", got.Items)
	}

	if err := AddItemToCollection(ctx, database, user.ID, c.ID, got.Items[0].Item.ID, ""); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate re-adding a member, got %v", err)
	}

	list, _ := ListCollections(ctx, database, user.ID)
	if len(list) != 1 || list[0].ItemCount != 4 {
		t.Fatalf("unexpected collections: %+v", list)
	}
	if want := []string{"Dune", "Emma", "Ulysses"}; len(list[0].SampleItems) != 3 || list[0].SampleItems[2] != want[2] {
		t.Errorf("expected samples %v, got %v", want, list[0].SampleItems)
	}
}

func TestReorderCollectionIsAtomic(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user, _ := CreateUser(ctx, database, "alice", "hash")
	c, _ := CreateCollection(ctx, database, user.ID, "Tools", "")

	var ids []int64
	for _, name := range []string{"Hammer", "Saw", "Drill"} {
		item, _ := CreateItem(ctx, database, user.ID, ItemInput{Name: name, Quantity: 1})
		AddItemToCollection(ctx, database, user.ID, c.ID, item.ID, "")
		ids = append(ids, item.ID)
	}
	outsider, _ := CreateItem(ctx, database, user.ID, ItemInput{Name: "Sponge", Quantity: 1})

	// Invalid batches change nothing.
	bad := [][]int64{
		{ids[2], ids[1]},
		{ids[2], ids[1], ids[1]},
		{ids[2], ids[1], outsider.ID},
	}
	for _, order := range bad {
		if err := ReorderCollection(ctx, database, user.ID, c.ID, order); !errors.Is(err, ErrInvalidOrder) {
			t.Errorf("order %v: expected ErrInvalidOrder, got %v", order, err)
		}
		got, _ := GetCollection(ctx, database, user.ID, c.ID)
		if got.Items[0].Item.ID != ids[0] || got.Items[2].Item.ID != ids[2] {
			t.Fatalf("order %v: expected untouched positions, got %+v", order, got.Items)
		}
	}

	if err := ReorderCollection(ctx, database, user.ID, c.ID, []int64{ids[2], ids[0], ids[1]}); err != nil {
		t.Fatalf("ReorderCollection: %v", err)
	}
	got, _ := GetCollection(ctx, database, user.ID, c.ID)
	if got.Items[0].Item.Name != "Drill" || got.Items[1].Item.Name != "Hammer" || got.Items[2].Item.Name != "Saw" {
		t.Errorf("unexpected order after reorder: %s, %s, %s",
			got.Items[0].Item.Name, got.Items[1].Item.Name, got.Items[2].Item.Name)
	}

	bob, _ := CreateUser(ctx, database, "bob", "hash")
	if err := ReorderCollection(ctx, database, bob.ID, c.ID, ids); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's collection, got %v", err)
	}
}

func TestSharedCollection(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	user, _ := CreateUser(ctx, database, "alice", "hash")
	c, _ := CreateCollection(ctx, database, user.ID, "Vinyl", "")
	shareID := c.Share.ShareID

	if got, _ := GetSharedCollection(ctx, database, shareID); got != nil {
		t.Error("expected disabled share to be hidden")
	}

	display := model.DisplaySettings{Price: true}
	if err := UpdateShareSettings(ctx, database, user.ID, c.ID, true, display); err != nil {
		t.Fatalf("UpdateShareSettings: %v", err)
	}
	got, err := GetSharedCollection(ctx, database, shareID)
	if err != nil || got == nil {
		t.Fatalf("expected shared collection, got %v, %v", got, err)
	}
	if got.Share.Display != display {
		t.Errorf("expected display %+v, got %+v", display, got.Share.Display)
	}

	newID, err := RotateShareID(ctx, database, user.ID, c.ID)
	if err != nil {
		t.Fatalf("RotateShareID: %v", err)
	}
	if got, _ := GetSharedCollection(ctx, database, shareID); got != nil {
		t.Error("expected old share id to stop working after rotation")
	}
	if got, _ := GetSharedCollection(ctx, database, newID); got == nil {
		t.Error("expected new share id to work")
	}
	if got, _ := GetSharedCollection(ctx, database, "not-a-uuid"); got != nil {
		t.Error("expected malformed share id to resolve to nothing")
	}
}
