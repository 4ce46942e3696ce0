package model

import "time"

// Item is a user's inventory entry. Quantity stays >= 1 while the item is
// active; consuming the last unit archives it with quantity 0.
type Item struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"-"`
	LocationID  *int64     `json:"location_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	IconType    string     `json:"icon_type,omitempty"`
	Quantity    int        `json:"quantity"`
	Price       *float64   `json:"price,omitempty"`
	Priceless   bool       `json:"priceless"`
	Archived    bool       `json:"archived"`
	AcquiredAt  *time.Time `json:"acquired_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Joined fields (not always populated).
	LocationName string          `json:"location_name,omitempty"`
	Tags         []Tag           `json:"tags,omitempty"`
	History      []HistoryEntry  `json:"history,omitempty"`
	Collections  []CollectionRef `json:"collections,omitempty"`
}

// HasImage reports whether the item has a photo attached.
func (i *Item) HasImage() bool {
	return i.ImageURL != ""
}

// HistoryEntry is an immutable lifecycle record of an item.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	ItemID    int64     `json:"item_id"`
	Action    string    `json:"action"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// History actions.
const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionArchived = "archived"
	ActionRestored = "restored"
	ActionConsumed = "consumed"
	ActionGifted   = "gifted"
)

// CollectionRef names a collection an item belongs to.
type CollectionRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
