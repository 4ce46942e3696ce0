package model

import "time"

// Collection is a named, ordered grouping of a user's items.
type Collection struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"-"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields (not always populated).
	ItemCount   int              `json:"item_count"`
	SampleItems []string         `json:"sample_items,omitempty"`
	Items       []CollectionItem `json:"items,omitempty"`
	Share       *ShareSettings   `json:"share,omitempty"`
}

// CollectionItem is an item's membership in a collection.
type CollectionItem struct {
	Position int       `json:"position"`
	Note     string    `json:"note,omitempty"`
	AddedAt  time.Time `json:"added_at"`
	Item     Item      `json:"item"`
}

// ShareSettings controls the public view of a collection.
type ShareSettings struct {
	CollectionID int64           `json:"collection_id"`
	ShareID      string          `json:"share_id"`
	IsEnabled    bool            `json:"is_enabled"`
	Display      DisplaySettings `json:"display"`
}

// DisplaySettings lists which optional item fields anonymous viewers see.
type DisplaySettings struct {
	Description bool `json:"description"`
	Quantity    bool `json:"quantity"`
	Location    bool `json:"location"`
	Tags        bool `json:"tags"`
	Price       bool `json:"price"`
	AcquiredAt  bool `json:"acquired_at"`
}

// DefaultDisplaySettings are applied to newly created collections.
func DefaultDisplaySettings() DisplaySettings {
	return DisplaySettings{
		Description: true,
		Quantity:    true,
		Tags:        true,
	}
}
