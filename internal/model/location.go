package model

import "time"

// Location is a user-defined place where items are kept.
type Location struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`

	ItemCount int `json:"item_count"`
}

// Tag is a user-defined label attached to items.
type Tag struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}
