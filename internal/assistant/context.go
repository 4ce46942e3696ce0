package assistant

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/shramba/internal/model"
	"github.com/erazemk/shramba/internal/store"
)

const (
	// detailedItemLimit is the active-item count above which the context is
	// summarized instead of listing everything.
	detailedItemLimit = 10
	// summaryItemCount is how many active items a summarized context details.
	summaryItemCount = 8
	expirySoonWindow = 7 * 24 * time.Hour
)

// ItemView is the read-only rendering of an item shared by prompt builders
// and suggestion generators. Views are built once per request by Load.
type ItemView struct {
	ID           int64
	Name         string
	Description  string
	Quantity     int
	Price        float64
	HasPrice     bool
	Priceless    bool
	Archived     bool
	HasImage     bool
	LocationName string
	Tags         []string
	CreatedAt    time.Time
	ExpiresAt    *time.Time
	History      []HistoryView
	Collections  []model.CollectionRef
}

// HistoryView is a rendered history entry.
type HistoryView struct {
	Action string
	Note   string
	At     time.Time
}

// InCollection reports whether the item belongs to any collection.
func (v ItemView) InCollection() bool {
	return len(v.Collections) > 0
}

// CollectionView is the read-only rendering of a collection.
type CollectionView struct {
	ID          int64
	Name        string
	Description string
	ItemCount   int
	SampleItems []string
}

// Snapshot is a user's inventory at a point in time.
type Snapshot struct {
	UserID      int64
	Now         time.Time
	Items       []ItemView
	Collections []CollectionView
}

// Active returns the non-archived items in snapshot order.
func (s *Snapshot) Active() []ItemView {
	var active []ItemView
	for _, item := range s.Items {
		if !item.Archived {
			active = append(active, item)
		}
	}
	return active
}

// Archived returns the archived items in snapshot order.
func (s *Snapshot) Archived() []ItemView {
	var archived []ItemView
	for _, item := range s.Items {
		if item.Archived {
			archived = append(archived, item)
		}
	}
	return archived
}

// Uncollected counts active items that belong to no collection.
func (s *Snapshot) Uncollected() int {
	n := 0
	for _, item := range s.Items {
		if !item.Archived && !item.InCollection() {
			n++
		}
	}
	return n
}

// Fingerprint identifies the parts of the snapshot that suggestions depend
// on. It changes whenever items (including their tags and prices),
// memberships or collections change.
func (s *Snapshot) Fingerprint() string {
	h := sha256.New()
	for _, item := range s.Items {
		fmt.Fprintf(h, "i%d|%s|%t|%s|%s|%t|%g|%t|%t", item.ID, item.Name, item.Archived,
			item.LocationName, strings.Join(item.Tags, ","), item.HasPrice, item.Price,
			item.Priceless, item.HasImage)
		for _, c := range item.Collections {
			fmt.Fprintf(h, "|c%d", c.ID)
		}
		h.Write([]byte{'\n'})
	}
	for _, c := range s.Collections {
		fmt.Fprintf(h, "c%d|%s|%d\n", c.ID, c.Name, c.ItemCount)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// ContextBuilder loads inventory snapshots.
type ContextBuilder struct {
	db  *sql.DB
	now func() time.Time
}

// NewContextBuilder returns a builder reading from db.
func NewContextBuilder(db *sql.DB) *ContextBuilder {
	return &ContextBuilder{db: db, now: time.Now}
}

// Load reads all of a user's items and collections.
func (b *ContextBuilder) Load(ctx context.Context, userID int64) (*Snapshot, error) {
	items, err := store.ListItemDetails(ctx, b.db, userID)
	if err != nil {
		return nil, fmt.Errorf("loading items: %w", err)
	}
	collections, err := store.ListCollections(ctx, b.db, userID)
	if err != nil {
		return nil, fmt.Errorf("loading collections: %w", err)
	}

	s := &Snapshot{
		UserID:      userID,
		Now:         b.now(),
		Items:       make([]ItemView, 0, len(items)),
		Collections: make([]CollectionView, 0, len(collections)),
	}
	for _, item := range items {
		s.Items = append(s.Items, newItemView(item))
	}
	for _, c := range collections {
		s.Collections = append(s.Collections, CollectionView{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			ItemCount:   c.ItemCount,
			SampleItems: append([]string(nil), c.SampleItems...),
		})
	}
	return s, nil
}

func newItemView(item model.Item) ItemView {
	v := ItemView{
		ID:           item.ID,
		Name:         item.Name,
		Description:  item.Description,
		Quantity:     item.Quantity,
		Priceless:    item.Priceless,
		Archived:     item.Archived,
		HasImage:     item.HasImage(),
		LocationName: item.LocationName,
		CreatedAt:    item.CreatedAt,
		Collections:  append([]model.CollectionRef(nil), item.Collections...),
	}
	if item.Price != nil {
		v.Price = *item.Price
		v.HasPrice = true
	}
	if item.ExpiresAt != nil {
		expires := *item.ExpiresAt
		v.ExpiresAt = &expires
	}
	for _, tag := range item.Tags {
		v.Tags = append(v.Tags, tag.Name)
	}
	for _, h := range item.History {
		v.History = append(v.History, HistoryView{Action: h.Action, Note: h.Note, At: h.CreatedAt})
	}
	return v
}

// BuildContext renders the snapshot's items for a prompt. Large inventories
// are summarized so the prompt stays bounded.
func BuildContext(s *Snapshot) string {
	if len(s.Items) == 0 {
		return "The user has no items in their inventory yet."
	}

	active, archived := s.Active(), s.Archived()
	var b strings.Builder

	if len(active) > detailedItemLimit {
		fmt.Fprintf(&b, "Inventory summary: %d active items, %d archived items.\n", len(active), len(archived))
		fmt.Fprintf(&b, "Most recent active items (%d):\n", summaryItemCount)
		for _, item := range active[:summaryItemCount] {
			writeItemLine(&b, item, s.Now)
		}
		fmt.Fprintf(&b, "...and %d more items.\n", len(active)-summaryItemCount)
		if len(archived) > 0 {
			fmt.Fprintf(&b, "Archived items: %d (details omitted).\n", len(archived))
		}
		return strings.TrimRight(b.String(), "\n")
	}

	fmt.Fprintf(&b, "Active items (%d):\n", len(active))
	for _, item := range active {
		writeItemLine(&b, item, s.Now)
	}
	if len(archived) > 0 {
		fmt.Fprintf(&b, "Archived items (%d):\n", len(archived))
		for _, item := range archived {
			writeItemLine(&b, item, s.Now)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeItemLine(b *strings.Builder, item ItemView, now time.Time) {
	fields := []string{ItemToken(item.ID) + " " + item.Name}
	if len(item.Tags) > 0 {
		fields = append(fields, "Tags: "+strings.Join(item.Tags, ", "))
	}
	fields = append(fields, fmt.Sprintf("Quantity: %d", item.Quantity), "Value: "+itemValue(item))
	if item.Description != "" {
		fields = append(fields, "Description: "+singleLine(item.Description))
	}
	fields = append(fields, "Location: "+itemLocation(item))
	if item.ExpiresAt != nil {
		fields = append(fields, "Expires: "+expiryStatus(*item.ExpiresAt, now))
	}
	if len(item.History) > 0 {
		var recent []string
		for _, h := range item.History {
			entry := h.Action + " " + h.At.Format(time.DateOnly)
			if h.Note != "" {
				entry += " (" + singleLine(h.Note) + ")"
			}
			recent = append(recent, entry)
		}
		fields = append(fields, "Recent: "+strings.Join(recent, "; "))
	}
	b.WriteString(strings.Join(fields, " | "))
	b.WriteByte('\n')
}

func itemValue(item ItemView) string {
	switch {
	case item.Priceless:
		return "Priceless"
	case item.HasPrice:
		return fmt.Sprintf("%.2f", item.Price)
	default:
		return "unknown"
	}
}

func itemLocation(item ItemView) string {
	switch {
	case item.Archived:
		return "ARCHIVED"
	case item.LocationName == "":
		return "unspecified location"
	default:
		return item.LocationName
	}
}

func expiryStatus(expires, now time.Time) string {
	switch {
	case expires.Before(now):
		return "EXPIRED"
	case expires.Sub(now) <= expirySoonWindow:
		return "EXPIRES SOON"
	default:
		return expires.Format(time.DateOnly)
	}
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// BuildCollectionContext renders the snapshot's collections for a prompt.
func BuildCollectionContext(s *Snapshot) string {
	if len(s.Collections) == 0 {
		return "The user has no collections yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Collections (%d):\n", len(s.Collections))
	for _, c := range s.Collections {
		line := fmt.Sprintf("%s %s - %d items", CollectionToken(c.ID), c.Name, c.ItemCount)
		if c.Description != "" {
			line += " - " + singleLine(c.Description)
		}
		if len(c.SampleItems) > 0 {
			line += " - Includes: " + strings.Join(c.SampleItems, ", ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
