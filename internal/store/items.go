package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

// ItemInput holds the editable fields of an item.
type ItemInput struct {
	Name        string
	Description string
	ImageURL    string
	IconType    string
	Quantity    int
	Price       *float64
	Priceless   bool
	LocationID  *int64
	AcquiredAt  *time.Time
	ExpiresAt   *time.Time
	TagIDs      []int64
}

// Validate checks the input invariants shared by create and update.
func (in *ItemInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidQuantity)
	}
	if in.Priceless && in.Price != nil {
		return fmt.Errorf("%w: an item is either priced or priceless, not both", ErrInvalidInput)
	}
	if in.Price != nil && *in.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	return nil
}

const itemSelect = `SELECT i.id, i.user_id, i.location_id, i.name, i.description, i.image_url, i.icon_type,
       i.quantity, i.price, i.priceless, i.archived, i.acquired_at, i.expires_at,
       i.created_at, i.updated_at, COALESCE(l.name, '')
  FROM items i
  LEFT JOIN locations l ON l.id = i.location_id`

func scanItem(s scanner) (model.Item, error) {
	var item model.Item
	var locationID sql.NullInt64
	var description, imageURL, iconType sql.NullString
	var price sql.NullFloat64
	err := s.Scan(&item.ID, &item.UserID, &locationID, &item.Name, &description, &imageURL, &iconType,
		&item.Quantity, &price, &item.Priceless, &item.Archived, &item.AcquiredAt, &item.ExpiresAt,
		&item.CreatedAt, &item.UpdatedAt, &item.LocationName)
	if err != nil {
		return item, err
	}
	if locationID.Valid {
		item.LocationID = &locationID.Int64
	}
	if price.Valid {
		item.Price = &price.Float64
	}
	item.Description = description.String
	item.ImageURL = imageURL.String
	item.IconType = iconType.String
	return item, nil
}

// CreateItem creates an item with its tags and a "created" history entry.
func CreateItem(ctx context.Context, db *sql.DB, userID int64, in ItemInput) (*model.Item, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkItemRefs(ctx, tx, userID, in); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO items (user_id, location_id, name, description, image_url, icon_type, quantity,
		                    price, priceless, acquired_at, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		userID, in.LocationID, strings.TrimSpace(in.Name), in.Description, in.ImageURL, in.IconType, in.Quantity,
		in.Price, in.Priceless, in.AcquiredAt, in.ExpiresAt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	if err := replaceItemTags(ctx, tx, id, in.TagIDs); err != nil {
		return nil, err
	}
	if err := addHistory(ctx, tx, id, model.ActionCreated, "", now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	return GetItem(ctx, db, userID, id)
}

// GetItem returns a user's item by ID with its location name and tags.
// Returns nil if the item does not exist or belongs to another user.
func GetItem(ctx context.Context, db *sql.DB, userID, id int64) (*model.Item, error) {
	item, err := scanItem(db.QueryRowContext(ctx,
		itemSelect+` WHERE i.id = ? AND i.user_id = ?`, id, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}

	tags, err := loadItemTags(ctx, db, userID, []int64{item.ID})
	if err != nil {
		return nil, err
	}
	item.Tags = tags[item.ID]
	return &item, nil
}

// ListItems returns a user's items ordered by name. A nil archived filter
// returns both active and archived items.
func ListItems(ctx context.Context, db *sql.DB, userID int64, archived *bool) ([]model.Item, error) {
	query := itemSelect + ` WHERE i.user_id = ?`
	args := []any{userID}
	if archived != nil {
		query += ` AND i.archived = ?`
		args = append(args, *archived)
	}
	query += ` ORDER BY i.name, i.id`

	items, err := queryItems(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}

	tags, err := loadItemTags(ctx, db, userID, itemIDs(items))
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Tags = tags[items[i].ID]
	}
	return items, nil
}

// ListItemDetails returns every item of a user, active and archived, with
// location name, tags, the last three history entries and collection
// memberships. Items are ordered newest first.
func ListItemDetails(ctx context.Context, db *sql.DB, userID int64) ([]model.Item, error) {
	items, err := queryItems(ctx, db, itemSelect+` WHERE i.user_id = ? ORDER BY i.created_at DESC, i.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := itemIDs(items)
	tags, err := loadItemTags(ctx, db, userID, ids)
	if err != nil {
		return nil, err
	}
	history, err := loadRecentHistory(ctx, db, userID, 3)
	if err != nil {
		return nil, err
	}
	memberships, err := loadMemberships(ctx, db, userID)
	if err != nil {
		return nil, err
	}

	for i := range items {
		id := items[i].ID
		items[i].Tags = tags[id]
		items[i].History = history[id]
		items[i].Collections = memberships[id]
	}
	return items, nil
}

// UpdateItem replaces an item's editable fields and tags.
func UpdateItem(ctx context.Context, db *sql.DB, userID, id int64, in ItemInput) error {
	if err := in.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkItemRefs(ctx, tx, userID, in); err != nil {
		return err
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE items SET location_id = ?, name = ?, description = ?, image_url = ?, icon_type = ?,
		        quantity = CASE WHEN archived = 1 THEN quantity ELSE ? END,
		        price = ?, priceless = ?, acquired_at = ?, expires_at = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		in.LocationID, strings.TrimSpace(in.Name), in.Description, in.ImageURL, in.IconType,
		in.Quantity, in.Price, in.Priceless, in.AcquiredAt, in.ExpiresAt, now, id, userID,
	)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if err := replaceItemTags(ctx, tx, id, in.TagIDs); err != nil {
		return err
	}
	if err := addHistory(ctx, tx, id, model.ActionUpdated, "", now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item update: %w", err)
	}
	return nil
}

// ArchiveItem archives an active item. Archiving an archived item is a no-op.
func ArchiveItem(ctx context.Context, db *sql.DB, userID, id int64, note string) error {
	return changeItemState(ctx, db, userID, id, func(item *model.Item) (string, string, error) {
		if item.Archived {
			return "", "", nil
		}
		item.Archived = true
		return model.ActionArchived, note, nil
	})
}

// RestoreItem makes an archived item active again with at least one unit.
func RestoreItem(ctx context.Context, db *sql.DB, userID, id int64) error {
	return changeItemState(ctx, db, userID, id, func(item *model.Item) (string, string, error) {
		if !item.Archived {
			return "", "", nil
		}
		item.Archived = false
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		return model.ActionRestored, "", nil
	})
}

// ConsumeItem removes amount units from an active item. Consuming the last
// unit archives the item with quantity 0.
func ConsumeItem(ctx context.Context, db *sql.DB, userID, id int64, amount int) error {
	if amount < 1 {
		return fmt.Errorf("%w: amount must be at least 1", ErrInvalidQuantity)
	}
	return changeItemState(ctx, db, userID, id, func(item *model.Item) (string, string, error) {
		if item.Archived {
			return "", "", fmt.Errorf("%w: item is archived", ErrInvalidQuantity)
		}
		if amount > item.Quantity {
			return "", "", fmt.Errorf("%w: have %d, consuming %d", ErrInvalidQuantity, item.Quantity, amount)
		}
		item.Quantity -= amount
		if item.Quantity == 0 {
			item.Archived = true
		}
		return model.ActionConsumed, fmt.Sprintf("consumed %d", amount), nil
	})
}

// GiftItem archives an item as given away, recording the note.
func GiftItem(ctx context.Context, db *sql.DB, userID, id int64, note string) error {
	return changeItemState(ctx, db, userID, id, func(item *model.Item) (string, string, error) {
		if item.Archived {
			return "", "", fmt.Errorf("%w: item is archived", ErrInvalidQuantity)
		}
		item.Archived = true
		return model.ActionGifted, note, nil
	})
}

// changeItemState loads an item, lets fn mutate its quantity and archived
// flag, and stores the result with a history entry in one transaction. An
// empty action from fn means nothing changed.
func changeItemState(ctx context.Context, db *sql.DB, userID, id int64, fn func(*model.Item) (action, note string, err error)) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx, itemSelect+` WHERE i.id = ? AND i.user_id = ?`, id, userID))
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("getting item: %w", err)
	}

	action, note, err := fn(&item)
	if err != nil {
		return err
	}
	if action == "" {
		return nil
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE items SET quantity = ?, archived = ?, updated_at = ? WHERE id = ?`,
		item.Quantity, item.Archived, now, id,
	)
	if err != nil {
		return fmt.Errorf("updating item state: %w", err)
	}
	if err := addHistory(ctx, tx, id, action, note, now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing item %s: %w", action, err)
	}
	return nil
}

// GetItemHistory returns an item's history, newest first.
func GetItemHistory(ctx context.Context, db *sql.DB, userID, id int64) ([]model.HistoryEntry, error) {
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ? AND user_id = ?`, id, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("checking item: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, item_id, action, note, created_at FROM item_history
		 WHERE item_id = ? ORDER BY created_at DESC, id DESC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("getting item history: %w", err)
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func scanHistory(s scanner) (model.HistoryEntry, error) {
	var h model.HistoryEntry
	var note sql.NullString
	if err := s.Scan(&h.ID, &h.ItemID, &h.Action, &note, &h.CreatedAt); err != nil {
		return h, fmt.Errorf("scanning history: %w", err)
	}
	h.Note = note.String
	return h, nil
}

func addHistory(ctx context.Context, q querier, itemID int64, action, note string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO item_history (item_id, action, note, created_at) VALUES (?, ?, ?, ?)`,
		itemID, action, note, at,
	)
	if err != nil {
		return fmt.Errorf("recording %s history: %w", action, err)
	}
	return nil
}

// checkItemRefs verifies that the location and tags in the input belong to userID.
func checkItemRefs(ctx context.Context, q querier, userID int64, in ItemInput) error {
	if in.LocationID != nil {
		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM locations WHERE id = ? AND user_id = ?`, *in.LocationID, userID,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("location: %w", ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("checking location: %w", err)
		}
	}

	tagIDs := uniqueIDs(in.TagIDs)
	if len(tagIDs) == 0 {
		return nil
	}
	var count int
	args := append([]any{userID}, int64Args(tagIDs)...)
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE user_id = ? AND id IN (`+placeholders(len(tagIDs))+`)`, args...,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking tags: %w", err)
	}
	if count != len(tagIDs) {
		return fmt.Errorf("tag: %w", ErrNotFound)
	}
	return nil
}

func replaceItemTags(ctx context.Context, q querier, itemID int64, tagIDs []int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM item_tags WHERE item_id = ?`, itemID); err != nil {
		return fmt.Errorf("clearing item tags: %w", err)
	}
	for _, tagID := range uniqueIDs(tagIDs) {
		if _, err := q.ExecContext(ctx,
			`INSERT INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagID,
		); err != nil {
			return fmt.Errorf("tagging item: %w", err)
		}
	}
	return nil
}

func queryItems(ctx context.Context, q querier, query string, args ...any) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// loadItemTags returns tags keyed by item ID for the given items of userID.
func loadItemTags(ctx context.Context, q querier, userID int64, ids []int64) (map[int64][]model.Tag, error) {
	tags := make(map[int64][]model.Tag)
	if len(ids) == 0 {
		return tags, nil
	}

	args := append([]any{userID}, int64Args(ids)...)
	rows, err := q.QueryContext(ctx,
		`SELECT it.item_id, t.id, t.name FROM item_tags it
		 JOIN tags t ON t.id = it.tag_id
		 WHERE t.user_id = ? AND it.item_id IN (`+placeholders(len(ids))+`)
		 ORDER BY t.name`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading item tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var t model.Tag
		if err := rows.Scan(&itemID, &t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scanning item tag: %w", err)
		}
		t.UserID = userID
		tags[itemID] = append(tags[itemID], t)
	}
	return tags, rows.Err()
}

// loadRecentHistory returns up to limit newest history entries per item of userID.
func loadRecentHistory(ctx context.Context, q querier, userID int64, limit int) (map[int64][]model.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, item_id, action, note, created_at FROM (
		     SELECT h.id, h.item_id, h.action, h.note, h.created_at,
		            ROW_NUMBER() OVER (PARTITION BY h.item_id ORDER BY h.created_at DESC, h.id DESC) AS rn
		       FROM item_history h
		       JOIN items i ON i.id = h.item_id
		      WHERE i.user_id = ?
		 ) WHERE rn <= ?
		 ORDER BY item_id, rn`, userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("loading item history: %w", err)
	}
	defer rows.Close()

	history := make(map[int64][]model.HistoryEntry)
	for rows.Next() {
		h, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		history[h.ItemID] = append(history[h.ItemID], h)
	}
	return history, rows.Err()
}

// loadMemberships returns the collections each of userID's items belongs to.
func loadMemberships(ctx context.Context, q querier, userID int64) (map[int64][]model.CollectionRef, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ci.item_id, c.id, c.name FROM collection_items ci
		 JOIN collections c ON c.id = ci.collection_id
		 WHERE c.user_id = ?
		 ORDER BY c.name, c.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading collection memberships: %w", err)
	}
	defer rows.Close()

	memberships := make(map[int64][]model.CollectionRef)
	for rows.Next() {
		var itemID int64
		var ref model.CollectionRef
		if err := rows.Scan(&itemID, &ref.ID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		memberships[itemID] = append(memberships[itemID], ref)
	}
	return memberships, rows.Err()
}

func itemIDs(items []model.Item) []int64 {
	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
