package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/shramba/internal/model"
)

// sampleSize is the number of member names attached to listed collections.
const sampleSize = 3

// CreateCollection creates a collection together with its share settings.
func CreateCollection(ctx context.Context, db *sql.DB, userID int64, name, description string) (*model.Collection, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO collections (user_id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		userID, name, description, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting collection id: %w", err)
	}

	display := model.DefaultDisplaySettings()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO share_settings (collection_id, share_id, is_enabled, show_description, show_quantity,
		                             show_location, show_tags, show_price, show_acquired_at)
		 VALUES (?, ?, 0, ?, ?, ?, ?, ?, ?)`,
		id, uuid.New().String(), display.Description, display.Quantity,
		display.Location, display.Tags, display.Price, display.AcquiredAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating share settings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing collection: %w", err)
	}

	return GetCollection(ctx, db, userID, id)
}

// GetCollection returns a user's collection with its share settings and
// ordered items. Returns nil if the collection is not theirs.
func GetCollection(ctx context.Context, db *sql.DB, userID, id int64) (*model.Collection, error) {
	c := &model.Collection{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, name, description, created_at, updated_at
		 FROM collections WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &c.Name, &description, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting collection: %w", err)
	}
	c.Description = description.String

	share, err := getShareSettings(ctx, db, id)
	if err != nil {
		return nil, err
	}
	c.Share = share

	items, err := collectionItems(ctx, db, userID, id)
	if err != nil {
		return nil, err
	}
	c.Items = items
	c.ItemCount = len(items)
	return c, nil
}

// ListCollections returns a user's collections with item counts and up to
// three sample member names each, ordered by name.
func ListCollections(ctx context.Context, db *sql.DB, userID int64) ([]model.Collection, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT c.id, c.user_id, c.name, c.description, c.created_at, c.updated_at, COUNT(ci.item_id)
		 FROM collections c
		 LEFT JOIN collection_items ci ON ci.collection_id = c.id
		 WHERE c.user_id = ?
		 GROUP BY c.id
		 ORDER BY c.name, c.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var collections []model.Collection
	for rows.Next() {
		var c model.Collection
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &description, &c.CreatedAt, &c.UpdatedAt, &c.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		c.Description = description.String
		collections = append(collections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(collections) == 0 {
		return collections, nil
	}

	samples, err := collectionSamples(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	for i := range collections {
		collections[i].SampleItems = samples[collections[i].ID]
	}
	return collections, nil
}

// UpdateCollection changes a collection's name and description.
func UpdateCollection(ctx context.Context, db *sql.DB, userID, id int64, name, description string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE collections SET name = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		name, description, time.Now(), id, userID,
	)
	if err != nil {
		return fmt.Errorf("updating collection: %w", err)
	}
	return checkAffected(result)
}

// DeleteCollection deletes a collection, its memberships and share settings.
// Member items are not touched.
func DeleteCollection(ctx context.Context, db *sql.DB, userID, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM collections WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return checkAffected(result)
}

// AddItemToCollection appends an item to the end of a collection.
func AddItemToCollection(ctx context.Context, db *sql.DB, userID, collectionID, itemID int64, note string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCollectionOwner(ctx, tx, userID, collectionID); err != nil {
		return err
	}

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ? AND user_id = ?`, itemID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("item: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking item: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO collection_items (collection_id, item_id, position, note, added_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), -1) + 1 FROM collection_items WHERE collection_id = ?), ?, ?)`,
		collectionID, itemID, collectionID, note, time.Now(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("adding item to collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing collection item: %w", err)
	}
	return nil
}

// RemoveItemFromCollection removes an item's membership.
func RemoveItemFromCollection(ctx context.Context, db *sql.DB, userID, collectionID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM collection_items
		 WHERE collection_id = ? AND item_id = ?
		   AND collection_id IN (SELECT id FROM collections WHERE user_id = ?)`,
		collectionID, itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("removing item from collection: %w", err)
	}
	return checkAffected(result)
}

// ReorderCollection sets member positions to the order of itemIDs. The list
// must contain every current member exactly once. Either all positions are
// updated or none are.
func ReorderCollection(ctx context.Context, db *sql.DB, userID, collectionID int64, itemIDs []int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := checkCollectionOwner(ctx, tx, userID, collectionID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `SELECT item_id FROM collection_items WHERE collection_id = ?`, collectionID)
	if err != nil {
		return fmt.Errorf("listing collection members: %w", err)
	}
	members := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("scanning collection member: %w", err)
		}
		members[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	if len(itemIDs) != len(members) || len(uniqueIDs(itemIDs)) != len(itemIDs) {
		return ErrInvalidOrder
	}
	for _, id := range itemIDs {
		if !members[id] {
			return ErrInvalidOrder
		}
	}

	for pos, id := range itemIDs {
		if _, err := tx.ExecContext(ctx,
			`UPDATE collection_items SET position = ? WHERE collection_id = ? AND item_id = ?`,
			pos, collectionID, id,
		); err != nil {
			return fmt.Errorf("updating position: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE collections SET updated_at = ? WHERE id = ?`, time.Now(), collectionID,
	); err != nil {
		return fmt.Errorf("touching collection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reorder: %w", err)
	}
	return nil
}

func checkCollectionOwner(ctx context.Context, q querier, userID, collectionID int64) error {
	var exists int
	err := q.QueryRowContext(ctx,
		`SELECT 1 FROM collections WHERE id = ? AND user_id = ?`, collectionID, userID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return fmt.Errorf("collection: %w", ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	return nil
}

// collectionItems returns a collection's members in position order.
func collectionItems(ctx context.Context, q querier, userID, collectionID int64) ([]model.CollectionItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ci.position, ci.note, ci.added_at, i.id, i.user_id, i.location_id, i.name, i.description,
		        i.image_url, i.icon_type, i.quantity, i.price, i.priceless, i.archived, i.acquired_at,
		        i.expires_at, i.created_at, i.updated_at, COALESCE(l.name, '')
		 FROM collection_items ci
		 JOIN items i ON i.id = ci.item_id
		 LEFT JOIN locations l ON l.id = i.location_id
		 WHERE ci.collection_id = ?
		 ORDER BY ci.position, i.id`, collectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing collection items: %w", err)
	}
	defer rows.Close()

	var members []model.CollectionItem
	for rows.Next() {
		var m model.CollectionItem
		var note sql.NullString
		var locationID sql.NullInt64
		var description, imageURL, iconType sql.NullString
		var price sql.NullFloat64
		item := &m.Item
		if err := rows.Scan(&m.Position, &note, &m.AddedAt, &item.ID, &item.UserID, &locationID, &item.Name,
			&description, &imageURL, &iconType, &item.Quantity, &price, &item.Priceless, &item.Archived,
			&item.AcquiredAt, &item.ExpiresAt, &item.CreatedAt, &item.UpdatedAt, &item.LocationName); err != nil {
			return nil, fmt.Errorf("scanning collection item: %w", err)
		}
		m.Note = note.String
		if locationID.Valid {
			item.LocationID = &locationID.Int64
		}
		if price.Valid {
			item.Price = &price.Float64
		}
		item.Description = description.String
		item.ImageURL = imageURL.String
		item.IconType = iconType.String
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.Item.ID
	}
	tags, err := loadItemTags(ctx, q, userID, ids)
	if err != nil {
		return nil, err
	}
	for i := range members {
		members[i].Item.Tags = tags[members[i].Item.ID]
	}
	return members, nil
}

// collectionSamples returns the first member names of each of userID's collections.
func collectionSamples(ctx context.Context, q querier, userID int64) (map[int64][]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT ci.collection_id, i.name FROM collection_items ci
		 JOIN collections c ON c.id = ci.collection_id
		 JOIN items i ON i.id = ci.item_id
		 WHERE c.user_id = ?
		 ORDER BY ci.collection_id, ci.position, i.id`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading collection samples: %w", err)
	}
	defer rows.Close()

	samples := make(map[int64][]string)
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning collection sample: %w", err)
		}
		if len(samples[id]) < sampleSize {
			samples[id] = append(samples[id], name)
		}
	}
	return samples, rows.Err()
}
