package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/shramba/internal/model"
)

const shareSelect = `SELECT collection_id, share_id, is_enabled, show_description, show_quantity,
       show_location, show_tags, show_price, show_acquired_at
  FROM share_settings`

func scanShare(s scanner) (*model.ShareSettings, error) {
	ss := &model.ShareSettings{}
	d := &ss.Display
	err := s.Scan(&ss.CollectionID, &ss.ShareID, &ss.IsEnabled, &d.Description, &d.Quantity,
		&d.Location, &d.Tags, &d.Price, &d.AcquiredAt)
	return ss, err
}

func getShareSettings(ctx context.Context, q querier, collectionID int64) (*model.ShareSettings, error) {
	ss, err := scanShare(q.QueryRowContext(ctx, shareSelect+` WHERE collection_id = ?`, collectionID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting share settings: %w", err)
	}
	return ss, nil
}

// GetShareSettings returns the share settings of a user's collection.
func GetShareSettings(ctx context.Context, db *sql.DB, userID, collectionID int64) (*model.ShareSettings, error) {
	if err := checkCollectionOwner(ctx, db, userID, collectionID); err != nil {
		return nil, err
	}
	ss, err := getShareSettings(ctx, db, collectionID)
	if err != nil {
		return nil, err
	}
	if ss == nil {
		return nil, ErrNotFound
	}
	return ss, nil
}

// UpdateShareSettings sets whether a collection is shared and which fields
// anonymous viewers see.
func UpdateShareSettings(ctx context.Context, db *sql.DB, userID, collectionID int64, enabled bool, d model.DisplaySettings) error {
	result, err := db.ExecContext(ctx,
		`UPDATE share_settings SET is_enabled = ?, show_description = ?, show_quantity = ?,
		        show_location = ?, show_tags = ?, show_price = ?, show_acquired_at = ?
		 WHERE collection_id = ?
		   AND collection_id IN (SELECT id FROM collections WHERE user_id = ?)`,
		enabled, d.Description, d.Quantity, d.Location, d.Tags, d.Price, d.AcquiredAt,
		collectionID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating share settings: %w", err)
	}
	return checkAffected(result)
}

// RotateShareID replaces a collection's public share identifier, invalidating
// previously distributed links. Returns the new identifier.
func RotateShareID(ctx context.Context, db *sql.DB, userID, collectionID int64) (string, error) {
	shareID := uuid.New().String()
	result, err := db.ExecContext(ctx,
		`UPDATE share_settings SET share_id = ?
		 WHERE collection_id = ?
		   AND collection_id IN (SELECT id FROM collections WHERE user_id = ?)`,
		shareID, collectionID, userID,
	)
	if err != nil {
		return "", fmt.Errorf("rotating share id: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return "", err
	}
	return shareID, nil
}

// GetSharedCollection returns the collection published under shareID, or nil
// if no enabled share uses that identifier.
func GetSharedCollection(ctx context.Context, db *sql.DB, shareID string) (*model.Collection, error) {
	if _, err := uuid.Parse(shareID); err != nil {
		return nil, nil
	}

	ss, err := scanShare(db.QueryRowContext(ctx, shareSelect+` WHERE share_id = ? AND is_enabled = 1`, shareID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting shared collection: %w", err)
	}

	var userID int64
	if err := db.QueryRowContext(ctx,
		`SELECT user_id FROM collections WHERE id = ?`, ss.CollectionID,
	).Scan(&userID); err != nil {
		return nil, fmt.Errorf("getting shared collection owner: %w", err)
	}

	return GetCollection(ctx, db, userID, ss.CollectionID)
}
