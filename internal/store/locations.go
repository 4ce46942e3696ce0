package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

// CreateLocation creates a location. Names are unique per user.
func CreateLocation(ctx context.Context, db *sql.DB, userID int64, name string) (*model.Location, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	result, err := db.ExecContext(ctx,
		`INSERT INTO locations (user_id, name, created_at) VALUES (?, ?, ?)`,
		userID, name, time.Now(),
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting location id: %w", err)
	}

	return GetLocation(ctx, db, userID, id)
}

// GetLocation returns a user's location by ID, or nil if it is not theirs.
func GetLocation(ctx context.Context, db *sql.DB, userID, id int64) (*model.Location, error) {
	l := &model.Location{}
	err := db.QueryRowContext(ctx,
		`SELECT l.id, l.user_id, l.name, l.created_at,
		        (SELECT COUNT(*) FROM items i WHERE i.location_id = l.id)
		 FROM locations l WHERE l.id = ? AND l.user_id = ?`, id, userID,
	).Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt, &l.ItemCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting location: %w", err)
	}
	return l, nil
}

// ListLocations returns a user's locations with item counts, ordered by name.
func ListLocations(ctx context.Context, db *sql.DB, userID int64) ([]model.Location, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT l.id, l.user_id, l.name, l.created_at, COUNT(i.id)
		 FROM locations l
		 LEFT JOIN items i ON i.location_id = l.id
		 WHERE l.user_id = ?
		 GROUP BY l.id
		 ORDER BY l.name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.ID, &l.UserID, &l.Name, &l.CreatedAt, &l.ItemCount); err != nil {
			return nil, fmt.Errorf("scanning location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

// RenameLocation changes a location's name.
func RenameLocation(ctx context.Context, db *sql.DB, userID, id int64, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE locations SET name = ? WHERE id = ? AND user_id = ?`,
		name, id, userID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("renaming location: %w", err)
	}
	return checkAffected(result)
}

// DeleteLocation deletes a location that no item references.
func DeleteLocation(ctx context.Context, db *sql.DB, userID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE location_id = ? AND user_id = ?`, id, userID,
	).Scan(&refs); err != nil {
		return fmt.Errorf("counting location items: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting location: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing location delete: %w", err)
	}
	return nil
}
