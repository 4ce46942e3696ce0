package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/shramba/internal/model"
)

// CreateTag creates a tag. Names are unique per user.
func CreateTag(ctx context.Context, db *sql.DB, userID int64, name string) (*model.Tag, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := db.ExecContext(ctx,
		`INSERT INTO tags (user_id, name, created_at) VALUES (?, ?, ?)`,
		userID, name, now,
	)
	if isUniqueViolation(err) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tag id: %w", err)
	}
	return &model.Tag{ID: id, UserID: userID, Name: name, CreatedAt: now}, nil
}

// ListTags returns a user's tags ordered by name.
func ListTags(ctx context.Context, db *sql.DB, userID int64) ([]model.Tag, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM tags WHERE user_id = ? ORDER BY name`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// RenameTag changes a tag's name.
func RenameTag(ctx context.Context, db *sql.DB, userID, id int64, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	result, err := db.ExecContext(ctx,
		`UPDATE tags SET name = ? WHERE id = ? AND user_id = ?`,
		name, id, userID,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("renaming tag: %w", err)
	}
	return checkAffected(result)
}

// DeleteTag deletes a tag that no item carries.
func DeleteTag(ctx context.Context, db *sql.DB, userID, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var refs int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM item_tags it
		 JOIN tags t ON t.id = it.tag_id
		 WHERE it.tag_id = ? AND t.user_id = ?`, id, userID,
	).Scan(&refs); err != nil {
		return fmt.Errorf("counting tagged items: %w", err)
	}
	if refs > 0 {
		return ErrInUse
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tag delete: %w", err)
	}
	return nil
}
