package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a record does not exist or belongs to
	// another user. The two cases are deliberately indistinguishable.
	ErrNotFound = errors.New("not found")
	// ErrInUse is returned when deleting a location or tag that items still reference.
	ErrInUse = errors.New("still referenced by items")
	// ErrDuplicate is returned when a unique name or membership already exists.
	ErrDuplicate = errors.New("already exists")
	// ErrInvalidQuantity is returned for quantities an item cannot hold.
	ErrInvalidQuantity = errors.New("invalid quantity")
	// ErrInvalidOrder is returned when a reorder request is not a permutation
	// of the collection's current members.
	ErrInvalidOrder = errors.New("order must list every collection item exactly once")
	// ErrInvalidInput is returned for field values that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// cleanName trims a user-supplied name and rejects empty ones.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name required", ErrInvalidInput)
	}
	return name, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// checkAffected converts a zero-row update into ErrNotFound.
func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
