package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/shramba/internal/model"
)

func quotaColumns(kind model.QuotaKind) (count, lastUsed string, err error) {
	switch kind {
	case model.QuotaQuery:
		return "query_count", "query_last_used_at", nil
	case model.QuotaAnalysis:
		return "analysis_count", "analysis_last_used_at", nil
	}
	return "", "", fmt.Errorf("unknown quota kind %q", kind)
}

// GetQuotaUsage returns the stored counter for a quota kind.
func GetQuotaUsage(ctx context.Context, db *sql.DB, userID int64, kind model.QuotaKind) (model.QuotaUsage, error) {
	countCol, lastCol, err := quotaColumns(kind)
	if err != nil {
		return model.QuotaUsage{}, err
	}
	return readQuota(ctx, db, userID, countCol, lastCol)
}

// UpdateQuotaUsage applies fn to the stored counter inside a single write
// transaction. Transactions begin IMMEDIATE (see db.Open), so concurrent
// updates for the same user are serialized. An error from fn aborts the
// update and is returned unchanged.
func UpdateQuotaUsage(ctx context.Context, db *sql.DB, userID int64, kind model.QuotaKind, fn func(model.QuotaUsage) (model.QuotaUsage, error)) (model.QuotaUsage, error) {
	countCol, lastCol, err := quotaColumns(kind)
	if err != nil {
		return model.QuotaUsage{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return model.QuotaUsage{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := readQuota(ctx, tx, userID, countCol, lastCol)
	if err != nil {
		return model.QuotaUsage{}, err
	}

	next, err := fn(current)
	if err != nil {
		return current, err
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE users SET %s = ?, %s = ? WHERE id = ?`, countCol, lastCol),
		next.Count, next.LastUsedAt, userID,
	)
	if err != nil {
		return model.QuotaUsage{}, fmt.Errorf("updating %s quota: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return model.QuotaUsage{}, fmt.Errorf("committing %s quota: %w", kind, err)
	}
	return next, nil
}

func readQuota(ctx context.Context, q querier, userID int64, countCol, lastCol string) (model.QuotaUsage, error) {
	var usage model.QuotaUsage
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s, %s FROM users WHERE id = ? AND deleted_at IS NULL`, countCol, lastCol),
		userID,
	).Scan(&usage.Count, &usage.LastUsedAt)
	if err == sql.ErrNoRows {
		return usage, ErrNotFound
	}
	if err != nil {
		return usage, fmt.Errorf("reading quota: %w", err)
	}
	return usage, nil
}
