package model

import (
	"fmt"
	"time"
)

// User represents an account owning an inventory.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// QuotaKind names one of the daily assistant usage counters.
type QuotaKind string

// Quota kinds.
const (
	QuotaQuery    QuotaKind = "query"
	QuotaAnalysis QuotaKind = "analysis"
)

// QuotaUsage is the stored state of one quota counter.
type QuotaUsage struct {
	Count      int
	LastUsedAt *time.Time
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

// ValidatePassword checks that a password meets the minimum requirements.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
