// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"sync"

	"huddle/internal/cache"
	"huddle/internal/database"
	"huddle/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// staleKeys collects cache keys written under a transaction so they are dropped
// only after it commits. A nil *staleKeys drops keys immediately.
type staleKeys struct {
	mu   sync.Mutex
	keys []string
}

func (k *staleKeys) drop(ctx context.Context, keys ...string) {
	if k == nil {
		cache.Invalidate(ctx, keys...)
		return
	}
	k.mu.Lock()
	k.keys = append(k.keys, keys...)
	k.mu.Unlock()
}

func (k *staleKeys) flush(ctx context.Context) {
	k.mu.Lock()
	keys := k.keys
	k.keys = nil
	k.mu.Unlock()
	cache.Invalidate(ctx, keys...)
}

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// findErr translates a lookup error: record-not-found becomes a NotFound AppError.
func findErr(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

// notBlockedWith excludes rows whose userColumn is in a block relationship with viewerID,
// in either direction, and users flagged as blocked by moderation.
func notBlockedWith(userColumn string, viewerID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Where("NOT EXISTS (SELECT 1 FROM user_blocks ub WHERE (ub.blocker_id = ? AND ub.blocked_id = "+userColumn+") OR (ub.blocked_id = ? AND ub.blocker_id = "+userColumn+"))", viewerID, viewerID).
			Where("NOT EXISTS (SELECT 1 FROM users bu WHERE bu.id = "+userColumn+" AND bu.is_blocked = ?)", true)
	}
}
