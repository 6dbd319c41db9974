package repository

import (
	"context"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlockRepository persists user-to-user blocks.
type BlockRepository interface {
	Block(ctx context.Context, blockerID, blockedID uint) error
	Unblock(ctx context.Context, blockerID, blockedID uint) error
	IsBlocked(ctx context.Context, userA, userB uint) (bool, error)
	ListBlocked(ctx context.Context, blockerID uint) ([]models.User, error)
}

type blockRepository struct {
	db *gorm.DB
}

// NewBlockRepository creates a new block repository
func NewBlockRepository(db *gorm.DB) BlockRepository {
	return &blockRepository{db: db}
}

func (r *blockRepository) Block(ctx context.Context, blockerID, blockedID uint) error {
	block := &models.UserBlock{BlockerID: blockerID, BlockedID: blockedID}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(block).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *blockRepository) Unblock(ctx context.Context, blockerID, blockedID uint) error {
	if err := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&models.UserBlock{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// IsBlocked reports whether either user has blocked the other.
func (r *blockRepository) IsBlocked(ctx context.Context, userA, userB uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.UserBlock{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", userA, userB, userB, userA).
		Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *blockRepository) ListBlocked(ctx context.Context, blockerID uint) ([]models.User, error) {
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Joins("JOIN user_blocks ub ON ub.blocked_id = users.id").
		Where("ub.blocker_id = ?", blockerID).
		Order("ub.created_at DESC, ub.id DESC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
