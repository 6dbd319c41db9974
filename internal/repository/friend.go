package repository

import (
	"context"
	"errors"
	"fmt"

	"huddle/internal/database"
	"huddle/internal/models"

	"gorm.io/gorm"
)

// FriendRepository defines the interface for friend data operations.
// Every edge is stored once per unordered pair (user_low_id, user_high_id).
type FriendRepository interface {
	Create(ctx context.Context, friendship *models.Friendship) error
	GetByID(ctx context.Context, id uint) (*models.Friendship, error)
	GetBetween(ctx context.Context, userA, userB uint) (*models.Friendship, error)
	Reopen(ctx context.Context, friendship *models.Friendship, requesterID, addresseeID uint, attachmentID *uint) (bool, error)
	TransitionStatus(ctx context.Context, id uint, from, to models.FriendshipStatus) (bool, error)
	Delete(ctx context.Context, id uint) error
	DeleteBetween(ctx context.Context, userA, userB uint, status models.FriendshipStatus) (int64, error)
	ListFriends(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	CountFriends(ctx context.Context, userID uint) (int64, error)
	FriendIDs(ctx context.Context, userID uint) ([]uint, error)
	ListIncoming(ctx context.Context, userID uint) ([]models.Friendship, error)
	ListSent(ctx context.Context, userID uint) ([]models.Friendship, error)
	MutualFriends(ctx context.Context, userA, userB uint) ([]models.User, error)
}

// friendRepository implements FriendRepository
type friendRepository struct {
	db *gorm.DB
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *gorm.DB) FriendRepository {
	return &friendRepository{db: db}
}

func (r *friendRepository) Create(ctx context.Context, friendship *models.Friendship) error {
	if err := r.db.WithContext(ctx).Create(friendship).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("friendship %d-%d: %w", friendship.RequesterID, friendship.AddresseeID, ErrDuplicate)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) GetByID(ctx context.Context, id uint) (*models.Friendship, error) {
	var friendship models.Friendship
	if err := r.db.WithContext(ctx).Preload("Requester").Preload("Addressee").First(&friendship, id).Error; err != nil {
		return nil, findErr(err, "Friend request", id)
	}
	return &friendship, nil
}

// GetBetween returns the edge for the unordered pair, or nil when none exists.
func (r *friendRepository) GetBetween(ctx context.Context, userA, userB uint) (*models.Friendship, error) {
	var friendship models.Friendship
	low, high := models.CanonicalPair(userA, userB)

	if err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&friendship).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &friendship, nil
}

// Reopen turns a rejected edge back into a pending request in the new direction.
// It reports false when the row is no longer rejected.
func (r *friendRepository) Reopen(ctx context.Context, friendship *models.Friendship, requesterID, addresseeID uint, attachmentID *uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("id = ? AND status = ?", friendship.ID, models.FriendshipStatusRejected).
		Updates(map[string]interface{}{
			"requester_id":  requesterID,
			"addressee_id":  addresseeID,
			"status":        models.FriendshipStatusPending,
			"attachment_id": attachmentID,
		})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	friendship.RequesterID = requesterID
	friendship.AddresseeID = addresseeID
	friendship.Status = models.FriendshipStatusPending
	friendship.AttachmentID = attachmentID
	return true, nil
}

// TransitionStatus moves the edge from one status to another only if it is still in from.
// Concurrent answers to the same request therefore succeed at most once.
func (r *friendRepository) TransitionStatus(ctx context.Context, id uint, from, to models.FriendshipStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Friendship{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *friendRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Friendship{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *friendRepository) DeleteBetween(ctx context.Context, userA, userB uint, status models.FriendshipStatus) (int64, error) {
	low, high := models.CanonicalPair(userA, userB)
	res := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ? AND status = ?", low, high, status).
		Delete(&models.Friendship{})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// connectedTo joins friendships so that users.id is the other side of a connected edge of userID.
func connectedTo(userID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.
			Joins("JOIN friendships f ON ((f.user_low_id = ? AND f.user_high_id = users.id) OR (f.user_high_id = ? AND f.user_low_id = users.id))", userID, userID).
			Where("f.status = ?", models.FriendshipStatusConnected)
	}
}

// ListFriends returns connected users, newest edge first. Ties on updated_at are
// broken by edge id so repeated reads return the same order.
func (r *friendRepository) ListFriends(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	var users []models.User

	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Scopes(connectedTo(userID), notBlockedWith("users.id", userID)).
		Order("f.updated_at DESC, f.id DESC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for i := range users {
		users[i].FriendStatus = models.FriendStatusConnected
	}
	return users, nil
}

func (r *friendRepository) CountFriends(ctx context.Context, userID uint) (int64, error) {
	var count int64
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Scopes(connectedTo(userID), notBlockedWith("users.id", userID)).
		Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *friendRepository) FriendIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Scopes(connectedTo(userID), notBlockedWith("users.id", userID)).
		Pluck("users.id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}

func (r *friendRepository) listPending(ctx context.Context, column string, userID uint) ([]models.Friendship, error) {
	var friendships []models.Friendship
	other := "requester_id"
	if column == "requester_id" {
		other = "addressee_id"
	}

	if err := readDB(r.db).WithContext(ctx).
		Where(column+" = ? AND status = ?", userID, models.FriendshipStatusPending).
		Scopes(notBlockedWith("friendships."+other, userID)).
		Preload("Requester").
		Preload("Addressee").
		Preload("Attachment").
		Order("created_at DESC, id DESC").
		Find(&friendships).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return friendships, nil
}

// ListIncoming returns pending requests addressed to userID.
func (r *friendRepository) ListIncoming(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.listPending(ctx, "addressee_id", userID)
}

// ListSent returns pending requests sent by userID.
func (r *friendRepository) ListSent(ctx context.Context, userID uint) ([]models.Friendship, error) {
	return r.listPending(ctx, "requester_id", userID)
}

// MutualFriends returns users connected to both userA and userB, excluding anyone
// in a block relationship with either of them.
func (r *friendRepository) MutualFriends(ctx context.Context, userA, userB uint) ([]models.User, error) {
	var users []models.User

	friendsOf := func(id uint) *gorm.DB {
		return r.db.Table("friendships").
			Select("CASE WHEN user_low_id = ? THEN user_high_id ELSE user_low_id END", id).
			Where("status = ? AND (user_low_id = ? OR user_high_id = ?)", models.FriendshipStatusConnected, id, id)
	}

	if err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Where("users.id IN (?)", friendsOf(userA)).
		Where("users.id IN (?)", friendsOf(userB)).
		Scopes(notBlockedWith("users.id", userA), notBlockedWith("users.id", userB)).
		Order("users.username ASC").
		Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
