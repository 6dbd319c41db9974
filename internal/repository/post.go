package repository

import (
	"context"

	"huddle/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	Delete(ctx context.Context, id uint) error
	Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Create(post).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Attachment").
		First(&post, id).Error; err != nil {
		return nil, findErr(err, "Post", id)
	}
	return &post, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Feed returns posts by the viewer and their connected friends, newest first.
// Authors in a block relationship with the viewer are left out.
func (r *postRepository) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	var posts []models.Post

	friends := r.db.Table("friendships").
		Select("CASE WHEN user_low_id = ? THEN user_high_id ELSE user_low_id END", viewerID).
		Where("status = ? AND (user_low_id = ? OR user_high_id = ?)", models.FriendshipStatusConnected, viewerID, viewerID)

	if err := readDB(r.db).WithContext(ctx).
		Where("posts.user_id = ? OR posts.user_id IN (?)", viewerID, friends).
		Scopes(notBlockedWith("posts.user_id", viewerID)).
		Preload("User").
		Preload("Attachment").
		Order("posts.created_at DESC, posts.id DESC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return posts, nil
}
