package service

import (
	"context"
	"strings"

	"huddle/internal/models"
	"huddle/internal/repository"
)

const maxPostContentLen = 5000

// PostService manages short status posts.
type PostService struct {
	store *repository.Store
}

// CreatePostInput is the body of a new post.
type CreatePostInput struct {
	UserID       uint
	Content      string
	AttachmentID *uint
}

// NewPostService returns a new PostService.
func NewPostService(store *repository.Store) *PostService {
	return &PostService{store: store}
}

// CreatePost stores a post and claims its attachment.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" && in.AttachmentID == nil {
		return nil, models.NewValidationError("Post content is required")
	}
	if len(content) > maxPostContentLen {
		return nil, models.NewValidationError("Post too long (max 5000 characters)")
	}

	if in.AttachmentID != nil {
		attachment, err := s.store.Attachments.GetByID(ctx, *in.AttachmentID)
		if err != nil {
			return nil, err
		}
		if attachment.OwnerID != in.UserID || attachment.OwnerType != "" {
			return nil, models.NewForbiddenError("Attachment is not available")
		}
	}

	post := &models.Post{UserID: in.UserID, Content: content, AttachmentID: in.AttachmentID}
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Posts.Create(ctx, post); err != nil {
			return err
		}
		if in.AttachmentID != nil {
			return tx.Attachments.SetOwner(ctx, *in.AttachmentID, models.AttachmentOwnerPost)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.store.Posts.GetByID(ctx, post.ID)
}

// Feed returns the viewer's posts and their friends' posts, newest first.
func (s *PostService) Feed(ctx context.Context, viewerID uint, limit, offset int) ([]models.Post, error) {
	return s.store.Posts.Feed(ctx, viewerID, limit, offset)
}

// DeletePost removes the caller's own post. Admins may delete any post.
func (s *PostService) DeletePost(ctx context.Context, userID, postID uint) error {
	post, err := s.store.Posts.GetByID(ctx, postID)
	if err != nil {
		return err
	}

	if post.UserID != userID {
		user, err := s.store.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if !user.IsAdmin {
			return models.NewForbiddenError("You can only delete your own posts")
		}
	}

	return s.store.Posts.Delete(ctx, postID)
}
