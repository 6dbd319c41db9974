package service

import (
	"context"
	"strings"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

// UserService manages profiles and blocks.
type UserService struct {
	store *repository.Store
}

// UpdateProfileInput carries editable profile fields. Nil pointers are left unchanged.
type UpdateProfileInput struct {
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	Avatar    *string `json:"avatar"`
}

// NewUserService returns a new UserService.
func NewUserService(store *repository.Store) *UserService {
	return &UserService{store: store}
}

// GetMe returns the caller's own account.
func (s *UserService) GetMe(ctx context.Context, userID uint) (*models.User, error) {
	return s.store.Users.GetByID(ctx, userID)
}

// GetProfile returns another user with the viewer's friend status. Blocked pairs and
// blocked accounts are reported as not found.
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID uint) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if viewerID == userID {
		return user, nil
	}
	if user.IsBlocked {
		return nil, models.NewNotFoundError("User", userID)
	}
	blocked, err := s.store.Blocks.IsBlocked(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewNotFoundError("User", userID)
	}

	friendship, err := s.store.Friends.GetBetween(ctx, viewerID, userID)
	if err != nil {
		return nil, err
	}
	user.FriendStatus = friendship.StatusFor(viewerID)
	return user, nil
}

// UpdateProfile edits the caller's profile.
func (s *UserService) UpdateProfile(ctx context.Context, userID uint, in UpdateProfileInput) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	const (
		maxBioLen  = 500
		maxNameLen = 60
	)

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Username = username
	}
	if in.FirstName != nil {
		if len(*in.FirstName) > maxNameLen {
			return nil, models.NewValidationError("First name too long (max 60 characters)")
		}
		user.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if len(*in.LastName) > maxNameLen {
			return nil, models.NewValidationError("Last name too long (max 60 characters)")
		}
		user.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Bio != nil {
		if len(*in.Bio) > maxBioLen {
			return nil, models.NewValidationError("Bio too long (max 500 characters)")
		}
		user.Bio = *in.Bio
	}
	if in.Avatar != nil {
		user.Avatar = strings.TrimSpace(*in.Avatar)
	}

	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	cached, err := s.store.Users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	// Cached users carry no hash; read the row itself.
	user, err := s.store.Users.GetByEmail(ctx, cached.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundError("User", userID)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(current)); err != nil {
		return models.NewUnauthorizedError("Current password is incorrect")
	}
	if err := validation.ValidatePassword(next); err != nil {
		return models.NewValidationError(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.store.Users.UpdatePassword(ctx, userID, string(hash))
}

// Search finds users by username or name prefix.
func (s *UserService) Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.User, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, models.NewValidationError("Search query is required")
	}
	return s.store.Users.Search(ctx, viewerID, query, limit, offset)
}

// BlockUser blocks targetID and drops any friendship or request between the pair.
func (s *UserService) BlockUser(ctx context.Context, userID, targetID uint) error {
	if userID == targetID {
		return models.NewValidationError("Cannot block yourself")
	}
	if _, err := s.store.Users.GetByID(ctx, targetID); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Blocks.Block(ctx, userID, targetID); err != nil {
			return err
		}
		friendship, err := tx.Friends.GetBetween(ctx, userID, targetID)
		if err != nil || friendship == nil {
			return err
		}
		return tx.Friends.Delete(ctx, friendship.ID)
	})
}

// UnblockUser lifts a block the caller placed.
func (s *UserService) UnblockUser(ctx context.Context, userID, targetID uint) error {
	return s.store.Blocks.Unblock(ctx, userID, targetID)
}

// ListBlocked returns the users the caller has blocked.
func (s *UserService) ListBlocked(ctx context.Context, userID uint) ([]models.User, error) {
	return s.store.Blocks.ListBlocked(ctx, userID)
}

// SetAdmin grants or revokes admin rights.
func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	user.IsAdmin = isAdmin
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetBlocked suspends or restores an account. Suspended accounts cannot log in and
// are hidden from other users.
func (s *UserService) SetBlocked(ctx context.Context, targetID uint, blocked bool) (*models.User, error) {
	user, err := s.store.Users.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}

	user.IsBlocked = blocked
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}
