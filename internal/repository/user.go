package repository

import (
	"context"
	"errors"
	"strings"

	"huddle/internal/cache"
	"huddle/internal/database"
	"huddle/internal/models"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uint) ([]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByActivationToken(ctx context.Context, token string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id uint, hash string) error
	Activate(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.User, error)
	ActiveIDs(ctx context.Context, afterID uint, limit int) ([]uint, error)
}

type userRepository struct {
	db    *gorm.DB
	stale *staleKeys
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := readDB(r.db).WithContext(ctx).First(&user, id).Error; err != nil {
			return findErr(err, "User", id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []uint) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	if err := readDB(r.db).WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", strings.TrimSpace(username))
}

func (r *userRepository) GetByActivationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return r.findOne(ctx, "activation_token", token)
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("User already exists")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// Update saves profile fields. Credentials have their own methods because cached
// users carry no password hash.
func (r *userRepository) Update(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Omit("password", "activation_token", "created_at").Save(user).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("Username or email already taken")
		}
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.UserKey(user.ID))
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hash).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.UserKey(id))
	return nil
}

func (r *userRepository) Activate(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"is_activated": true, "activation_token": ""}).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.UserKey(id))
	return nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&models.User{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.stale.drop(ctx, cache.UserKey(id))
	return nil
}

// userRow carries the derived friend rank next to the user columns.
type userRow struct {
	models.User
	FriendRank int `gorm:"column:friend_rank"`
}

// Search matches username or name prefix and annotates each user with the viewer's friend status.
// Blocked pairs and the viewer are excluded.
func (r *userRepository) Search(ctx context.Context, viewerID uint, query string, limit, offset int) ([]models.User, error) {
	var rows []userRow
	pattern := strings.ToLower(strings.TrimSpace(query)) + "%"

	err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Select("users.*, (?) AS friend_rank", RelationshipExpr(FriendRelationshipSpec, viewerID)).
		Where("users.id <> ?", viewerID).
		Where("LOWER(users.username) LIKE ? OR LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ?", pattern, pattern, pattern).
		Scopes(notBlockedWith("users.id", viewerID)).
		Order("friend_rank DESC, users.username ASC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	users := make([]models.User, len(rows))
	for i, row := range rows {
		users[i] = row.User
		users[i].FriendStatus = models.FriendStatusFromRank(row.FriendRank)
	}
	return users, nil
}

// ActiveIDs pages through activated, non-blocked user IDs in ascending order.
func (r *userRepository) ActiveIDs(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := readDB(r.db).WithContext(ctx).
		Model(&models.User{}).
		Where("id > ? AND is_blocked = ?", afterID, false).
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return ids, nil
}
