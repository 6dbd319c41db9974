package repository

import (
	"context"
	"time"

	"huddle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeviceTokenRepository stores push registrations.
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	DeleteByToken(ctx context.Context, userID uint, token string) error
	DeleteToken(ctx context.Context, token string) error
	ListByUser(ctx context.Context, userID uint) ([]models.DeviceToken, error)
	UserIDsWithDevices(ctx context.Context, userIDs []uint) (map[uint]bool, error)
}

type deviceTokenRepository struct {
	db *gorm.DB
}

// NewDeviceTokenRepository creates a new device token repository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert registers the token for the user. A token already registered to another
// account moves to this one, since a device belongs to whoever signed in last.
func (r *deviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"user_id":    token.UserID,
				"platform":   token.Platform,
				"updated_at": time.Now(),
			}),
		}).
		Create(token).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *deviceTokenRepository) DeleteByToken(ctx context.Context, userID uint, token string) error {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, token).
		Delete(&models.DeviceToken{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Device token", token)
	}
	return nil
}

// DeleteToken drops a token the push provider reported as no longer registered.
func (r *deviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	if err := r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.DeviceToken{}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *deviceTokenRepository) ListByUser(ctx context.Context, userID uint) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC, id DESC").
		Find(&tokens).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return tokens, nil
}

// UserIDsWithDevices reports which of userIDs have at least one registered device.
func (r *deviceTokenRepository) UserIDsWithDevices(ctx context.Context, userIDs []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	var ids []uint
	if err := readDB(r.db).WithContext(ctx).
		Model(&models.DeviceToken{}).
		Distinct("user_id").
		Where("user_id IN ?", userIDs).
		Pluck("user_id", &ids).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
