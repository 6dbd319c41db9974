package repository

import (
	"context"
	"time"

	"huddle/internal/cache"
	"huddle/internal/models"

	"gorm.io/gorm"
)

const notificationBatchSize = 500

// NotificationRepository persists notification rows and their push outcome.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	CreateBatch(ctx context.Context, notifications []models.Notification) error
	GetByID(ctx context.Context, id uint) (*models.Notification, error)
	ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	MarkRead(ctx context.Context, userID, id uint) error
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
	Delete(ctx context.Context, userID, id uint) error
	RecordDelivery(ctx context.Context, id uint, status models.DeliveryStatus, lastError string) error
	SetDeliveryStatus(ctx context.Context, ids []uint, status models.DeliveryStatus, lastError string) error
}

type notificationRepository struct {
	db    *gorm.DB
	stale *staleKeys
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *gorm.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) dropUnread(ctx context.Context, userIDs ...uint) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, cache.UnreadCountKey(id))
	}
	r.stale.drop(ctx, keys...)
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(notification).Error; err != nil {
		return models.NewInternalError(err)
	}
	r.dropUnread(ctx, notification.ReceiverID)
	return nil
}

// CreateBatch inserts rows in chunks and fills in their IDs.
func (r *notificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(&notifications, notificationBatchSize).Error; err != nil {
		return models.NewInternalError(err)
	}

	ids := make([]uint, 0, len(notifications))
	for _, n := range notifications {
		ids = append(ids, n.ReceiverID)
	}
	r.dropUnread(ctx, ids...)
	return nil
}

func (r *notificationRepository) GetByID(ctx context.Context, id uint) (*models.Notification, error) {
	var notification models.Notification
	if err := r.db.WithContext(ctx).First(&notification, id).Error; err != nil {
		return nil, findErr(err, "Notification", id)
	}
	return &notification, nil
}

// ListForUser returns the receiver's notifications, newest first.
func (r *notificationRepository) ListForUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var notifications []models.Notification
	query := readDB(r.db).WithContext(ctx).Where("receiver_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if err := query.
		Preload("Sender").
		Order("created_at DESC, id DESC").
		Limit(clampLimit(limit)).
		Offset(clampOffset(offset)).
		Find(&notifications).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return notifications, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := cache.Aside(ctx, cache.UnreadCountKey(userID), &count, cache.UnreadCountTTL, func() error {
		return readDB(r.db).WithContext(ctx).
			Model(&models.Notification{}).
			Where("receiver_id = ? AND is_read = ?", userID, false).
			Count(&count).Error
	})
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read. Rows owned by someone else
// are reported as not found.
func (r *notificationRepository) MarkRead(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND receiver_id = ?", id, userID).
		Update("is_read", true)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	r.dropUnread(ctx, userID)
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	r.dropUnread(ctx, userID)
	return res.RowsAffected, nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND receiver_id = ?", id, userID).
		Delete(&models.Notification{})
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Notification", id)
	}
	r.dropUnread(ctx, userID)
	return nil
}

// RecordDelivery writes the outcome of one push attempt.
func (r *notificationRepository) RecordDelivery(ctx context.Context, id uint, status models.DeliveryStatus, lastError string) error {
	updates := map[string]interface{}{
		"delivery_status": status,
		"attempts":        gorm.Expr("attempts + 1"),
		"last_error":      lastError,
	}
	if status == models.DeliveryDelivered {
		updates["delivered_at"] = time.Now()
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(updates).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// SetDeliveryStatus sets the status of several rows without counting an attempt.
func (r *notificationRepository) SetDeliveryStatus(ctx context.Context, ids []uint, status models.DeliveryStatus, lastError string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"delivery_status": status, "last_error": lastError}).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
