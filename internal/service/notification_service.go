package service

import (
	"context"
	"strings"

	"huddle/internal/models"
	"huddle/internal/notifications"
	"huddle/internal/repository"
)

const (
	maxDeviceTokenLen   = 512
	maxAnnouncementBody = 1000
)

// Broadcaster fans a message out to many receivers.
type Broadcaster interface {
	SendToUsers(ctx context.Context, receiverIDs []uint, msg notifications.Message) (int, error)
	SendToAll(ctx context.Context, msg notifications.Message) (int, error)
}

// AnnouncementInput is an admin message to some or all users.
type AnnouncementInput struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	UserIDs []uint `json:"user_ids"`
}

// NotificationService serves a user's notification inbox, device registrations
// and admin announcements.
type NotificationService struct {
	store       *repository.Store
	broadcaster Broadcaster
	publisher   *notifications.Publisher
}

// NewNotificationService returns a new NotificationService. publisher may be nil.
func NewNotificationService(store *repository.Store, broadcaster Broadcaster, publisher *notifications.Publisher) *NotificationService {
	return &NotificationService{store: store, broadcaster: broadcaster, publisher: publisher}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.store.Notifications.ListForUser(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.store.Notifications.CountUnread(ctx, userID)
}

// MarkRead marks one notification read and pushes the new unread count.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	if err := s.store.Notifications.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.publisher.PublishUser(ctx, userID, notifications.EventNotificationRead, map[string]uint{"id": id})
	s.publishUnread(ctx, userID)
	return nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	n, err := s.store.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.publishUnread(ctx, userID)
	}
	return n, nil
}

// Delete removes one of the user's notifications.
func (s *NotificationService) Delete(ctx context.Context, userID, id uint) error {
	if err := s.store.Notifications.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.publishUnread(ctx, userID)
	return nil
}

// Announce sends an announcement to the listed users, or to every active user when
// the list is empty. It returns the number of notifications written.
func (s *NotificationService) Announce(ctx context.Context, adminID uint, in AnnouncementInput) (int, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return 0, models.NewValidationError("Announcement body is required")
	}
	if len(body) > maxAnnouncementBody {
		return 0, models.NewValidationError("Announcement too long (max 1000 characters)")
	}

	msg := notifications.Message{
		SenderID: uintPtr(adminID),
		Type:     models.NotificationAnnouncement,
		Title:    strings.TrimSpace(in.Title),
		Vars:     map[string]string{"body": body},
	}
	if len(in.UserIDs) == 0 {
		return s.broadcaster.SendToAll(ctx, msg)
	}
	return s.broadcaster.SendToUsers(ctx, in.UserIDs, msg)
}

// RegisterDevice stores a push token for the user.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uint, token string, platform models.DevicePlatform) (*models.DeviceToken, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, models.NewValidationError("Device token is required")
	}
	if len(token) > maxDeviceTokenLen {
		return nil, models.NewValidationError("Device token too long")
	}
	if !platform.Valid() {
		return nil, models.NewValidationError("Platform must be ios, android or web")
	}

	device := &models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	if err := s.store.Devices.Upsert(ctx, device); err != nil {
		return nil, err
	}
	return device, nil
}

// UnregisterDevice removes one of the user's push tokens.
func (s *NotificationService) UnregisterDevice(ctx context.Context, userID uint, token string) error {
	return s.store.Devices.DeleteByToken(ctx, userID, strings.TrimSpace(token))
}

func (s *NotificationService) publishUnread(ctx context.Context, userID uint) {
	if s.publisher == nil {
		return
	}
	count, err := s.store.Notifications.CountUnread(ctx, userID)
	if err != nil {
		return
	}
	s.publisher.PublishUser(ctx, userID, notifications.EventUnreadCount, map[string]int64{"count": count})
}
