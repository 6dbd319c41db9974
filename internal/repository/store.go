package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups every repository over one connection so services can run
// multi-step mutations inside a single transaction.
type Store struct {
	Users         UserRepository
	Blocks        BlockRepository
	Friends       FriendRepository
	Groups        GroupRepository
	Events        EventRepository
	Invites       InviteRepository
	Notifications NotificationRepository
	Devices       DeviceTokenRepository
	Attachments   AttachmentRepository
	Posts         PostRepository

	db    *gorm.DB
	stale *staleKeys
}

// NewStore builds every repository over db.
func NewStore(db *gorm.DB) *Store {
	return newStore(db, nil)
}

func newStore(db *gorm.DB, stale *staleKeys) *Store {
	return &Store{
		Users:         &userRepository{db: db, stale: stale},
		Blocks:        NewBlockRepository(db),
		Friends:       NewFriendRepository(db),
		Groups:        &groupRepository{db: db, stale: stale},
		Events:        &eventRepository{db: db, stale: stale},
		Invites:       NewInviteRepository(db),
		Notifications: &notificationRepository{db: db, stale: stale},
		Devices:       NewDeviceTokenRepository(db),
		Attachments:   NewAttachmentRepository(db),
		Posts:         NewPostRepository(db),
		db:            db,
		stale:         stale,
	}
}

// Transaction runs fn with a Store bound to one database transaction. The
// transaction commits when fn returns nil, and only then are the cache entries
// it touched dropped. Nested calls join the outer transaction's key set. A
// Store assembled by hand (no connection) runs fn directly against itself.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}
	if s.stale != nil {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(newStore(tx, s.stale))
		})
	}

	stale := &staleKeys{}
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(newStore(tx, stale))
	}); err != nil {
		return err
	}
	stale.flush(ctx)
	return nil
}
