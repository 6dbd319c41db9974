package database

import "huddle/internal/models"

// PersistentModels returns the authoritative set of schema-managed GORM models.
func PersistentModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserBlock{},
		&models.DeviceToken{},
		&models.Attachment{},
		&models.Post{},
		&models.Friendship{},
		&models.Group{},
		&models.GroupMember{},
		&models.Event{},
		&models.EventParticipant{},
		&models.Invite{},
		&models.Notification{},
	}
}
