// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// LoginType records how an account authenticates.
type LoginType string

const (
	LoginTypeEmail  LoginType = "email"
	LoginTypeGoogle LoginType = "google"
	LoginTypeApple  LoginType = "apple"
)

// User represents a member of the network.
type User struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Username        string         `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	Password        string         `gorm:"not null" json:"-"`
	FirstName       string         `gorm:"size:60" json:"first_name"`
	LastName        string         `gorm:"size:60" json:"last_name"`
	Bio             string         `json:"bio"`
	Avatar          string         `json:"avatar"`
	IsBlocked       bool           `gorm:"not null;default:false;index" json:"is_blocked"`
	IsActivated     bool           `gorm:"not null;default:false" json:"is_activated"`
	ActivationToken string         `gorm:"size:64;index" json:"-"`
	LoginType       LoginType      `gorm:"type:varchar(20);not null;default:'email'" json:"login_type"`
	IsAdmin         bool           `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Derived per request for the viewer, never stored.
	FriendStatus FriendStatus `gorm:"-" json:"friend_status,omitempty"`
}

// UserBlock records that BlockerID no longer wants to see BlockedID.
// Blocks hide both users from each other regardless of direction.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_user_blocks_pair" json:"blocker_id"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_user_blocks_pair;index" json:"blocked_id"`
	Blocked   *User     `gorm:"foreignKey:BlockedID" json:"blocked,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DevicePlatform identifies the push channel a token belongs to.
type DevicePlatform string

const (
	DevicePlatformIOS     DevicePlatform = "ios"
	DevicePlatformAndroid DevicePlatform = "android"
	DevicePlatformWeb     DevicePlatform = "web"
)

// Valid reports whether p is a known platform.
func (p DevicePlatform) Valid() bool {
	switch p {
	case DevicePlatformIOS, DevicePlatformAndroid, DevicePlatformWeb:
		return true
	}
	return false
}

// DeviceToken is a push registration for one of a user's devices.
type DeviceToken struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	Token     string         `gorm:"uniqueIndex;size:512;not null" json:"token"`
	Platform  DevicePlatform `gorm:"type:varchar(16);not null" json:"platform"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}
