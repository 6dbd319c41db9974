package models

import (
	"time"

	"gorm.io/gorm"
)

// FriendshipStatus represents the status of a friend edge.
type FriendshipStatus string

const (
	// FriendshipStatusPending is an unanswered request.
	FriendshipStatusPending FriendshipStatus = "pending"
	// FriendshipStatusConnected is an accepted request.
	FriendshipStatusConnected FriendshipStatus = "connected"
	// FriendshipStatusRejected is a declined request.
	FriendshipStatusRejected FriendshipStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s FriendshipStatus) Valid() bool {
	switch s {
	case FriendshipStatusPending, FriendshipStatusConnected, FriendshipStatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal answer to a request.
func (s FriendshipStatus) CanTransitionTo(next FriendshipStatus) bool {
	return s == FriendshipStatusPending &&
		(next == FriendshipStatusConnected || next == FriendshipStatusRejected)
}

// Friendship is a friend edge between two users. The requester/addressee columns keep
// the direction of the request while user_low_id/user_high_id hold the same pair in
// canonical order so the database allows at most one edge per unordered pair.
type Friendship struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	UserLowID    uint             `gorm:"not null;uniqueIndex:idx_friendships_pair" json:"-"`
	UserHighID   uint             `gorm:"not null;uniqueIndex:idx_friendships_pair;index" json:"-"`
	RequesterID  uint             `gorm:"not null;index" json:"user_id"`
	AddresseeID  uint             `gorm:"not null;index" json:"friend_id"`
	Status       FriendshipStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	AttachmentID *uint            `json:"attachment_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`

	Requester  *User       `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Addressee  *User       `gorm:"foreignKey:AddresseeID" json:"addressee,omitempty"`
	Attachment *Attachment `gorm:"foreignKey:AttachmentID" json:"attachment,omitempty"`
}

// TableName specifies the table name for GORM
func (Friendship) TableName() string {
	return "friendships"
}

// CanonicalPair orders two user IDs low-first.
func CanonicalPair(a, b uint) (uint, uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// BeforeSave keeps the canonical pair in sync with the request direction.
func (f *Friendship) BeforeSave(_ *gorm.DB) error {
	f.UserLowID, f.UserHighID = CanonicalPair(f.RequesterID, f.AddresseeID)
	return nil
}

// OtherUserID returns the participant that is not userID.
func (f *Friendship) OtherUserID(userID uint) uint {
	if f.RequesterID == userID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// Involves reports whether userID is one of the two participants.
func (f *Friendship) Involves(userID uint) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// FriendStatus is the viewer-relative state of a pair of users.
type FriendStatus string

const (
	FriendStatusNone            FriendStatus = "none"
	FriendStatusPendingSent     FriendStatus = "pending_sent"
	FriendStatusPendingReceived FriendStatus = "pending_received"
	FriendStatusConnected       FriendStatus = "connected"
	FriendStatusRejected        FriendStatus = "rejected"
)

// Friend relationship ranks used when the status is derived in SQL.
const (
	FriendRankNone            = 0
	FriendRankPendingSent     = 1
	FriendRankPendingReceived = 2
	FriendRankConnected       = 4
)

// FriendStatusFromRank maps a derived rank to the viewer-relative status.
func FriendStatusFromRank(rank int) FriendStatus {
	switch rank {
	case FriendRankPendingSent:
		return FriendStatusPendingSent
	case FriendRankPendingReceived:
		return FriendStatusPendingReceived
	case FriendRankConnected:
		return FriendStatusConnected
	default:
		return FriendStatusNone
	}
}

// StatusFor returns the state of f as seen by viewerID.
func (f *Friendship) StatusFor(viewerID uint) FriendStatus {
	if f == nil {
		return FriendStatusNone
	}
	switch f.Status {
	case FriendshipStatusConnected:
		return FriendStatusConnected
	case FriendshipStatusRejected:
		return FriendStatusRejected
	case FriendshipStatusPending:
		if f.RequesterID == viewerID {
			return FriendStatusPendingSent
		}
		return FriendStatusPendingReceived
	}
	return FriendStatusNone
}
