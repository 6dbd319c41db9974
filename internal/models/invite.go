package models

import "time"

// InstanceType names the kind of object an invite or notification refers to.
type InstanceType string

const (
	InstanceTypeGroup      InstanceType = "group"
	InstanceTypeEvent      InstanceType = "event"
	InstanceTypeFriendship InstanceType = "friendship"
	InstanceTypePost       InstanceType = "post"
	InstanceTypeNone       InstanceType = ""
)

// InviteStatus tracks the provenance record of an invitation.
type InviteStatus string

const (
	InviteStatusPending   InviteStatus = "pending"
	InviteStatusAccepted  InviteStatus = "accepted"
	InviteStatusDeclined  InviteStatus = "declined"
	InviteStatusCancelled InviteStatus = "cancelled"
)

// Invite records who invited whom to a group or event. It is kept in step with the
// matching GroupMember/EventParticipant row inside the same transaction.
type Invite struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	InviteFromID uint         `gorm:"not null;index" json:"invite_from_id"`
	InviteFrom   *User        `gorm:"foreignKey:InviteFromID" json:"invite_from,omitempty"`
	InviteToID   uint         `gorm:"not null;uniqueIndex:idx_invites_target" json:"invite_to_id"`
	InstanceType InstanceType `gorm:"type:varchar(20);not null;uniqueIndex:idx_invites_target" json:"instance_type"`
	InstanceID   uint         `gorm:"not null;uniqueIndex:idx_invites_target" json:"instance_id"`
	Status       InviteStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
