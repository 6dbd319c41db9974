package models

import "time"

// GroupMemberStatus is the lifecycle state of a group membership row.
type GroupMemberStatus string

const (
	GroupMemberRequested GroupMemberStatus = "requested"
	GroupMemberInvited   GroupMemberStatus = "invited"
	GroupMemberJoined    GroupMemberStatus = "joined"
)

// Valid reports whether s is a known status.
func (s GroupMemberStatus) Valid() bool {
	switch s {
	case GroupMemberRequested, GroupMemberInvited, GroupMemberJoined:
		return true
	}
	return false
}

// GroupRole defines a member's role in a group.
type GroupRole string

const (
	GroupRoleOwner  GroupRole = "owner"
	GroupRoleAdmin  GroupRole = "admin"
	GroupRoleMember GroupRole = "member"
)

// CanManage reports whether the role may approve requests and edit the group.
func (r GroupRole) CanManage() bool {
	return r == GroupRoleOwner || r == GroupRoleAdmin
}

// Group is a user-created community.
type Group struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	Owner       *User     `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsPrivate   bool      `gorm:"not null;default:false" json:"is_private"`
	MemberCount int       `gorm:"not null;default:0" json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Derived per request for the current user, never stored.
	Relationship     Relationship `gorm:"-" json:"relationship"`
	RelationshipRank int          `gorm:"-" json:"relationship_rank"`
}

// GroupMember links a user to a group with a lifecycle status.
type GroupMember struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	GroupID   uint              `gorm:"not null;uniqueIndex:idx_group_members_pair" json:"group_id"`
	UserID    uint              `gorm:"not null;uniqueIndex:idx_group_members_pair;index" json:"user_id"`
	User      *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    GroupMemberStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	Role      GroupRole         `gorm:"type:varchar(20);not null;default:'member'" json:"role"`
	InvitedBy *uint             `json:"invited_by,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
