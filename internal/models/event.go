package models

import "time"

// EventParticipantStatus is the lifecycle state of an event participation row.
type EventParticipantStatus string

const (
	EventParticipantRequested  EventParticipantStatus = "requested"
	EventParticipantInvited    EventParticipantStatus = "invited"
	EventParticipantInterested EventParticipantStatus = "interested"
	EventParticipantGoing      EventParticipantStatus = "going"
)

// Valid reports whether s is a known status.
func (s EventParticipantStatus) Valid() bool {
	switch s {
	case EventParticipantRequested, EventParticipantInvited, EventParticipantInterested, EventParticipantGoing:
		return true
	}
	return false
}

// Attending reports whether the status counts towards participant_count.
func (s EventParticipantStatus) Attending() bool {
	return s == EventParticipantGoing || s == EventParticipantInterested
}

// Event is a scheduled gathering, optionally hosted inside a group.
type Event struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	Title            string     `gorm:"size:160;not null" json:"title"`
	Description      string     `gorm:"type:text" json:"description"`
	HostID           uint       `gorm:"not null;index" json:"host_id"`
	Host             *User      `gorm:"foreignKey:HostID" json:"host,omitempty"`
	GroupID          *uint      `gorm:"index" json:"group_id,omitempty"`
	Location         string     `gorm:"size:255" json:"location"`
	IsPrivate        bool       `gorm:"not null;default:false" json:"is_private"`
	StartsAt         time.Time  `gorm:"not null;index" json:"starts_at"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	ParticipantCount int        `gorm:"not null;default:0" json:"participant_count"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	Relationship     Relationship `gorm:"-" json:"relationship"`
	RelationshipRank int          `gorm:"-" json:"relationship_rank"`
}

// EventParticipant links a user to an event with a lifecycle status.
type EventParticipant struct {
	ID        uint                   `gorm:"primaryKey" json:"id"`
	EventID   uint                   `gorm:"not null;uniqueIndex:idx_event_participants_pair" json:"event_id"`
	UserID    uint                   `gorm:"not null;uniqueIndex:idx_event_participants_pair;index" json:"user_id"`
	User      *User                  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status    EventParticipantStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	InvitedBy *uint                  `json:"invited_by,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}
