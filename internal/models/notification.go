package models

import "time"

// NotificationType identifies which social action produced a notification.
type NotificationType string

const (
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendRequestAccepted NotificationType = "friend_request_accepted"
	NotificationGroupInvite           NotificationType = "group_invite"
	NotificationGroupJoinRequest      NotificationType = "group_join_request"
	NotificationGroupJoinApproved     NotificationType = "group_join_approved"
	NotificationEventInvite           NotificationType = "event_invite"
	NotificationEventJoinRequest      NotificationType = "event_join_request"
	NotificationEventJoinApproved     NotificationType = "event_join_approved"
	NotificationAnnouncement          NotificationType = "announcement"
)

// DeliveryStatus is the outcome of the asynchronous push for a notification row.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
	DeliveryNoDevice  DeliveryStatus = "no_device"
	DeliveryDisabled  DeliveryStatus = "disabled"
)

// Notification is the persisted record of something that happened to ReceiverID.
// It is written whether or not the push reaches a device.
type Notification struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	SenderID       *uint            `gorm:"index" json:"sender_id,omitempty"`
	Sender         *User            `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID     uint             `gorm:"not null;index:idx_notifications_receiver_read" json:"receiver_id"`
	Type           NotificationType `gorm:"type:varchar(40);not null" json:"type"`
	Title          string           `gorm:"size:160" json:"title"`
	Message        string           `gorm:"type:text" json:"message"`
	Image          string           `json:"image,omitempty"`
	InstanceID     *uint            `json:"instance_id,omitempty"`
	InstanceType   InstanceType     `gorm:"type:varchar(20)" json:"instance_type,omitempty"`
	IsRead         bool             `gorm:"not null;default:false;index:idx_notifications_receiver_read" json:"is_read"`
	DeliveryStatus DeliveryStatus   `gorm:"type:varchar(20);not null;default:'pending';index" json:"delivery_status"`
	Attempts       int              `gorm:"not null;default:0" json:"attempts"`
	LastError      string           `gorm:"type:text" json:"last_error,omitempty"`
	DeliveredAt    *time.Time       `json:"delivered_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
