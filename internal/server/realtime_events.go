package server

import (
	"context"

	"huddle/internal/models"
)

// Realtime event types for state changes that do not create a notification row.
// Notification rows publish their own notification_created event.
const (
	EventFriendRequestCancelled = "friend_request_cancelled"
	EventFriendRequestRejected  = "friend_request_rejected"
	EventFriendRemoved          = "friend_removed"
	EventMembershipChanged      = "membership_changed"
)

func (s *Server) publishUserEvent(ctx context.Context, userID uint, eventType string, payload interface{}) {
	s.publisher.PublishUser(ctx, userID, eventType, payload)
}

func membershipPayload(instanceType models.InstanceType, instanceID uint, relationship models.Relationship) map[string]interface{} {
	return map[string]interface{}{
		"instance_type": instanceType,
		"instance_id":   instanceID,
		"relationship":  relationship,
	}
}

func userSummary(user *models.User) map[string]interface{} {
	if user == nil {
		return nil
	}
	return map[string]interface{}{
		"id":       user.ID,
		"username": user.Username,
		"avatar":   user.Avatar,
	}
}
