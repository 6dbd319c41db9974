// Package service holds the business rules behind the HTTP handlers.
package service

import (
	"context"

	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"
)

// notify sends after the surrounding transaction has committed. A failure is logged
// and never reaches the caller.
func notify(ctx context.Context, sender notifications.Sender, msg notifications.Message) {
	if sender == nil {
		return
	}
	if _, err := sender.Send(ctx, msg); err != nil {
		middleware.Logger.ErrorContext(ctx, "failed to send notification",
			"type", msg.Type, "receiver_id", msg.ReceiverID, "error", err)
	}
}

func displayName(u *models.User) string {
	if u == nil {
		return "Someone"
	}
	if u.FirstName != "" {
		if u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName
	}
	return u.Username
}

func uintPtr(v uint) *uint {
	return &v
}
