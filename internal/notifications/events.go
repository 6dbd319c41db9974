package notifications

import (
	"context"
	"encoding/json"

	"huddle/internal/middleware"
)

// Realtime event types sent over the websocket.
const (
	EventNotificationCreated = "notification_created"
	EventNotificationRead    = "notification_read"
	EventUnreadCount         = "unread_count"
)

// Event is the envelope every websocket message uses.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publisher delivers realtime events to a user's sockets. With Redis configured the
// event goes through pub/sub so every instance sees it; otherwise it is written to
// the local hub directly.
type Publisher struct {
	hub      *Hub
	notifier *Notifier
}

// NewPublisher creates a Publisher. Either argument may be nil.
func NewPublisher(hub *Hub, notifier *Notifier) *Publisher {
	return &Publisher{hub: hub, notifier: notifier}
}

// PublishUser sends an event to one user. Failures are logged and swallowed.
func (p *Publisher) PublishUser(ctx context.Context, userID uint, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	event := Event{Type: eventType, Payload: payload}
	if p.notifier.Enabled() {
		if err := p.notifier.PublishEvent(ctx, userID, event); err != nil {
			middleware.Logger.WarnContext(ctx, "realtime publish failed",
				"event", eventType, "user_id", userID, "error", err)
		}
		return
	}
	if p.hub == nil {
		return
	}
	raw, err := json.Marshal(event)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "marshal realtime event", "event", eventType, "error", err)
		return
	}
	p.hub.Broadcast(userID, string(raw))
}

// PublishAll sends an event to every connected user.
func (p *Publisher) PublishAll(ctx context.Context, eventType string, payload interface{}) {
	if p == nil {
		return
	}
	raw, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		middleware.Logger.WarnContext(ctx, "marshal realtime event", "event", eventType, "error", err)
		return
	}
	if p.notifier.Enabled() {
		if err := p.notifier.PublishBroadcast(ctx, string(raw)); err != nil {
			middleware.Logger.WarnContext(ctx, "realtime broadcast failed", "event", eventType, "error", err)
		}
		return
	}
	if p.hub != nil {
		p.hub.BroadcastAll(string(raw))
	}
}
