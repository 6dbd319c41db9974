package server

import (
	"context"
	"encoding/json"

	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// NotificationsWebSocket handles GET /api/ws. The connection is authenticated by
// a single-use ticket and receives the caller's realtime events.
func (s *Server) NotificationsWebSocket() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals("userID").(uint)
		if !ok || userID == 0 {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register rejected", "user_id", userID, "error", err)
			payload, _ := json.Marshal(fiber.Map{"error": err.Error()})
			_ = conn.WriteMessage(websocket.TextMessage, payload)
			_ = conn.Close()
			return
		}
		s.sendUnreadCount(client)
		client.Serve(handleClientFrame)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return models.RespondWithError(c, fiber.StatusUpgradeRequired,
				models.NewValidationError("WebSocket upgrade required"))
		}
		return upgrade(c)
	}
}

// handleClientFrame answers keepalive pings. Other frames are ignored.
func handleClientFrame(c *notifications.Client, message []byte) {
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &frame); err != nil {
		return
	}
	if frame.Type == "ping" {
		c.TrySend([]byte(`{"type":"pong"}`))
	}
}

func (s *Server) sendUnreadCount(client *notifications.Client) {
	count, err := s.notificationService.UnreadCount(context.Background(), client.UserID)
	if err != nil {
		middleware.Logger.Warn("unread count on connect failed", "user_id", client.UserID, "error", err)
		return
	}
	msg, err := json.Marshal(notifications.Event{
		Type:    notifications.EventUnreadCount,
		Payload: map[string]interface{}{"count": count},
	})
	if err != nil {
		return
	}
	client.TrySend(msg)
}
