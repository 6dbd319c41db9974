package server

import (
	"huddle/internal/models"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetNotifications handles GET /api/notifications?unread_only=
// @Summary List notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread_only query bool false "Only unread notifications"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} models.Envelope
// @Router /notifications [get]
func (s *Server) GetNotifications(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	items, err := s.notificationService.List(c.UserContext(), currentUserID(c), c.QueryBool("unread_only", false), p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(items, p))
}

// GetUnreadCount handles GET /api/notifications/unread-count
func (s *Server) GetUnreadCount(c *fiber.Ctx) error {
	count, err := s.notificationService.UnreadCount(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", fiber.Map{"count": count})
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (s *Server) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.MarkRead(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Notification marked as read", nil)
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func (s *Server) MarkAllNotificationsRead(c *fiber.Ctx) error {
	n, err := s.notificationService.MarkAllRead(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Notifications marked as read", fiber.Map{"updated": n})
}

// DeleteNotification handles DELETE /api/notifications/:id
func (s *Server) DeleteNotification(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.notificationService.Delete(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Notification deleted", nil)
}

// RegisterDevice handles POST /api/devices
// @Summary Register a push token
// @Description Upserts the token for the caller. A token registered by another user moves to the caller.
// @Tags devices
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{token=string,platform=string} true "Device token"
// @Success 201 {object} models.Envelope{data=models.DeviceToken}
// @Router /devices [post]
func (s *Server) RegisterDevice(c *fiber.Ctx) error {
	var req struct {
		Token    string                `json:"token"`
		Platform models.DevicePlatform `json:"platform"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	device, err := s.notificationService.RegisterDevice(c.UserContext(), currentUserID(c), req.Token, req.Platform)
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Device registered", device)
}

// UnregisterDevice handles DELETE /api/devices/:token
func (s *Server) UnregisterDevice(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return fail(c, models.NewValidationError("token is required"))
	}

	if err := s.notificationService.UnregisterDevice(c.UserContext(), currentUserID(c), token); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Device unregistered", nil)
}

// BroadcastAnnouncement handles POST /api/admin/notifications/broadcast
// @Summary Announce to every user
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{title=string,body=string} true "Announcement"
// @Success 202 {object} models.Envelope
// @Failure 403 {object} models.ErrorResponse
// @Router /admin/notifications/broadcast [post]
func (s *Server) BroadcastAnnouncement(c *fiber.Ctx) error {
	var req service.AnnouncementInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserIDs = nil
	return s.announce(c, req)
}

// SendAnnouncementToUsers handles POST /api/admin/notifications/users
func (s *Server) SendAnnouncementToUsers(c *fiber.Ctx) error {
	var req service.AnnouncementInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if len(req.UserIDs) == 0 {
		return fail(c, models.NewValidationError("user_ids is required"))
	}
	return s.announce(c, req)
}

func (s *Server) announce(c *fiber.Ctx, req service.AnnouncementInput) error {
	queued, err := s.notificationService.Announce(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return models.Respond(c, fiber.StatusAccepted, "Announcement queued", fiber.Map{"recipients": queued})
}

// GetFeatureFlags handles GET /api/admin/feature-flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return respondOK(c, "", fiber.Map{
		"flags":     s.featureFlags.Raw(),
		"effective": s.featureFlags.Snapshot(currentUserID(c)),
	})
}
