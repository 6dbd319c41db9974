package server

import (
	"strings"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetEvents handles GET /api/events?relationship=&group_id=&upcoming=&q=
// @Summary List events
// @Description Visible events with the caller's relationship to each.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param relationship query string false "none, requested, invited, interested or going"
// @Param group_id query int false "Only events of this group"
// @Param upcoming query bool false "Only events that have not started"
// @Param q query string false "Title filter"
// @Success 200 {object} models.Envelope
// @Router /events [get]
func (s *Server) GetEvents(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	filter := repository.EventFilter{
		Relationship: models.Relationship(strings.TrimSpace(c.Query("relationship"))),
		Upcoming:     c.QueryBool("upcoming", false),
		Query:        c.Query("q"),
	}
	if groupID := c.QueryInt("group_id", 0); groupID > 0 {
		id := uint(groupID)
		filter.GroupID = &id
	}

	events, err := s.eventService.ListEvents(c.UserContext(), currentUserID(c), filter, p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(events, p))
}

// CreateEvent handles POST /api/events
func (s *Server) CreateEvent(c *fiber.Ctx) error {
	var req service.EventInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	event, err := s.eventService.CreateEvent(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Event created", event)
}

// GetEvent handles GET /api/events/:id
func (s *Server) GetEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	event, err := s.eventService.GetEvent(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", event)
}

// UpdateEvent handles PUT /api/events/:id
func (s *Server) UpdateEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.EventInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	event, err := s.eventService.UpdateEvent(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Event updated", event)
}

// DeleteEvent handles DELETE /api/events/:id
func (s *Server) DeleteEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.eventService.DeleteEvent(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Event deleted", nil)
}

// JoinEvent handles POST /api/events/:id/join
func (s *Server) JoinEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.eventService.RequestToJoin(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	message := "Joined event"
	if result.Status == models.EventParticipantRequested {
		message = "Join request sent"
	}
	return respondOK(c, message, result)
}

// LeaveEvent handles POST /api/events/:id/leave
func (s *Server) LeaveEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.eventService.Leave(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Left event", result)
}

// InviteToEvent handles POST /api/events/:id/invites
func (s *Server) InviteToEvent(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req inviteRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return fail(c, models.NewValidationError("user_id is required"))
	}

	participant, err := s.eventService.InviteUser(c.UserContext(), currentUserID(c), id, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	if participant.Status == models.EventParticipantGoing {
		s.publishUserEvent(c.UserContext(), req.UserID, EventMembershipChanged,
			membershipPayload(models.InstanceTypeEvent, id, models.RelationshipGoing))
		return respondOK(c, "Join request approved", participant)
	}
	return respondCreated(c, "Invitation sent", participant)
}

// RespondToEventInvite handles POST /api/events/:id/invites/respond
// @Summary Answer an event invitation
// @Description interested and going accept or change attendance, decline withdraws it.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Event ID"
// @Param request body object{response=string} true "interested, going or decline"
// @Success 200 {object} models.Envelope{data=service.ParticipationResult}
// @Router /events/{id}/invites/respond [post]
func (s *Server) RespondToEventInvite(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Response service.EventResponse `json:"response"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.eventService.Respond(c.UserContext(), currentUserID(c), id, req.Response)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Response recorded", result)
}

// ApproveEventRequest handles POST /api/events/:id/requests/:userId/approve
func (s *Server) ApproveEventRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	participant, err := s.eventService.ApproveRequest(c.UserContext(), currentUserID(c), id, userID)
	if err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), userID, EventMembershipChanged,
		membershipPayload(models.InstanceTypeEvent, id, models.RelationshipGoing))
	return respondOK(c, "Join request approved", participant)
}

// DenyEventRequest handles POST /api/events/:id/requests/:userId/deny
func (s *Server) DenyEventRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.eventService.DenyRequest(c.UserContext(), currentUserID(c), id, userID); err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), userID, EventMembershipChanged,
		membershipPayload(models.InstanceTypeEvent, id, models.RelationshipNone))
	return respondOK(c, "Join request denied", nil)
}

// GetEventParticipants handles GET /api/events/:id/participants?status=
func (s *Server) GetEventParticipants(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, defaultPageSize)
	status := models.EventParticipantStatus(c.Query("status"))

	participants, err := s.eventService.ListParticipants(c.UserContext(), currentUserID(c), id, status, p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(participants, p))
}

// GetMyEventInvites handles GET /api/events/invites/me
func (s *Server) GetMyEventInvites(c *fiber.Ctx) error {
	invites, err := s.groupService.ListMyInvites(c.UserContext(), currentUserID(c), models.InstanceTypeEvent)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", invites)
}
