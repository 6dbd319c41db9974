package server

import (
	"strings"

	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

type inviteRequest struct {
	UserID uint `json:"user_id"`
}

// GetGroups handles GET /api/groups?relationship=&q=
// @Summary List groups
// @Description Public groups plus private groups the caller belongs to, each with the caller's relationship.
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param relationship query string false "none, requested, invited or joined"
// @Param q query string false "Name filter"
// @Success 200 {object} models.Envelope
// @Router /groups [get]
func (s *Server) GetGroups(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	filter := repository.GroupFilter{
		Relationship: models.Relationship(strings.TrimSpace(c.Query("relationship"))),
		Query:        c.Query("q"),
	}

	groups, err := s.groupService.ListGroups(c.UserContext(), currentUserID(c), filter, p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(groups, p))
}

// CreateGroup handles POST /api/groups
func (s *Server) CreateGroup(c *fiber.Ctx) error {
	var req service.GroupInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	group, err := s.groupService.CreateGroup(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Group created", group)
}

// GetGroup handles GET /api/groups/:id
func (s *Server) GetGroup(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	group, err := s.groupService.GetGroup(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", group)
}

// UpdateGroup handles PUT /api/groups/:id
func (s *Server) UpdateGroup(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.GroupInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	group, err := s.groupService.UpdateGroup(c.UserContext(), currentUserID(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Group updated", group)
}

// DeleteGroup handles DELETE /api/groups/:id
func (s *Server) DeleteGroup(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.groupService.DeleteGroup(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Group deleted", nil)
}

// JoinGroup handles POST /api/groups/:id/join
// @Summary Join or request to join
// @Description Public groups are joined directly, private groups get a pending request, and a pending invitation is accepted.
// @Tags groups
// @Produce json
// @Security BearerAuth
// @Param id path int true "Group ID"
// @Success 200 {object} models.Envelope{data=service.MembershipResult}
// @Router /groups/{id}/join [post]
func (s *Server) JoinGroup(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.groupService.RequestToJoin(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	message := "Joined group"
	if result.Status == models.GroupMemberRequested {
		message = "Join request sent"
	}
	return respondOK(c, message, result)
}

// LeaveGroup handles POST /api/groups/:id/leave
func (s *Server) LeaveGroup(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	result, err := s.groupService.Leave(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Left group", result)
}

// InviteToGroup handles POST /api/groups/:id/invites
func (s *Server) InviteToGroup(c *fiber.Ctx) error {
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

	member, err := s.groupService.InviteUser(c.UserContext(), currentUserID(c), id, req.UserID)
	if err != nil {
		return fail(c, err)
	}
	if member.Status == models.GroupMemberJoined {
		s.publishUserEvent(c.UserContext(), req.UserID, EventMembershipChanged,
			membershipPayload(models.InstanceTypeGroup, id, models.RelationshipJoined))
		return respondOK(c, "Join request approved", member)
	}
	return respondCreated(c, "Invitation sent", member)
}

// RespondToGroupInvite handles POST /api/groups/:id/invites/respond
func (s *Server) RespondToGroupInvite(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.groupService.RespondToInvite(c.UserContext(), currentUserID(c), id, req.Accept)
	if err != nil {
		return fail(c, err)
	}
	if req.Accept {
		return respondOK(c, "Invitation accepted", result)
	}
	return respondOK(c, "Invitation declined", result)
}

// ApproveGroupRequest handles POST /api/groups/:id/requests/:userId/approve
func (s *Server) ApproveGroupRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	member, err := s.groupService.ApproveRequest(c.UserContext(), currentUserID(c), id, userID)
	if err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), userID, EventMembershipChanged,
		membershipPayload(models.InstanceTypeGroup, id, models.RelationshipJoined))
	return respondOK(c, "Join request approved", member)
}

// DenyGroupRequest handles POST /api/groups/:id/requests/:userId/deny
func (s *Server) DenyGroupRequest(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	if err := s.groupService.DenyRequest(c.UserContext(), currentUserID(c), id, userID); err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), userID, EventMembershipChanged,
		membershipPayload(models.InstanceTypeGroup, id, models.RelationshipNone))
	return respondOK(c, "Join request denied", nil)
}

// GetGroupMembers handles GET /api/groups/:id/members?status=
func (s *Server) GetGroupMembers(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	p := parsePagination(c, defaultPageSize)
	status := models.GroupMemberStatus(c.Query("status"))

	members, err := s.groupService.ListMembers(c.UserContext(), currentUserID(c), id, status, p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(members, p))
}

// GetMyGroupInvites handles GET /api/groups/invites/me
func (s *Server) GetMyGroupInvites(c *fiber.Ctx) error {
	invites, err := s.groupService.ListMyInvites(c.UserContext(), currentUserID(c), models.InstanceTypeGroup)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", invites)
}
