package server

import (
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/users/me
// @Summary Get current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Envelope{data=models.User}
// @Router /users/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetMe(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", user)
}

// UpdateMyProfile handles PUT /api/users/me
// @Summary Update current user
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} models.Envelope{data=models.User}
// @Router /users/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.UpdateProfile(c.UserContext(), currentUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Profile updated", user)
}

// ChangePassword handles PUT /api/users/me/password
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.userService.ChangePassword(c.UserContext(), currentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Password changed", nil)
}

// SearchUsers handles GET /api/users/search?q=
func (s *Server) SearchUsers(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	users, err := s.userService.Search(c.UserContext(), currentUserID(c), c.Query("q"), p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(users, p))
}

// GetUserProfile handles GET /api/users/:id
func (s *Server) GetUserProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	user, err := s.userService.GetProfile(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", user)
}

// BlockUser handles POST /api/users/:id/block
func (s *Server) BlockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	if err := s.userService.BlockUser(c.UserContext(), userID, id); err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), id, EventFriendRemoved, fiber.Map{"user_id": userID})
	return respondOK(c, "User blocked", nil)
}

// UnblockUser handles DELETE /api/users/:id/block
func (s *Server) UnblockUser(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.userService.UnblockUser(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "User unblocked", nil)
}

// GetBlockedUsers handles GET /api/users/blocked
func (s *Server) GetBlockedUsers(c *fiber.Ctx) error {
	users, err := s.userService.ListBlocked(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", users)
}

// PromoteToAdmin handles POST /api/admin/users/:id/promote-admin
func (s *Server) PromoteToAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, true)
}

// DemoteFromAdmin handles POST /api/admin/users/:id/demote-admin
func (s *Server) DemoteFromAdmin(c *fiber.Ctx) error {
	return s.setAdmin(c, false)
}

func (s *Server) setAdmin(c *fiber.Ctx, isAdmin bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if !isAdmin && id == currentUserID(c) {
		return fail(c, errCannotDemoteSelf)
	}

	user, err := s.userService.SetAdmin(c.UserContext(), id, isAdmin)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Admin rights updated", user)
}

// AdminBlockUser handles POST /api/admin/users/:id/block
func (s *Server) AdminBlockUser(c *fiber.Ctx) error {
	return s.setBlocked(c, true)
}

// AdminUnblockUser handles DELETE /api/admin/users/:id/block
func (s *Server) AdminUnblockUser(c *fiber.Ctx) error {
	return s.setBlocked(c, false)
}

func (s *Server) setBlocked(c *fiber.Ctx, blocked bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if blocked && id == currentUserID(c) {
		return fail(c, errCannotBlockSelf)
	}

	user, err := s.userService.SetBlocked(c.UserContext(), id, blocked)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Account status updated", user)
}
