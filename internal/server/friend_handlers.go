package server

import (
	"strings"

	"huddle/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetFriends handles GET /api/friends
func (s *Server) GetFriends(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	friends, total, err := s.friendService.GetMyFriends(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	body := paged(friends, p)
	body["total"] = total
	return respondOK(c, "", body)
}

// SendFriendRequest handles POST /api/friends/requests/:userId
// @Summary Send friend request
// @Description Opens a pending request. An attachment rides along either as a JSON attachment_id or as a multipart "file".
// @Tags friends
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param userId path int true "Target user ID"
// @Param request body object{attachment_id=int} false "Optional attachment"
// @Param file formData file false "Optional file"
// @Success 201 {object} models.Envelope{data=models.Friendship}
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /friends/requests/{userId} [post]
func (s *Server) SendFriendRequest(c *fiber.Ctx) error {
	targetID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		AttachmentID *uint `json:"attachment_id"`
	}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return fail(c, models.NewValidationError("Unable to read uploaded file"))
		}
		if files := form.File["file"]; len(files) > 0 {
			attachment, err := s.storeUpload(c, files[0])
			if err != nil {
				return fail(c, err)
			}
			req.AttachmentID = &attachment.ID
		}
	} else if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return nil
		}
	}

	friendship, err := s.friendService.SendFriendRequest(c.UserContext(), currentUserID(c), targetID, req.AttachmentID)
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Friend request sent", friendship)
}

// GetPendingRequests handles GET /api/friends/requests
func (s *Server) GetPendingRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.GetConnectionRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", requests)
}

// GetSentRequests handles GET /api/friends/requests/sent
func (s *Server) GetSentRequests(c *fiber.Ctx) error {
	requests, err := s.friendService.GetSentRequests(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", requests)
}

// UpdateFriendRequestStatus handles PUT /api/friends/requests/:requestId/status
// @Summary Answer a friend request
// @Tags friends
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param requestId path int true "Request ID"
// @Param request body object{status=string} true "connected or rejected"
// @Success 200 {object} models.Envelope{data=models.Friendship}
// @Router /friends/requests/{requestId}/status [put]
func (s *Server) UpdateFriendRequestStatus(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	var req struct {
		Status models.FriendshipStatus `json:"status"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	friendship, err := s.friendService.UpdateStatus(c.UserContext(), currentUserID(c), requestID, req.Status)
	if err != nil {
		return fail(c, err)
	}
	if friendship.Status == models.FriendshipStatusRejected {
		s.publishUserEvent(c.UserContext(), friendship.RequesterID, EventFriendRequestRejected, fiber.Map{
			"request_id": friendship.ID,
		})
	}
	return respondOK(c, "Friend request updated", friendship)
}

// WithdrawFriendRequest handles DELETE /api/friends/requests/:requestId
func (s *Server) WithdrawFriendRequest(c *fiber.Ctx) error {
	requestID, err := s.parseID(c, "requestId")
	if err != nil {
		return nil
	}

	ctx := c.UserContext()
	friendship, err := s.store.Friends.GetByID(ctx, requestID)
	if err != nil {
		return fail(c, err)
	}
	if err := s.friendService.WithdrawFriendRequest(ctx, currentUserID(c), requestID); err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(ctx, friendship.AddresseeID, EventFriendRequestCancelled, fiber.Map{
		"request_id": requestID,
		"from_user":  userSummary(friendship.Requester),
	})
	return respondOK(c, "Friend request withdrawn", nil)
}

// GetFriendshipStatus handles GET /api/friends/status/:userId
func (s *Server) GetFriendshipStatus(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	status, err := s.friendService.GetFriendshipStatus(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", status)
}

// GetMutualFriends handles GET /api/friends/mutual/:userId
func (s *Server) GetMutualFriends(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	users, err := s.friendService.GetMutualFriends(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", users)
}

// GetMutualGroups handles GET /api/friends/mutual/:userId/groups
func (s *Server) GetMutualGroups(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	groups, err := s.friendService.GetMutualGroups(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", groups)
}

// GetMutualEvents handles GET /api/friends/mutual/:userId/events
func (s *Server) GetMutualEvents(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	events, err := s.friendService.GetMutualEvents(c.UserContext(), currentUserID(c), otherID)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", events)
}

// RemoveFriend handles DELETE /api/friends/:userId
func (s *Server) RemoveFriend(c *fiber.Ctx) error {
	otherID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	userID := currentUserID(c)
	if err := s.friendService.RemoveFriend(c.UserContext(), userID, otherID); err != nil {
		return fail(c, err)
	}
	s.publishUserEvent(c.UserContext(), otherID, EventFriendRemoved, fiber.Map{"user_id": userID})
	return respondOK(c, "Friend removed", nil)
}
