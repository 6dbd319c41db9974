package server

import (
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{content=string,attachment_id=int} true "Post"
// @Success 201 {object} models.Envelope{data=models.Post}
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content      string `json:"content"`
		AttachmentID *uint  `json:"attachment_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		UserID:       currentUserID(c),
		Content:      req.Content,
		AttachmentID: req.AttachmentID,
	})
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Post created", post)
}

// GetFeed handles GET /api/posts/feed
func (s *Server) GetFeed(c *fiber.Ctx) error {
	p := parsePagination(c, defaultPageSize)
	posts, err := s.postService.Feed(c.UserContext(), currentUserID(c), p.Limit, p.Offset)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", paged(posts, p))
}

// DeletePost handles DELETE /api/posts/:id
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.postService.DeletePost(c.UserContext(), currentUserID(c), id); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Post deleted", nil)
}
