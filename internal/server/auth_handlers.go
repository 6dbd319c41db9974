package server

import (
	"huddle/internal/middleware"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new account. When activation is required no token is returned.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} models.Envelope{data=service.AuthResult}
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Signup(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	if result.Token == "" {
		return respondCreated(c, "Account created. Activate it to sign in", result)
	}
	return respondCreated(c, "Account created", result)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} models.Envelope{data=service.AuthResult}
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 428 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Logged in", result)
}

// Activate handles POST /api/auth/activate
// @Summary Activate account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{token=string} true "Activation token"
// @Success 200 {object} models.Envelope{data=service.AuthResult}
// @Router /auth/activate [post]
func (s *Server) Activate(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.authService.Activate(c.UserContext(), req.Token)
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Account activated", result)
}

// Logout handles POST /api/auth/logout
func (s *Server) Logout(c *fiber.Ctx) error {
	claims, _ := c.Locals("claims").(*middleware.Claims)
	if err := s.authService.Logout(c.UserContext(), claims); err != nil {
		return fail(c, err)
	}
	return respondOK(c, "Logged out", nil)
}

// IssueWSTicket handles POST /api/ws/ticket
func (s *Server) IssueWSTicket(c *fiber.Ctx) error {
	ticket, err := s.authService.IssueWSTicket(c.UserContext(), currentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return respondOK(c, "", fiber.Map{
		"ticket":     ticket,
		"expires_in": int(middleware.WSTicketTTL.Seconds()),
	})
}
