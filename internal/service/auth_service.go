package service

import (
	"context"
	"strings"
	"time"

	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/repository"
	"huddle/internal/validation"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// AuthConfig holds the settings that change how accounts authenticate.
type AuthConfig struct {
	JWTSecret         string
	RequireActivation bool
}

// SignupInput is the body of a signup request.
type SignupInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// AuthResult is returned after signup or login. Token is empty while the account
// still awaits activation.
type AuthResult struct {
	Token string       `json:"token,omitempty"`
	User  *models.User `json:"user"`
}

// AuthService issues and revokes credentials.
type AuthService struct {
	users repository.UserRepository
	rdb   *redis.Client
	cfg   AuthConfig
}

// NewAuthService returns a new AuthService. rdb may be nil; logout and websocket
// tickets are then unavailable.
func NewAuthService(users repository.UserRepository, rdb *redis.Client, cfg AuthConfig) *AuthService {
	return &AuthService{users: users, rdb: rdb, cfg: cfg}
}

// Signup validates and stores a new account.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return nil, models.NewValidationError("Username, email, and password are required")
	}
	if err := validation.ValidateUsername(in.Username); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing, err = s.users.GetByUsername(ctx, in.Username)
		if err != nil {
			return nil, err
		}
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username:    in.Username,
		Email:       in.Email,
		Password:    string(hash),
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		LoginType:   models.LoginTypeEmail,
		IsActivated: !s.cfg.RequireActivation,
	}
	if s.cfg.RequireActivation {
		user.ActivationToken = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	if !user.IsActivated {
		middleware.Logger.InfoContext(ctx, "account awaiting activation",
			"user_id", user.ID, "activation_token", user.ActivationToken)
		return &AuthResult{User: user}, nil
	}
	return s.issue(user)
}

// Login checks credentials. Blocked accounts get 403 and, when activation is
// required, unactivated accounts get 428.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if user.IsBlocked {
		return nil, models.NewForbiddenError("This account has been blocked")
	}
	if s.cfg.RequireActivation && !user.IsActivated {
		return nil, models.NewPreconditionRequiredError("Account is not activated")
	}
	return s.issue(user)
}

// Activate marks the account owning token as activated and logs it in.
func (s *AuthService) Activate(ctx context.Context, token string) (*AuthResult, error) {
	user, err := s.users.GetByActivationToken(ctx, strings.TrimSpace(token))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewValidationError("Invalid activation token")
	}
	if err := s.users.Activate(ctx, user.ID); err != nil {
		return nil, err
	}
	user.IsActivated = true
	user.ActivationToken = ""
	return s.issue(user)
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *middleware.Claims) error {
	if claims == nil || claims.JTI == "" {
		return nil
	}
	if s.rdb == nil {
		return models.NewUnavailableError("Logout is temporarily unavailable", nil)
	}
	ttl := time.Until(claims.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.rdb.Set(ctx, middleware.BlacklistKey(claims.JTI), "1", ttl).Err(); err != nil {
		return models.NewUnavailableError("Logout is temporarily unavailable", err)
	}
	return nil
}

// IssueWSTicket returns a short-lived single-use ticket for opening the websocket.
func (s *AuthService) IssueWSTicket(ctx context.Context, userID uint) (string, error) {
	ticket, err := middleware.IssueWSTicket(ctx, s.rdb, userID)
	if err != nil {
		return "", models.NewUnavailableError("Realtime is temporarily unavailable", err)
	}
	return ticket, nil
}

func (s *AuthService) issue(user *models.User) (*AuthResult, error) {
	token, _, err := middleware.IssueToken(s.cfg.JWTSecret, user.ID, user.Username)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &AuthResult{Token: token, User: user}, nil
}
