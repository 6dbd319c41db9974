package service

import (
	"context"
	"testing"
	"time"

	"huddle/internal/middleware"
	"huddle/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-at-least-32-chars"

func newAuthService(t *testing.T, requireActivation bool) (*AuthService, *miniredis.Miniredis) {
	t.Helper()
	_, store := newTestStore(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewAuthService(store.Users, rdb, AuthConfig{JWTSecret: testSecret, RequireActivation: requireActivation}), mr
}

func validSignup(username string) SignupInput {
	return SignupInput{Username: username, Email: username + "@Example.com", Password: "CorrectHorse12!"}
}

func TestAuthService_SignupAndLogin(t *testing.T) {
	svc, _ := newAuthService(t, false)
	ctx := context.Background()

	res, err := svc.Signup(ctx, validSignup("rider"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Token)
	assert.Equal(t, "rider@example.com", res.User.Email)
	assert.True(t, res.User.IsActivated)

	claims, err := middleware.ParseToken(testSecret, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, claims.UserID)
	assert.NotEmpty(t, claims.JTI)

	_, err = svc.Signup(ctx, validSignup("rider"))
	requireAppCode(t, err, models.CodeConflict)

	login, err := svc.Login(ctx, "RIDER@example.com", "CorrectHorse12!")
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(ctx, "rider@example.com", "wrong")
	requireAppCode(t, err, models.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "CorrectHorse12!")
	requireAppCode(t, err, models.CodeUnauthorized)
}

func TestAuthService_SignupValidation(t *testing.T) {
	svc, _ := newAuthService(t, false)

	tests := []struct {
		name string
		in   SignupInput
	}{
		{"missing fields", SignupInput{Username: "rider"}},
		{"bad username", SignupInput{Username: "-x-", Email: "a@b.co", Password: "CorrectHorse12!"}},
		{"bad email", SignupInput{Username: "rider", Email: "nope", Password: "CorrectHorse12!"}},
		{"weak password", SignupInput{Username: "rider", Email: "a@b.co", Password: "password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.in)
			requireAppCode(t, err, models.CodeValidation)
		})
	}
}

func TestAuthService_ActivationRequired(t *testing.T) {
	svc, _ := newAuthService(t, true)
	ctx := context.Background()

	res, err := svc.Signup(ctx, validSignup("pending"))
	require.NoError(t, err)
	assert.Empty(t, res.Token)
	assert.False(t, res.User.IsActivated)
	token := res.User.ActivationToken
	require.Len(t, token, 32)

	_, err = svc.Login(ctx, "pending@example.com", "CorrectHorse12!")
	requireAppCode(t, err, models.CodePreconditionRequire)

	_, err = svc.Activate(ctx, "not-a-token")
	requireAppCode(t, err, models.CodeValidation)

	activated, err := svc.Activate(ctx, token)
	require.NoError(t, err)
	assert.NotEmpty(t, activated.Token)
	assert.True(t, activated.User.IsActivated)

	_, err = svc.Login(ctx, "pending@example.com", "CorrectHorse12!")
	require.NoError(t, err)
}

func TestAuthService_BlockedAccountCannotLogin(t *testing.T) {
	svc, _ := newAuthService(t, false)
	ctx := context.Background()

	res, err := svc.Signup(ctx, validSignup("banned"))
	require.NoError(t, err)
	res.User.IsBlocked = true
	require.NoError(t, svc.users.Update(ctx, res.User))

	_, err = svc.Login(ctx, "banned@example.com", "CorrectHorse12!")
	requireAppCode(t, err, models.CodeForbidden)
}

func TestAuthService_LogoutBlacklistsJTI(t *testing.T) {
	svc, mr := newAuthService(t, false)
	ctx := context.Background()

	claims := &middleware.Claims{UserID: 1, JTI: "abc", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, svc.Logout(ctx, claims))
	assert.True(t, mr.Exists(middleware.BlacklistKey("abc")))
	ttl := mr.TTL(middleware.BlacklistKey("abc"))
	assert.Greater(t, ttl, 59*time.Minute)

	expired := &middleware.Claims{UserID: 1, JTI: "old", ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, svc.Logout(ctx, expired))
	assert.False(t, mr.Exists(middleware.BlacklistKey("old")))
}

func TestAuthService_WSTicket(t *testing.T) {
	svc, mr := newAuthService(t, false)

	ticket, err := svc.IssueWSTicket(context.Background(), 42)
	require.NoError(t, err)
	got, err := mr.Get(middleware.WSTicketKey(ticket))
	require.NoError(t, err)
	assert.Equal(t, "42", got)

	noRedis := NewAuthService(nil, nil, AuthConfig{JWTSecret: testSecret})
	_, err = noRedis.IssueWSTicket(context.Background(), 42)
	requireAppCode(t, err, models.CodeUnavailable)
	requireAppCode(t, noRedis.Logout(context.Background(), &middleware.Claims{JTI: "x", ExpiresAt: time.Now().Add(time.Hour)}), models.CodeUnavailable)
}
