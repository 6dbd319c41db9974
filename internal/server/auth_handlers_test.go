package server

import (
	"context"
	"net/http"
	"testing"

	"huddle/internal/middleware"
	"huddle/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name           string
		body           map[string]string
		expectedStatus int
	}{
		{
			name: "Success",
			body: map[string]string{
				"username": "testuser",
				"email":    "test@example.com",
				"password": "Password123!",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "Duplicate User",
			body: map[string]string{
				"username": "otheruser",
				"email":    "TEST@example.com",
				"password": "Password123!",
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "Missing Fields",
			body: map[string]string{
				"username": "nopass",
				"email":    "nopass@example.com",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := ts.call(t, nil, http.MethodPost, "/api/auth/signup", tt.body)
			assert.Equal(t, tt.expectedStatus, status)
		})
	}
}

func TestLoginAndLogout(t *testing.T) {
	ts := newTestServer(t)

	status, _ := ts.call(t, nil, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": "loginuser",
		"email":    "login@example.com",
		"password": "Password123!",
	})
	require.Equal(t, http.StatusCreated, status)

	status, _ = ts.call(t, nil, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "login@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, res := ts.call(t, nil, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "login@example.com",
		"password": "Password123!",
	})
	require.Equal(t, http.StatusOK, status)

	var result service.AuthResult
	decodeData(t, res, &result)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, "loginuser", result.User.Username)

	claims, err := middleware.ParseToken(testJWTSecret, result.Token)
	require.NoError(t, err)

	// Logging out revokes the presented token.
	req := authedRequest(http.MethodPost, "/api/auth/logout", result.Token)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	revoked, err := ts.rdb.Exists(context.Background(), middleware.BlacklistKey(claims.JTI)).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), revoked)

	resp, err = ts.app.Test(authedRequest(http.MethodGet, "/api/users/me", result.Token), -1)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
