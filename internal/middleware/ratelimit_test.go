package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var friendRequestRule = RateRule{Name: "friend_request", Limit: 2, Window: time.Minute}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func hit(t *testing.T, app *fiber.App, path string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRateLimiter_DisabledOutsideDeployedEnvs(t *testing.T) {
	for _, env := range []string{"", "test", "development", "Stress"} {
		l := NewRateLimiter(nil, env)
		for i := 0; i < 5; i++ {
			allowed, _, err := l.Allow(context.Background(), friendRequestRule, "user:1")
			require.NoError(t, err, env)
			assert.True(t, allowed, env)
		}
	}
}

func TestRateLimiter_NoRedisInProduction(t *testing.T) {
	allowed, _, err := NewRateLimiter(nil, "production").Allow(context.Background(), friendRequestRule, "user:1")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	assert.False(t, allowed)
}

func TestRateLimiter_FixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	l := NewRateLimiter(rdb, "production")
	ctx := context.Background()

	for i := 0; i < friendRequestRule.Limit; i++ {
		allowed, _, err := l.Allow(ctx, friendRequestRule, "user:7")
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, retryAfter, err := l.Allow(ctx, friendRequestRule, "user:7")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, time.Minute)

	// other callers have their own budget
	allowed, _, err = l.Allow(ctx, friendRequestRule, "user:8")
	require.NoError(t, err)
	assert.True(t, allowed)

	mr.FastForward(61 * time.Second)
	allowed, _, err = l.Allow(ctx, friendRequestRule, "user:7")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRateLimiter_Handler(t *testing.T) {
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	t.Run("fail open without redis", func(t *testing.T) {
		app := fiber.New()
		app.Get("/feed", NewRateLimiter(nil, "production").Handler(RateRule{Limit: 1, Window: time.Minute}), ok)
		assert.Equal(t, http.StatusOK, hit(t, app, "/feed").StatusCode)
	})

	t.Run("fail closed without redis", func(t *testing.T) {
		app := fiber.New()
		rule := RateRule{Name: "login", Limit: 1, Window: time.Minute, FailClosed: true}
		app.Get("/login", NewRateLimiter(nil, "production").Handler(rule), ok)
		assert.Equal(t, http.StatusServiceUnavailable, hit(t, app, "/login").StatusCode)
	})

	t.Run("429 with retry-after once spent", func(t *testing.T) {
		mr, rdb := newTestRedis(t)
		app := fiber.New()
		app.Get("/groups", NewRateLimiter(rdb, "production").Handler(RateRule{Limit: 1, Window: time.Minute}), ok)

		assert.Equal(t, http.StatusOK, hit(t, app, "/groups").StatusCode)
		resp := hit(t, app, "/groups")
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "60", resp.Header.Get(fiber.HeaderRetryAfter))
		assert.Len(t, mr.Keys(), 1)
	})
}
