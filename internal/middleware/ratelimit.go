package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"huddle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable is returned when counting is required but no Redis
// client is configured.
var ErrLimiterUnavailable = errors.New("rate limiter has no redis client")

// RateRule is a fixed-window budget for one named action.
type RateRule struct {
	Name   string
	Limit  int
	Window time.Duration
	// FailClosed rejects requests with 503 when Redis cannot be reached.
	FailClosed bool
}

// RateLimiter counts requests per rule and caller in Redis.
type RateLimiter struct {
	rdb      *redis.Client
	disabled bool
}

// NewRateLimiter returns a limiter for env. Counting is skipped in the
// development, test and stress environments.
func NewRateLimiter(rdb *redis.Client, env string) *RateLimiter {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "", "development", "test", "stress":
		return &RateLimiter{rdb: rdb, disabled: true}
	}
	return &RateLimiter{rdb: rdb}
}

func rateKey(rule, caller string) string {
	return "rl:" + rule + ":" + caller
}

// Allow records one hit for caller and reports whether it fits the rule.
// retryAfter is the time left in the window when the hit is rejected.
func (l *RateLimiter) Allow(ctx context.Context, rule RateRule, caller string) (allowed bool, retryAfter time.Duration, err error) {
	if l.disabled {
		return true, 0, nil
	}
	if l.rdb == nil {
		return false, 0, ErrLimiterUnavailable
	}

	key := rateKey(rule.Name, caller)
	var hits *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, rule.Window)
		hits = pipe.Incr(ctx, key)
		ttl = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("count %s: %w", key, err)
	}
	if hits.Val() <= int64(rule.Limit) {
		return true, 0, nil
	}
	return false, ttl.Val(), nil
}

// callerKey prefers the authenticated user over the client IP.
func callerKey(c *fiber.Ctx) string {
	if uid := c.Locals("userID"); uid != nil {
		return fmt.Sprintf("user:%v", uid)
	}
	return "ip:" + c.IP()
}

// Handler enforces rule on every request. A rule without a name is keyed by
// request path.
func (l *RateLimiter) Handler(rule RateRule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		r := rule
		if r.Name == "" {
			r.Name = c.Path()
		}

		allowed, retryAfter, err := l.Allow(c.UserContext(), r, callerKey(c))
		if err != nil {
			if !r.FailClosed {
				return c.Next()
			}
			Logger.WarnContext(c.UserContext(), "Rate limiter unavailable, rejecting request",
				"rule", r.Name, "path", c.Path(), "error", err)
			return models.RespondWithError(c, fiber.StatusServiceUnavailable,
				models.NewUnavailableError("rate limit unavailable", err))
		}
		if !allowed {
			if retryAfter > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			}
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		}
		return c.Next()
	}
}
