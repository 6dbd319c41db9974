// Package cache wraps the shared Redis client and the cache-aside helpers built on it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"huddle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

var client *redis.Client

// errorCounter counts failed commands by name. redis.Nil is a cache miss,
// not a failure.
type errorCounter struct{}

func (errorCounter) DialHook(next redis.DialHook) redis.DialHook { return next }

func (errorCounter) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		countError(cmd.Name(), err)
		return err
	}
}

func (errorCounter) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		countError("pipeline", err)
		return err
	}
}

func countError(op string, err error) {
	if err != nil && !errors.Is(err, redis.Nil) {
		middleware.RedisErrors.WithLabelValues(op).Inc()
	}
}

// parseAddr accepts host:port or a redis:// / rediss:// URL.
func parseAddr(addr string) (*redis.Options, error) {
	if !strings.Contains(addr, "://") {
		return &redis.Options{Addr: addr}, nil
	}
	return redis.ParseURL(addr)
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := parseAddr(strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	rdb.AddHook(errorCounter{})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return rdb, nil
}

// InitRedis sets the shared client from addr. Redis is optional: when addr is
// empty or unreachable the client stays nil and callers take uncached paths.
func InitRedis(addr string) {
	client = nil
	if strings.TrimSpace(addr) == "" {
		middleware.Logger.Warn("REDIS_URL not set, continuing without cache")
		return
	}
	rdb, err := Connect(context.Background(), addr)
	if err != nil {
		middleware.Logger.Warn("Redis unavailable, continuing without cache", "error", err)
		return
	}
	middleware.Logger.Info("Redis connected", "addr", rdb.Options().Addr)
	client = rdb
}

// SetClient replaces the shared client. Tests point it at miniredis.
func SetClient(rdb *redis.Client) {
	if rdb != nil {
		rdb.AddHook(errorCounter{})
	}
	client = rdb
}

// GetClient returns the shared client, or nil when Redis is disabled.
func GetClient() *redis.Client {
	return client
}
