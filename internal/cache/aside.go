package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"huddle/internal/middleware"

	"github.com/redis/go-redis/v9"
)

// Aside reads key into dest. On a miss it calls fetch, which must populate dest,
// and stores the result for ttl. Redis failures degrade to calling fetch.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache read failed", "key", key, "error", err)
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", "key", key, "error", err)
	}
	return nil
}
