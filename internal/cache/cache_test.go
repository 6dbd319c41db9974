package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func useMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { SetClient(nil) })
	return mr
}

func TestAside_FetchesOnceThenHits(t *testing.T) {
	mr := useMiniredis(t)
	ctx := context.Background()
	calls := 0

	load := func() (cachedUser, error) {
		var u cachedUser
		err := Aside(ctx, UserKey(1), &u, UserTTL, func() error {
			calls++
			u = cachedUser{ID: 1, Name: "alice"}
			return nil
		})
		return u, err
	}

	first, err := load()
	require.NoError(t, err)
	second, err := load()
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.True(t, mr.Exists(UserKey(1)))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := useMiniredis(t)
	var u cachedUser

	err := Aside(context.Background(), UserKey(2), &u, UserTTL, func() error {
		return errors.New("not found")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists(UserKey(2)))
}

func TestAside_WithoutClientCallsFetch(t *testing.T) {
	SetClient(nil)
	var n int
	err := Aside(context.Background(), "k", &n, time.Minute, func() error {
		n = 7
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestInvalidate(t *testing.T) {
	mr := useMiniredis(t)
	require.NoError(t, mr.Set(UnreadCountKey(3), "4"))
	require.NoError(t, mr.Set(UnreadCountKey(5), "1"))

	Invalidate(context.Background(), UnreadCountKey(3), UnreadCountKey(5))
	Invalidate(context.Background())

	assert.False(t, mr.Exists(UnreadCountKey(3)))
	assert.False(t, mr.Exists(UnreadCountKey(5)))
}
